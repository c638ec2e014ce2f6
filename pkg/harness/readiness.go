package harness

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ReadinessProbe decides when a started backend is ready to serve.
type ReadinessProbe interface {
	// Wait blocks until the backend is ready or ctx is done.
	Wait(ctx context.Context, b Backend) error
	String() string
}

// MarkerProbe waits for a marker in the backend output.
type MarkerProbe struct {
	Marker string
}

func (p MarkerProbe) Wait(ctx context.Context, b Backend) error {
	select {
	case <-b.Output().Watch(p.Marker):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p MarkerProbe) String() string {
	return fmt.Sprintf("output marker %q", p.Marker)
}

// HTTPProbe polls a URL until it answers with a 2xx status.
type HTTPProbe struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
}

func (p *HTTPProbe) Wait(ctx context.Context, _ Backend) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: time.Second}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if p.ready(ctx, client) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *HTTPProbe) ready(ctx context.Context, client *http.Client) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *HTTPProbe) String() string {
	return fmt.Sprintf("health endpoint %s", p.URL)
}

// DelayProbe waits a fixed time, for backends whose output cannot be observed.
type DelayProbe struct {
	Delay time.Duration
}

func (p DelayProbe) Wait(ctx context.Context, _ Backend) error {
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p DelayProbe) String() string {
	return fmt.Sprintf("delay of %s", p.Delay)
}

// ReadinessError describes a backend that did not become ready, with the tail of its output.
type ReadinessError struct {
	Probe   string
	Timeout time.Duration
	// Output is the last output of the backend.
	Output []string
	// Err is the probe's own failure, nil on a timeout.
	Err error
}

// tailLines is the number of output lines a ReadinessError carries.
const tailLines = 20

func (e *ReadinessError) Error() string {
	var b strings.Builder
	if e.Err != nil {
		fmt.Fprintf(&b, "backend not ready, waiting for %s failed: %v", e.Probe, e.Err)
	} else {
		fmt.Fprintf(&b, "backend not ready after %s waiting for %s", e.Timeout, e.Probe)
	}
	if len(e.Output) > 0 {
		b.WriteString("\n--- backend output ---\n")
		b.WriteString(strings.Join(e.Output, "\n"))
	}
	return b.String()
}

func (e *ReadinessError) Unwrap() []error {
	return []error{ErrNotReady, e.Err}
}

// WaitReady races probe against timeout. Whichever finishes first decides: the other wait is
// abandoned and its late result lands in a buffered channel nobody reads.
// A backend that exits first fails with ErrBackendExited.
func WaitReady(ctx context.Context, b Backend, probe ReadinessProbe, timeout time.Duration) error {
	result := make(chan error, 1)
	go func() {
		result <- probe.Wait(ctx, b)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			return &ReadinessError{Probe: probe.String(), Timeout: timeout, Output: b.Output().Lines(tailLines), Err: err}
		}
		return nil
	case <-b.Done():
		return fmt.Errorf("%w before it was ready (%v)\n--- backend output ---\n%s",
			ErrBackendExited, b.Err(), strings.Join(b.Output().Lines(tailLines), "\n"))
	case <-timer.C:
		return &ReadinessError{Probe: probe.String(), Timeout: timeout, Output: b.Output().Lines(tailLines)}
	}
}
