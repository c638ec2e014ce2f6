package harness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a Backend whose output and exit are driven by the test.
type fakeBackend struct {
	output   *LogTail
	done     chan struct{}
	exitOnce sync.Once
	exitErr  error
	pid      int
	started  atomic.Bool
	stopped  atomic.Bool
	startErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{output: NewLogTail(0), done: make(chan struct{})}
}

func (f *fakeBackend) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Store(true)
	return nil
}

func (f *fakeBackend) Stop(context.Context) error {
	f.stopped.Store(true)
	f.exit(nil)
	return nil
}

func (f *fakeBackend) exit(err error) {
	f.exitOnce.Do(func() {
		f.exitErr = err
		close(f.done)
	})
}

func (f *fakeBackend) Done() <-chan struct{} { return f.done }
func (f *fakeBackend) Err() error             { return f.exitErr }
func (f *fakeBackend) Output() *LogTail       { return f.output }
func (f *fakeBackend) PID() int               { return f.pid }

func TestWaitReady_Marker(t *testing.T) {
	b := newFakeBackend()
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = b.output.Write([]byte("Started HTTP server\n"))
	}()

	err := WaitReady(context.Background(), b, MarkerProbe{Marker: DefaultMarker}, 5*time.Second)

	assert.NoError(t, err)
}

func TestWaitReady_Timeout(t *testing.T) {
	b := newFakeBackend()
	_, _ = b.output.Write([]byte("loading config\nconnecting to node\n"))

	start := time.Now()
	err := WaitReady(context.Background(), b, MarkerProbe{Marker: DefaultMarker}, 50*time.Millisecond)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.ErrorIs(t, err, ErrNotReady)
	var rerr *ReadinessError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, []string{"loading config", "connecting to node"}, rerr.Output)
	assert.Contains(t, err.Error(), `output marker "Started HTTP"`)
	assert.Contains(t, err.Error(), "connecting to node")
}

func TestWaitReady_LateProbeResult(t *testing.T) {
	b := newFakeBackend()

	err := WaitReady(context.Background(), b, DelayProbe{Delay: 100 * time.Millisecond}, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotReady)

	// the abandoned probe finishes into its buffered channel
	time.Sleep(150 * time.Millisecond)
}

func TestWaitReady_BackendExited(t *testing.T) {
	b := newFakeBackend()
	_, _ = b.output.Write([]byte("panic: cannot bind port\n"))
	b.exit(errors.New("exit status 2"))

	err := WaitReady(context.Background(), b, MarkerProbe{Marker: DefaultMarker}, 5*time.Second)

	assert.ErrorIs(t, err, ErrBackendExited)
	assert.NotErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "exit status 2")
	assert.Contains(t, err.Error(), "cannot bind port")
}

func TestWaitReady_Cancelled(t *testing.T) {
	b := newFakeBackend()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitReady(ctx, b, MarkerProbe{Marker: DefaultMarker}, 5*time.Second)

	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayProbe(t *testing.T) {
	start := time.Now()

	err := WaitReady(context.Background(), newFakeBackend(), DelayProbe{Delay: 30 * time.Millisecond}, time.Second)

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestHTTPProbe(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("UP"))
	}))
	defer server.Close()

	probe := &HTTPProbe{URL: server.URL + "/health", Interval: 10 * time.Millisecond}
	err := WaitReady(context.Background(), newFakeBackend(), probe, 5*time.Second)

	assert.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "health endpoint "+server.URL+"/health", probe.String())
}

func TestHTTPProbe_Unreachable(t *testing.T) {
	probe := &HTTPProbe{URL: "http://127.0.0.1:1/health", Interval: 10 * time.Millisecond}

	err := WaitReady(context.Background(), newFakeBackend(), probe, 100*time.Millisecond)

	assert.ErrorIs(t, err, ErrNotReady)
}
