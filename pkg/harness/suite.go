package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sync/errgroup"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
)

// DefaultStopTimeout bounds Teardown when the caller's context has no deadline.
const DefaultStopTimeout = 10 * time.Second

// portReleaseWait is how long Teardown waits for the backend ports to be released.
const portReleaseWait = 2 * time.Second

// Suite holds the backend and browser shared by the tests of one run.
type Suite struct {
	cfg     Config
	logger  *slog.Logger
	backend Backend
	browser *Browser
	launch  func(BrowserConfig) (*Browser, error)
}

// Option configures a Suite.
type Option func(*Suite)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Suite) {
		s.logger = logger
	}
}

// WithBackend replaces the backend built from the configuration.
func WithBackend(b Backend) Option {
	return func(s *Suite) {
		s.backend = b
	}
}

// NewSuite creates a suite for cfg. Nothing is started before Setup.
func NewSuite(cfg Config, opts ...Option) *Suite {
	s := &Suite{
		cfg:    cfg,
		logger: logging.NewNop(),
		launch: LaunchBrowser,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Suite) Config() Config {
	return s.cfg
}

func (s *Suite) Backend() Backend {
	return s.backend
}

// Setup starts the backend and the browser concurrently and waits until the backend is ready.
// On failure everything started so far is torn down.
func (s *Suite) Setup(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid harness config: %w", err)
	}
	if s.backend == nil {
		b, err := NewBackend(s.cfg.Backend, s.logger)
		if err != nil {
			return err
		}
		s.backend = b
	}

	var browser *Browser
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.backend.Start(gctx); err != nil {
			return err
		}
		probe := s.cfg.Probe()
		s.logger.Info("Waiting for backend", "probe", probe.String(), "timeout", s.cfg.ReadyTimeout())
		return WaitReady(gctx, s.backend, probe, s.cfg.ReadyTimeout())
	})
	if !s.cfg.Browser.Disabled {
		g.Go(func() error {
			b, err := s.launch(s.cfg.Browser)
			if err != nil {
				return err
			}
			browser = b
			return nil
		})
	}

	err := g.Wait()
	s.browser = browser
	if err != nil {
		if terr := s.Teardown(context.WithoutCancel(ctx)); terr != nil {
			s.logger.Error("Teardown after failed setup", "error", terr)
		}
		return fmt.Errorf("harness setup failed: %w", err)
	}
	s.logger.Info("Backend ready")
	return nil
}

// Open opens a page on url. Close it when the test is done.
func (s *Suite) Open(ctx context.Context, url string) (*Page, error) {
	if s.browser == nil {
		return nil, errors.New("no browser: Setup was not called or the browser is disabled")
	}
	return s.browser.Open(ctx, url)
}

// Teardown closes the browser, stops the backend and verifies that neither the process nor its
// ports survived. It is safe to call after a partial or failed Setup.
func (s *Suite) Teardown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultStopTimeout)
		defer cancel()
	}

	var errs []error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		s.browser = nil
	}

	if s.backend != nil && s.backend.PID() != 0 {
		pid := s.backend.PID()
		if err := s.backend.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop backend: %w", err))
		}
		if err := verifyGone(ctx, pid, s.cfg.HostPorts()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// verifyGone checks that pid no longer runs and that ports are free again.
func verifyGone(ctx context.Context, pid int, ports []int) error {
	var errs []error
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		errs = append(errs, fmt.Errorf("check backend process %d: %w", pid, err))
	} else if exists {
		errs = append(errs, fmt.Errorf("%w: process %d is running", ErrBackendAlive, pid))
	}

	for _, port := range ports {
		if !waitPortFree(ctx, port) {
			errs = append(errs, fmt.Errorf("%w: port %d is still open", ErrBackendAlive, port))
		}
	}
	return errors.Join(errs...)
}

func waitPortFree(ctx context.Context, port int) bool {
	addr := net.JoinHostPort("localhost", strconv.Itoa(port))
	deadline := time.Now().Add(portReleaseWait)
	for {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err != nil {
			return true
		}
		_ = conn.Close()
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// M is implemented by *testing.M.
type M interface {
	Run() int
}

// Main sets up s, runs the tests and tears s down. A failed setup aborts the run with exit code 1
// before any test executes; a failed teardown turns a passing run into a failure.
//
// A panicking test crashes the test binary before Teardown can run. The backend process then dies
// with the binary (on Linux), the browser is reaped by rod's leakless guard and containers left
// behind are removed by the next run.
func Main(m M, s *Suite) int {
	ctx := context.Background()
	if err := s.Setup(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	code := m.Run()
	if err := s.Teardown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "harness teardown failed: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}
