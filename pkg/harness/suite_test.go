package harness

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeM struct {
	code  int
	ran   bool
	onRun func()
}

func (m *fakeM) Run() int {
	m.ran = true
	if m.onRun != nil {
		m.onRun()
	}
	return m.code
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend.Ports = nil
	cfg.Browser.Disabled = true
	cfg.Readiness.Timeout = 5 * time.Second
	return cfg
}

func TestSuite_SetupTeardown(t *testing.T) {
	skipOnWindows(t)
	b := helperBackend("serve")
	s := NewSuite(testConfig(), WithBackend(b))

	require.NoError(t, s.Setup(context.Background()))
	assert.Same(t, b, s.Backend())
	assert.NotZero(t, b.PID())
	_, err := s.Open(context.Background(), "http://localhost:1313")
	assert.ErrorContains(t, err, "no browser")

	require.NoError(t, s.Teardown(context.Background()))
	assert.True(t, closed(b.Done()))
	assert.NoError(t, s.Teardown(context.Background()), "teardown is repeatable")
}

func TestSuite_SetupNotReady(t *testing.T) {
	skipOnWindows(t)
	cfg := testConfig()
	cfg.Readiness.Timeout = 100 * time.Millisecond
	b := helperBackend("silent")
	s := NewSuite(cfg, WithBackend(b))

	err := s.Setup(context.Background())

	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorContains(t, err, "harness setup failed")
	assert.True(t, closed(b.Done()), "the backend is stopped after a failed setup")
}

func TestSuite_SetupBackendExited(t *testing.T) {
	skipOnWindows(t)
	s := NewSuite(testConfig(), WithBackend(helperBackend("crash")))

	err := s.Setup(context.Background())

	assert.ErrorIs(t, err, ErrBackendExited)
	assert.ErrorContains(t, err, "cannot bind port")
}

func TestSuite_SetupBrowserFailure(t *testing.T) {
	b := newFakeBackend()
	b.pid = 1 << 30
	_, _ = b.output.Write([]byte("Started HTTP server\n"))
	cfg := testConfig()
	cfg.Browser.Disabled = false
	s := NewSuite(cfg, WithBackend(b))
	s.launch = func(BrowserConfig) (*Browser, error) {
		return nil, errors.New("chromium not found")
	}

	err := s.Setup(context.Background())

	assert.ErrorContains(t, err, "chromium not found")
	assert.True(t, b.stopped.Load())
}

func TestSuite_SetupInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.Kind = "vm"

	err := NewSuite(cfg).Setup(context.Background())

	assert.ErrorContains(t, err, "invalid harness config")
}

func TestSuite_SetupStartFailure(t *testing.T) {
	b := newFakeBackend()
	b.startErr = errors.New("exec: not found")
	s := NewSuite(testConfig(), WithBackend(b))

	err := s.Setup(context.Background())

	assert.ErrorContains(t, err, "exec: not found")
	assert.False(t, b.stopped.Load(), "a backend without a process is not stopped")
}

func TestSuite_TeardownPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	b := newFakeBackend()
	b.pid = 1 << 30
	cfg := testConfig()
	cfg.Backend.Ports = []string{strconv.Itoa(port) + ":1323"}
	s := NewSuite(cfg, WithBackend(b))

	err = s.Teardown(context.Background())

	assert.ErrorIs(t, err, ErrBackendAlive)
	assert.ErrorContains(t, err, "port "+strconv.Itoa(port))
}

func TestMain_SetupFailure(t *testing.T) {
	b := newFakeBackend()
	b.startErr = errors.New("exec: not found")
	m := &fakeM{}

	code := Main(m, NewSuite(testConfig(), WithBackend(b)))

	assert.Equal(t, 1, code)
	assert.False(t, m.ran, "no test runs after a failed setup")
}

func TestMain_Run(t *testing.T) {
	skipOnWindows(t)
	b := helperBackend("serve")
	m := &fakeM{code: 0}
	m.onRun = func() {
		assert.Contains(t, b.Output().String(), "Started HTTP")
	}

	code := Main(m, NewSuite(testConfig(), WithBackend(b)))

	assert.Equal(t, 0, code)
	assert.True(t, m.ran)
	assert.True(t, closed(b.Done()))
}

func TestMain_FailingTests(t *testing.T) {
	skipOnWindows(t)
	b := helperBackend("serve")

	code := Main(&fakeM{code: 2}, NewSuite(testConfig(), WithBackend(b)))

	assert.Equal(t, 2, code)
	assert.True(t, closed(b.Done()))
}
