package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
)

var (
	// ErrNotReady is returned when the backend did not become ready in time.
	ErrNotReady = errors.New("backend not ready")
	// ErrBackendExited is returned when the backend exits before it became ready.
	ErrBackendExited = errors.New("backend exited")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("backend already started")
	// ErrBackendAlive is returned by Teardown when the backend process or its port outlived Stop.
	ErrBackendAlive = errors.New("backend still alive after teardown")
)

// Backend is the server under test.
type Backend interface {
	// Start spawns the backend and returns without waiting for readiness.
	Start(ctx context.Context) error
	// Stop asks the backend to terminate and waits for it to exit or for ctx to be done,
	// in which case the backend is killed.
	Stop(ctx context.Context) error
	// Done is closed when the backend exited.
	Done() <-chan struct{}
	// Err is the exit error once Done is closed.
	Err() error
	// Output holds the combined stdout and stderr.
	Output() *LogTail
	// PID of the spawned process, 0 before Start.
	PID() int
}

// ProcessBackend runs the backend as a local process.
type ProcessBackend struct {
	command string
	args    []string
	env     map[string]string
	dir     string
	output  *LogTail
	logger  *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	exitErr error
}

// BackendOption configures a backend.
type BackendOption func(*ProcessBackend)

func WithEnv(env map[string]string) BackendOption {
	return func(p *ProcessBackend) {
		p.env = env
	}
}

func WithDir(dir string) BackendOption {
	return func(p *ProcessBackend) {
		p.dir = dir
	}
}

func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(p *ProcessBackend) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessBackend creates a backend running command with args.
func NewProcessBackend(command string, args []string, opts ...BackendOption) *ProcessBackend {
	p := &ProcessBackend{
		command: command,
		args:    args,
		output:  NewLogTail(0),
		logger:  logging.NewNop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start spawns the process. ctx only bounds the spawn; the process lives until Stop.
func (p *ProcessBackend) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(p.command, p.args...)
	cmd.Dir = p.dir
	cmd.Env = append(os.Environ(), envList(p.env)...)
	cmd.Stdout = p.output
	cmd.Stderr = p.output
	cmd.SysProcAttr = backendSysProcAttr()

	started := make(chan error, 1)
	go func() {
		// the parent death signal follows the spawning thread, which must outlive the backend
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := cmd.Start(); err != nil {
			started <- err
			return
		}
		started <- nil

		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		p.logger.Info("Backend exited", "pid", cmd.Process.Pid, "error", err)
		close(p.done)
	}()
	if err := <-started; err != nil {
		return fmt.Errorf("failed to start backend %s: %w", p.command, err)
	}
	p.cmd = cmd
	p.logger.Info("Backend started", "command", p.command, "pid", cmd.Process.Pid)
	return nil
}

// Stop sends SIGTERM to the backend's process group and waits for the exit notification.
func (p *ProcessBackend) Stop(ctx context.Context) error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return nil
	}

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := terminate(cmd.Process); err != nil {
		// platforms without SIGTERM, or a process that is already gone
		_ = kill(cmd.Process)
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("Backend did not stop in time, killing it", "pid", cmd.Process.Pid)
		_ = kill(cmd.Process)
		<-p.done
		return fmt.Errorf("backend killed after %w", ctx.Err())
	}
}

func (p *ProcessBackend) Done() <-chan struct{} {
	return p.done
}

func (p *ProcessBackend) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *ProcessBackend) Output() *LogTail {
	return p.output
}

func (p *ProcessBackend) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ownerLabel marks containers with the PID of the test binary that started them.
const ownerLabel = "nuts-monitor-e2e.owner"

// ContainerBackend runs the backend image in the foreground with a container runtime CLI,
// so the runtime process carries the container's output and exit.
type ContainerBackend struct {
	*ProcessBackend
	runtime string
	name    string
}

// NewContainerBackend creates a backend running image with cli (docker, podman).
func NewContainerBackend(cli, image string, ports []string, env map[string]string, opts ...BackendOption) *ContainerBackend {
	name := "nuts-monitor-e2e-" + uuid.NewString()[:8]
	args := []string{"run", "--rm", "--name", name, "--label", ownerLabel + "=" + strconv.Itoa(os.Getpid())}
	for _, p := range ports {
		args = append(args, "-p", p)
	}
	for _, kv := range envList(env) {
		args = append(args, "-e", kv)
	}
	args = append(args, image)

	return &ContainerBackend{
		ProcessBackend: NewProcessBackend(cli, args, opts...),
		runtime:        cli,
		name:           name,
	}
}

// Name of the container.
func (c *ContainerBackend) Name() string {
	return c.name
}

// Start removes containers left behind by test binaries that crashed, then runs the image.
// Killing the runtime CLI does not stop its container, so a crashed run is cleaned up here.
func (c *ContainerBackend) Start(ctx context.Context) error {
	c.removeOrphans(ctx)
	return c.ProcessBackend.Start(ctx)
}

func (c *ContainerBackend) removeOrphans(ctx context.Context) {
	out, err := exec.CommandContext(ctx, c.runtime, "ps", "-a",
		"--filter", "label="+ownerLabel,
		"--format", `{{.ID}} {{.Label "`+ownerLabel+`"}}`).Output()
	if err != nil {
		c.logger.Debug("Failed to list e2e containers", "error", err)
		return
	}
	for _, id := range orphanedContainers(out, func(pid int32) bool {
		exists, err := process.PidExistsWithContext(ctx, pid)
		return err != nil || exists
	}) {
		c.logger.Warn("Removing orphaned container", "id", id)
		if out, err := exec.CommandContext(ctx, c.runtime, "rm", "-f", id).CombinedOutput(); err != nil {
			c.logger.Warn("Failed to remove container", "id", id, "error", err, "output", string(out))
		}
	}
}

// orphanedContainers returns the IDs in ps output ("<id> <owner pid>" lines) whose owner is not alive.
func orphanedContainers(ps []byte, alive func(pid int32) bool) []string {
	var ids []string
	for _, line := range strings.Split(string(ps), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		pid, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil || alive(int32(pid)) {
			continue
		}
		ids = append(ids, fields[0])
	}
	return ids
}

// Stop stops the container through the runtime and waits for the foreground process to exit.
func (c *ContainerBackend) Stop(ctx context.Context) error {
	if c.PID() == 0 {
		return nil
	}
	select {
	case <-c.Done():
		return nil
	default:
	}

	out, err := exec.CommandContext(ctx, c.runtime, "stop", c.name).CombinedOutput()
	if err != nil {
		c.logger.Warn("Failed to stop container", "name", c.name, "error", err, "output", string(out))
	}
	return c.ProcessBackend.Stop(ctx)
}

// NewBackend creates the backend cfg describes.
func NewBackend(cfg BackendConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Kind {
	case KindProcess:
		return NewProcessBackend(cfg.Command, cfg.Args,
			WithEnv(cfg.Env), WithDir(cfg.Dir), WithBackendLogger(logger)), nil
	case KindContainer:
		return NewContainerBackend(cfg.Runtime, cfg.Image, cfg.Ports, cfg.Env,
			WithDir(cfg.Dir), WithBackendLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// envList renders env as KEY=VALUE pairs in key order.
func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}
