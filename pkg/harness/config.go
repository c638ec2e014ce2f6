package harness

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendKind selects how the backend is started.
type BackendKind string

const (
	KindProcess   BackendKind = "process"
	KindContainer BackendKind = "container"
)

// DefaultMarker is logged by the backend once its HTTP server is listening.
const DefaultMarker = "Started HTTP"

// Config of a test suite.
type Config struct {
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	Readiness ReadinessConfig `yaml:"readiness" json:"readiness"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	URLs      URLConfig       `yaml:"urls" json:"urls"`
}

type BackendConfig struct {
	Kind BackendKind `yaml:"kind" json:"kind"`
	// Command and Args start a process backend.
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args" json:"args"`
	Dir     string   `yaml:"dir" json:"dir"`
	// Image is run with Runtime for a container backend.
	Image   string `yaml:"image" json:"image"`
	Runtime string `yaml:"runtime" json:"runtime"`
	// Ports are host:container mappings. The host ports must be free again after teardown.
	Ports []string          `yaml:"ports" json:"ports"`
	Env   map[string]string `yaml:"env" json:"env"`
}

type ReadinessConfig struct {
	// Marker is waited for in the backend output.
	Marker string `yaml:"marker" json:"marker"`
	// HealthURL, when set, is polled instead of waiting for the marker.
	HealthURL string `yaml:"health_url" json:"health_url"`
	// Delay, when set, is waited blindly for backends without observable output.
	Delay   time.Duration `yaml:"delay" json:"delay"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type BrowserConfig struct {
	Headless bool `yaml:"headless" json:"headless"`
	// SlowMotion delays every browser action.
	SlowMotion time.Duration `yaml:"slow_motion" json:"slow_motion"`
	Width      int           `yaml:"width" json:"width"`
	Height     int           `yaml:"height" json:"height"`
	// Bin is the browser executable. It is downloaded when empty.
	Bin string `yaml:"bin" json:"bin"`
	// Disabled skips the browser for suites that only talk HTTP.
	Disabled bool `yaml:"disabled" json:"disabled"`
}

type URLConfig struct {
	Node    string `yaml:"node" json:"node"`
	Monitor string `yaml:"monitor" json:"monitor"`
}

// DefaultBackendEnv is the fixed configuration of a throwaway node: no strict mode, no TLS and a
// dummy contract validator.
func DefaultBackendEnv() map[string]string {
	return map[string]string{
		"NUTS_STRICTMODE":              "false",
		"NUTS_NETWORK_ENABLETLS":       "false",
		"NUTS_AUTH_CONTRACTVALIDATORS": "dummy",
		"NUTS_HTTP_DEFAULT_ADDRESS":    ":1323",
	}
}

// DefaultConfig runs the monitor with its mock node as the backend.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Kind:    KindProcess,
			Command: "nuts-monitor",
			Args:    []string{"serve", "--mock-node"},
			Image:   "nutsfoundation/nuts-node:latest",
			Runtime: "docker",
			Ports:   []string{"1323:1323"},
			Env:     DefaultBackendEnv(),
		},
		Readiness: ReadinessConfig{
			Marker:  DefaultMarker,
			Timeout: 5 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:   true,
			SlowMotion: time.Millisecond,
			Width:      1600,
			Height:     1200,
		},
		URLs: URLConfig{
			Node:    "http://localhost:1323",
			Monitor: "http://localhost:1313",
		},
	}
}

// LoadConfig reads a YAML or JSON file over the defaults. JSON is read as YAML.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read harness config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse harness config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from E2E_* variables.
func (c Config) ApplyEnv(environ []string) (Config, error) {
	var errs []error
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k {
		case "E2E_BACKEND":
			c.Backend.Kind = BackendKind(v)
		case "E2E_BACKEND_COMMAND":
			c.Backend.Command = v
		case "E2E_BACKEND_IMAGE":
			c.Backend.Image = v
		case "E2E_CONTAINER_RUNTIME":
			c.Backend.Runtime = v
		case "E2E_NODE_URL":
			c.URLs.Node = v
		case "E2E_MONITOR_URL":
			c.URLs.Monitor = v
		case "E2E_HEALTH_URL":
			c.Readiness.HealthURL = v
		case "E2E_BROWSER_BIN":
			c.Browser.Bin = v
		case "E2E_HEADLESS":
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("E2E_HEADLESS: %w", err))
				continue
			}
			c.Browser.Headless = b
		case "E2E_READY_TIMEOUT":
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("E2E_READY_TIMEOUT: %w", err))
				continue
			}
			c.Readiness.Timeout = d
		}
	}
	if err := errors.Join(errs...); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Validate checks that the configured backend can be started.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend.Kind {
	case KindProcess:
		if c.Backend.Command == "" {
			errs = append(errs, errors.New("process backend needs a command"))
		}
	case KindContainer:
		if c.Backend.Image == "" || c.Backend.Runtime == "" {
			errs = append(errs, errors.New("container backend needs an image and a runtime"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend kind %q", c.Backend.Kind))
	}
	if c.Readiness.Timeout <= 0 {
		errs = append(errs, errors.New("readiness timeout must be positive"))
	}
	for _, p := range c.Backend.Ports {
		if _, err := hostPort(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Probe returns the readiness probe the configuration asks for: the health URL, a blind delay or
// the output marker, in that order.
func (c Config) Probe() ReadinessProbe {
	switch {
	case c.Readiness.HealthURL != "":
		return &HTTPProbe{URL: c.Readiness.HealthURL}
	case c.Readiness.Delay > 0:
		return DelayProbe{Delay: c.Readiness.Delay}
	default:
		marker := c.Readiness.Marker
		if marker == "" {
			marker = DefaultMarker
		}
		return MarkerProbe{Marker: marker}
	}
}

// ReadyTimeout bounds WaitReady. A blind delay gets the timeout on top of the delay.
func (c Config) ReadyTimeout() time.Duration {
	if c.Readiness.HealthURL == "" && c.Readiness.Delay > 0 {
		return c.Readiness.Delay + c.Readiness.Timeout
	}
	return c.Readiness.Timeout
}

// HostPorts returns the host side of the port mappings.
func (c Config) HostPorts() []int {
	var ports []int
	for _, p := range c.Backend.Ports {
		if port, err := hostPort(p); err == nil {
			ports = append(ports, port)
		}
	}
	return ports
}

func hostPort(mapping string) (int, error) {
	host, _, _ := strings.Cut(mapping, ":")
	port, err := strconv.Atoi(host)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port mapping %q", mapping)
	}
	return port, nil
}
