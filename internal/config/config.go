// Package config loads the monitor configuration from a YAML file, NUTS_* environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/pkg/client"
)

const (
	DefaultConfigFile = "server.config.yaml"
	DefaultNodeAddr   = "http://localhost:1323"
	DefaultPort       = 1313
	DefaultLogLevel   = "info"

	envPrefix = "NUTS_"
)

// Config of the monitor service.
type Config struct {
	ConfigFile           string `mapstructure:"configfile" yaml:"-"`
	NutsNodeAddr         string `mapstructure:"nutsnodeaddr" yaml:"nutsnodeaddr"`
	NutsNodeInternalAddr string `mapstructure:"nutsnodeinternaladdr" yaml:"nutsnodeinternaladdr"`
	NutsNodeAPIKeyFile   string `mapstructure:"nutsnodeapikeyfile" yaml:"nutsnodeapikeyfile"`
	NutsNodeAPIUser      string `mapstructure:"nutsnodeapiuser" yaml:"nutsnodeapiuser"`
	NutsNodeAPIAudience  string `mapstructure:"nutsnodeapiaudience" yaml:"nutsnodeapiaudience"`
	// NutsNodeStreamAddr is the NATS address of the node's transaction stream. Streaming is off when empty.
	NutsNodeStreamAddr string `mapstructure:"nutsnodestreamaddr" yaml:"nutsnodestreamaddr"`
	WithMockNode       bool   `mapstructure:"withmocknode" yaml:"withmocknode"`
	// RedisAddr enables the shared root DID mapping and the history lock.
	RedisAddr string `mapstructure:"redisaddr" yaml:"redisaddr"`
	LogLevel  string `mapstructure:"loglevel" yaml:"loglevel"`
	Port      int    `mapstructure:"port" yaml:"port"`
	// Live serves the web application from disk instead of the embedded copy.
	Live bool `mapstructure:"live" yaml:"live"`
	// HTTPDefaultAddress is an additional listen address. With the mock node enabled the monitor
	// then stands in for a Nuts node configured through NUTS_HTTP_DEFAULT_ADDRESS.
	HTTPDefaultAddress string `mapstructure:"http_default_address" yaml:"http_default_address"`
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{
		ConfigFile:   DefaultConfigFile,
		NutsNodeAddr: DefaultNodeAddr,
		LogLevel:     DefaultLogLevel,
		Port:         DefaultPort,
	}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"configfile":           "configfile",
	"port":                 "port",
	"mock-node":            "withmocknode",
	"live":                 "live",
	"loglevel":             "loglevel",
	"nutsnodeaddr":         "nutsnodeaddr",
	"nutsnodeinternaladdr": "nutsnodeinternaladdr",
	"redisaddr":            "redisaddr",
}

// RegisterFlags adds the configuration flags of the serve command.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("configfile", d.ConfigFile, "Path to the YAML configuration file")
	fs.Int("port", d.Port, "Port the monitor listens on")
	fs.Bool("mock-node", false, "Serve a mock Nuts node under /mock and monitor it")
	fs.Bool("live", false, "Serve the web application from the web directory")
	fs.String("loglevel", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("nutsnodeaddr", d.NutsNodeAddr, "Address of the Nuts node")
	fs.String("nutsnodeinternaladdr", "", "Address of the Nuts node internal API")
	fs.String("redisaddr", "", "Redis address for shared state")
}

// Load merges the configuration file, the environment and changed flags. fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	return load(fs, os.Environ())
}

func load(fs *pflag.FlagSet, environ []string) (Config, error) {
	values := map[string]any{}

	env := envValues(environ)
	path := DefaultConfigFile
	explicit := false
	if v, ok := env["configfile"]; ok {
		path, explicit = v.(string), true
	}
	if fs != nil && fs.Changed("configfile") {
		path, _ = fs.GetString("configfile")
		explicit = true
	}

	file, err := readFile(path, explicit)
	if err != nil {
		return Config{}, err
	}
	for k, v := range file {
		values[strings.ToLower(k)] = v
	}
	for k, v := range env {
		values[k] = v
	}
	if fs != nil {
		fs.Visit(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok {
				values[key] = f.Value.String()
			}
		})
	}
	values["configfile"] = path

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(values); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func envValues(environ []string) map[string]any {
	values := map[string]any{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, envPrefix) {
			continue
		}
		values[strings.ToLower(strings.TrimPrefix(k, envPrefix))] = v
	}
	return values
}

func readFile(path string, explicit bool) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return values, nil
}

// Validate checks the settings that depend on each other.
func (c Config) Validate() error {
	var errs []error
	if c.NutsNodeAddr == "" && !c.WithMockNode {
		errs = append(errs, errors.New("nutsnodeaddr must be set"))
	}
	if c.NutsNodeAPIKeyFile != "" && (c.NutsNodeAPIUser == "" || c.NutsNodeAPIAudience == "") {
		errs = append(errs, errors.New("nutsnodeapiuser and nutsnodeapiaudience are required with nutsnodeapikeyfile"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level returns the configured log level.
func (c Config) Level() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Addrs returns every address the monitor listens on.
func (c Config) Addrs() []string {
	addrs := []string{c.Addr()}
	if c.HTTPDefaultAddress != "" && c.HTTPDefaultAddress != c.Addr() {
		addrs = append(addrs, c.HTTPDefaultAddress)
	}
	return addrs
}

// ClientConfig returns the node client configuration, reading the API key when configured.
// With the mock node enabled the client talks to the monitor itself.
func (c Config) ClientConfig() (client.Config, error) {
	cfg := client.Config{
		Address:         c.NutsNodeAddr,
		InternalAddress: c.NutsNodeInternalAddr,
		APIUser:         c.NutsNodeAPIUser,
		APIAudience:     c.NutsNodeAPIAudience,
	}
	if c.WithMockNode {
		cfg.Address = fmt.Sprintf("http://localhost:%d/mock", c.Port)
		cfg.InternalAddress = ""
	}
	if c.NutsNodeAPIKeyFile == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(c.NutsNodeAPIKeyFile)
	if err != nil {
		return client.Config{}, fmt.Errorf("failed to read API key: %w", err)
	}
	key, err := client.ParseAPIKey(data)
	if err != nil {
		return client.Config{}, fmt.Errorf("failed to parse API key: %w", err)
	}
	cfg.APIKey = key
	return cfg, nil
}
