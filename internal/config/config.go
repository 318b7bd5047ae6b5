// Package config provides unified configuration loading for gossipsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/gossipsim/internal/constants"
	"github.com/nvandessel/gossipsim/internal/gossip"
)

// SimConfig contains all gossipsim configuration settings.
type SimConfig struct {
	// Topology describes the network the engine builds.
	Topology TopologyConfig `json:"topology" yaml:"topology"`

	// Parameters are the propagation knobs handed to the engine.
	Parameters gossip.Parameters `json:"parameters" yaml:"parameters"`

	// Run controls headless runs and the auto-stepping loop.
	Run RunConfig `json:"run" yaml:"run"`

	// Logging contains settings for operational and step-event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Trace configures the per-step statistics recorder.
	Trace TraceConfig `json:"trace" yaml:"trace"`

	// Server configures the HTTP snapshot API.
	Server ServerConfig `json:"server" yaml:"server"`
}

// TopologyConfig describes node placement and connection.
type TopologyConfig struct {
	Nodes  int     `json:"nodes" yaml:"nodes"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`

	// Seed drives every random draw. 0 selects the built-in default seed.
	Seed int64 `json:"seed" yaml:"seed"`

	Margin       float64 `json:"margin" yaml:"margin"`
	RadiusFactor float64 `json:"radius_factor" yaml:"radius_factor"`
}

// RunConfig controls how long and how fast a simulation runs.
type RunConfig struct {
	// Steps caps the number of steps. 0 runs until the epidemic dies out.
	Steps int `json:"steps" yaml:"steps"`

	// Interval is the pause between steps. 0 steps as fast as possible.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// InitialInfected lists the ids infected at start. Empty means node 0.
	InitialInfected []int `json:"initial_infected,omitempty" yaml:"initial_infected,omitempty"`
}

// LoggingConfig configures gossipsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables step-event logging to <events_dir>/events.jsonl.
	// "trace" additionally logs every delivery.
	Level string `json:"level" yaml:"level"`

	// EventsDir is where events.jsonl is written. Supports ${VAR} syntax.
	EventsDir string `json:"events_dir,omitempty" yaml:"events_dir,omitempty"`
}

// TraceConfig configures the statistics trace store.
type TraceConfig struct {
	// Path is the SQLite file to record into. Empty disables recording.
	// Supports ${VAR} syntax.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ServerConfig configures the HTTP snapshot API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Default returns a SimConfig with sensible defaults.
func Default() *SimConfig {
	return &SimConfig{
		Topology: TopologyConfig{
			Nodes:        constants.DefaultNodeCount,
			Width:        constants.DefaultWidth,
			Height:       constants.DefaultHeight,
			Seed:         constants.DefaultSeed,
			Margin:       constants.DefaultMargin,
			RadiusFactor: constants.DefaultRadiusFactor,
		},
		Parameters: gossip.DefaultParameters(),
		Run: RunConfig{
			Steps:    constants.DefaultRunSteps,
			Interval: constants.DefaultIntervalMillis * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: constants.DefaultLogLevel,
		},
		Server: ServerConfig{
			Addr: constants.DefaultServerAddr,
		},
	}
}

// DefaultPath returns ~/.gossipsim/config.yaml, or "" if the home directory is unknown.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".gossipsim", "config.yaml")
}

// Load loads configuration from path (or the default location when path is
// empty) and applies environment variable overrides.
// Order: defaults -> config file -> environment variables
func Load(path string) (*SimConfig, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil || explicit {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Unknown keys are rejected.
func LoadFromFile(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*SimConfig, error) {
	config := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Trace.Path = expandEnvVars(config.Trace.Path)
	config.Logging.EventsDir = expandEnvVars(config.Logging.EventsDir)
	return config, nil
}

// Marshal renders the configuration as YAML.
func (c *SimConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that the configuration is valid.
func (c *SimConfig) Validate() error {
	t := c.Topology
	if t.Nodes < 1 || t.Nodes > constants.MaxNodeCount {
		return fmt.Errorf("topology.nodes must be between 1 and %d, got %d", constants.MaxNodeCount, t.Nodes)
	}
	if t.Margin < 0 {
		return fmt.Errorf("topology.margin must be non-negative, got %v", t.Margin)
	}
	if t.Width <= 2*t.Margin || t.Height <= 2*t.Margin {
		return fmt.Errorf("topology region %vx%v has no interior with margin %v", t.Width, t.Height, t.Margin)
	}
	if t.RadiusFactor <= 0 {
		return fmt.Errorf("topology.radius_factor must be positive, got %v", t.RadiusFactor)
	}

	if err := c.Parameters.Validate(); err != nil {
		return fmt.Errorf("parameters: %w", err)
	}

	if c.Run.Steps < 0 {
		return fmt.Errorf("run.steps must be non-negative, got %d", c.Run.Steps)
	}
	if c.Run.Interval < 0 {
		return fmt.Errorf("run.interval must be non-negative, got %v", c.Run.Interval)
	}
	for _, id := range c.Run.InitialInfected {
		if id < 0 || id >= t.Nodes {
			return fmt.Errorf("run.initial_infected: node %d out of range [0, %d)", id, t.Nodes)
		}
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numbers are reported rather than silently ignored.
func applyEnvOverrides(config *SimConfig) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"GOSSIPSIM_NODES", &config.Topology.Nodes},
		{"GOSSIPSIM_FANOUT", &config.Parameters.Fanout},
		{"GOSSIPSIM_MAX_HOPS", &config.Parameters.MaxHopCount},
		{"GOSSIPSIM_STEPS", &config.Run.Steps},
	}
	for _, e := range ints {
		if v := os.Getenv(e.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.name, err)
			}
			*e.dst = n
		}
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"GOSSIPSIM_TRANSMISSION", &config.Parameters.TransmissionProbability},
		{"GOSSIPSIM_INFECTION", &config.Parameters.InfectionProbability},
		{"GOSSIPSIM_RECOVERY", &config.Parameters.RecoveryProbability},
	}
	for _, e := range floats {
		if v := os.Getenv(e.name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", e.name, err)
			}
			*e.dst = f
		}
	}

	if v := os.Getenv("GOSSIPSIM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("GOSSIPSIM_SEED: %w", err)
		}
		config.Topology.Seed = n
	}

	if v := os.Getenv("GOSSIPSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("GOSSIPSIM_EVENTS_DIR"); v != "" {
		config.Logging.EventsDir = v
	}
	if v := os.Getenv("GOSSIPSIM_TRACE_PATH"); v != "" {
		config.Trace.Path = v
	}
	if v := os.Getenv("GOSSIPSIM_ADDR"); v != "" {
		config.Server.Addr = v
	}
	return nil
}

// ParseIDList parses a comma-separated list of node ids such as "0,5,9".
// Blank input yields nil.
func ParseIDList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q: %w", p, err)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
