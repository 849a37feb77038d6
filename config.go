package dispatch

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mivens/go-dispatch/core"
)

const defaultWorkers = 4

// QueueConfig declares one queue to pre-register on the dispatcher.
type QueueConfig struct {
	Label      string `yaml:"label"`
	Discipline string `yaml:"discipline"` // "serial" or "concurrent"
	Priority   string `yaml:"priority"`   // background|utility|default|initiated|interactive
}

// Config is the file-loadable configuration for a dispatcher.
type Config struct {
	// Workers is the pool's thread budget. Defaults to 4.
	Workers int `yaml:"workers"`

	// StopTimeout bounds graceful shutdown. Defaults to 5s.
	StopTimeout time.Duration `yaml:"-"`

	// MetricsNamespace prefixes exported metric families. Defaults to
	// "dispatch".
	MetricsNamespace string `yaml:"metrics_namespace"`

	// Queues are created and registered at construction time.
	Queues []QueueConfig `yaml:"queues"`
}

// UnmarshalYAML accepts stop_timeout as a duration string ("5s", "1m30s").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Workers          int           `yaml:"workers"`
		StopTimeout      string        `yaml:"stop_timeout"`
		MetricsNamespace string        `yaml:"metrics_namespace"`
		Queues           []QueueConfig `yaml:"queues"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}

	if aux.Workers != 0 {
		c.Workers = aux.Workers
	}
	if aux.MetricsNamespace != "" {
		c.MetricsNamespace = aux.MetricsNamespace
	}
	if aux.Queues != nil {
		c.Queues = aux.Queues
	}
	if aux.StopTimeout != "" {
		d, err := time.ParseDuration(aux.StopTimeout)
		if err != nil {
			return fmt.Errorf("stop_timeout: %w", err)
		}
		c.StopTimeout = d
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() Config {
	return Config{
		Workers:          defaultWorkers,
		StopTimeout:      5 * time.Second,
		MetricsNamespace: "dispatch",
	}
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates YAML config bytes.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values and fills defaults.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "dispatch"
	}

	seen := make(map[string]bool, len(c.Queues))
	for i, qc := range c.Queues {
		if qc.Label == "" {
			return fmt.Errorf("queue %d: label must not be empty", i)
		}
		if seen[qc.Label] {
			return fmt.Errorf("queue %d: duplicate label %q", i, qc.Label)
		}
		seen[qc.Label] = true

		switch Discipline(qc.Discipline) {
		case Serial, Concurrent:
		default:
			return fmt.Errorf("queue %q: unknown discipline %q", qc.Label, qc.Discipline)
		}

		if _, err := ParsePriority(qc.Priority); err != nil {
			return fmt.Errorf("queue %q: %w", qc.Label, err)
		}
	}
	return nil
}

// ParsePriority maps a config label to a priority class. An empty label
// means the default class.
func ParsePriority(label string) (core.TaskPriority, error) {
	switch label {
	case "", "default":
		return core.PriorityDefault, nil
	case "background":
		return core.PriorityBackground, nil
	case "utility":
		return core.PriorityUtility, nil
	case "initiated":
		return core.PriorityInitiated, nil
	case "interactive":
		return core.PriorityInteractive, nil
	default:
		return core.PriorityDefault, fmt.Errorf("unknown priority %q", label)
	}
}

// NewDispatcherFromConfig builds a dispatcher from a validated Config,
// creating every declared queue.
func NewDispatcherFromConfig(cfg Config, schedCfg *core.SchedulerConfig) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := NewDispatcherWithConfig(cfg.Workers, schedCfg)

	for _, qc := range cfg.Queues {
		priority, _ := ParsePriority(qc.Priority)
		if _, err := d.NewQueue(qc.Label, Discipline(qc.Discipline), priority); err != nil {
			d.Shutdown()
			return nil, err
		}
	}
	return d, nil
}
