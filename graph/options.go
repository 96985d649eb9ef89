package graph

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorMode defines how a Graph handles node errors
type ErrorMode int

const (
	// CollectAll runs every node whose dependencies succeeded and returns all
	// errors as an *AggregateError. Dependents of a failed node are skipped.
	CollectAll ErrorMode = iota
	// FailFast cancels the run on the first error and returns it. Nodes that
	// have not started yet are skipped.
	FailFast
	// IgnoreErrors runs every node regardless of failures and returns nil
	IgnoreErrors
)

func (m ErrorMode) String() string {
	switch m {
	case CollectAll:
		return "collect-all"
	case FailFast:
		return "fail-fast"
	case IgnoreErrors:
		return "ignore"
	default:
		return "unknown"
	}
}

// ParseErrorMode parses the output of ErrorMode.String
func ParseErrorMode(s string) (ErrorMode, error) {
	switch s {
	case "collect-all", "":
		return CollectAll, nil
	case "fail-fast":
		return FailFast, nil
	case "ignore":
		return IgnoreErrors, nil
	default:
		return CollectAll, fmt.Errorf("graph: unknown error mode %q", s)
	}
}

// Config holds configuration for a Graph
type Config struct {
	name      string
	errorMode ErrorMode
	logger    logrus.FieldLogger
	observer  func(NodeResult)
}

// NodeResult describes one node of one run
type NodeResult struct {
	Node     string
	Err      error
	Skipped  bool
	Duration time.Duration
}

// Option configures a Graph
type Option func(*Config)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		name:      "graph",
		errorMode: CollectAll,
		logger:    logrus.StandardLogger(),
	}
}

// BuildConfig creates a config from options, starting with defaults
func BuildConfig(opts []Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// WithErrorMode sets how errors are handled
func WithErrorMode(mode ErrorMode) Option {
	return func(c *Config) { c.errorMode = mode }
}

// WithName names the graph in logs and job names
func WithName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the logger used for run summaries
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNodeObserver sets a function called on the worker goroutine after each
// node finishes or is skipped. It must be safe for concurrent use.
func WithNodeObserver(fn func(NodeResult)) Option {
	return func(c *Config) { c.observer = fn }
}
