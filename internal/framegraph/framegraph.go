// Package framegraph loads frame descriptions from YAML and turns them into
// runnable graphs whose nodes simulate their declared cost with busy work.
package framegraph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rexengine/jobsys"
	"github.com/rexengine/jobsys/graph"
)

// Frame is one frame's worth of work
type Frame struct {
	Name  string `yaml:"name"`
	Nodes []Node `yaml:"nodes"`
}

// Node is a unit of simulated work
type Node struct {
	Name  string   `yaml:"name"`
	Cost  Duration `yaml:"cost"`
	After []string `yaml:"after,omitempty"`
}

// Duration is a time.Duration written as a time.ParseDuration string
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load reads and validates a frame file
func Load(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a frame description
func Parse(data []byte) (*Frame, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f Frame
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks that every node is named once, costs are non-negative and
// every dependency refers to an earlier node
func (f *Frame) Validate() error {
	if len(f.Nodes) == 0 {
		return errors.New("frame has no nodes")
	}

	seen := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node %d has no name", i)
		}
		if seen[n.Name] {
			return fmt.Errorf("node %s: %w", n.Name, graph.ErrDuplicateNode)
		}
		if n.Cost < 0 {
			return fmt.Errorf("node %s: negative cost %s", n.Name, time.Duration(n.Cost))
		}
		for _, dep := range n.After {
			if !seen[dep] {
				return fmt.Errorf("node %s depends on %s: %w", n.Name, dep, graph.ErrUnknownDependency)
			}
		}
		seen[n.Name] = true
	}
	return nil
}

// TotalCost is the sum of all node costs, the frame time on one worker
func (f *Frame) TotalCost() time.Duration {
	var total time.Duration
	for _, n := range f.Nodes {
		total += time.Duration(n.Cost)
	}
	return total
}

// CriticalPath is the most expensive dependency chain, the frame time with
// unlimited workers
func (f *Frame) CriticalPath() time.Duration {
	finish := make(map[string]time.Duration, len(f.Nodes))
	var longest time.Duration

	for _, n := range f.Nodes {
		var start time.Duration
		for _, dep := range n.After {
			if finish[dep] > start {
				start = finish[dep]
			}
		}
		finish[n.Name] = start + time.Duration(n.Cost)
		if finish[n.Name] > longest {
			longest = finish[n.Name]
		}
	}
	return longest
}

// Build returns a graph on s with one node per frame node
func (f *Frame) Build(s *jobsys.Scheduler, opts ...graph.Option) (*graph.Graph, error) {
	opts = append([]graph.Option{graph.WithName(f.Name)}, opts...)
	g := graph.New(s, opts...)

	for _, n := range f.Nodes {
		cost := time.Duration(n.Cost)
		work := func(ctx context.Context) error {
			return Spin(ctx, cost)
		}
		if err := g.Add(n.Name, work, n.After...); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Spin keeps the calling goroutine busy for d, yielding periodically.
// Returns ctx.Err() if ctx is cancelled first.
func Spin(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for i := 0; time.Now().Before(deadline); i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			runtime.Gosched()
		}
	}
	return nil
}
