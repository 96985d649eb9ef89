// Package graph runs a set of named, dependency-ordered nodes on a
// jobsys.Scheduler. A Graph is built once and run any number of times, for
// example once per frame.
//
// Nodes may only depend on nodes added before them, so a Graph is acyclic
// by construction.
package graph

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rexengine/jobsys"
)

// node status for one run
const (
	statusPending int32 = iota
	statusOK
	statusFailed
	statusSkipped
)

type node struct {
	name  string
	fn    func(context.Context) error
	after []int
}

// Graph is a dependency graph of named nodes
type Graph struct {
	sched  *jobsys.Scheduler
	config Config
	log    logrus.FieldLogger

	mu    sync.Mutex
	nodes []*node
	index map[string]int

	running atomic.Bool

	// Stats of the most recent run
	runs      atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	lastRun   atomic.Int64 // nanoseconds
}

// Stats provides information about graph execution
type Stats struct {
	Nodes int
	Runs  int64

	// Counts from the most recent run
	Completed int64
	Failed    int64
	Skipped   int64
	LastRun   time.Duration
}

// New creates an empty graph that runs on s
func New(s *jobsys.Scheduler, opts ...Option) *Graph {
	config := BuildConfig(opts)

	return &Graph{
		sched:  s,
		config: config,
		log:    config.logger.WithField("graph", config.name),
		index:  make(map[string]int),
	}
}

// Add appends a node that runs fn after every node named in after.
//
// Example:
//
//	g.Add("input", pollInput)
//	g.Add("physics", stepPhysics, "input")
//	g.Add("render", buildDrawList, "physics")
func (g *Graph) Add(name string, fn func(context.Context) error, after ...string) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNilFunc, name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, name)
	}

	deps := make([]int, 0, len(after))
	for _, dep := range after {
		i, ok := g.index[dep]
		if !ok {
			return fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, name, dep)
		}
		deps = append(deps, i)
	}

	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, &node{name: name, fn: fn, after: deps})
	return nil
}

// Clear removes every node. It must not be called during Run.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = nil
	g.index = make(map[string]int)
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Nodes returns node names in insertion order, which is a valid topological
// order
func (g *Graph) Nodes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		names[i] = n.name
	}
	return names
}

// Run submits every node to the scheduler and waits for all of them.
// The returned error depends on the graph's ErrorMode. If no node failed
// but ctx was cancelled, ctx.Err() is returned.
func (g *Graph) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer g.running.Store(false)

	if ctx == nil {
		ctx = context.Background()
	}

	g.mu.Lock()
	nodes := g.nodes
	g.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		g:      g,
		ctx:    runCtx,
		cancel: cancel,
		status: make([]atomic.Int32, len(nodes)),
	}

	start := time.Now()
	handles := make([]jobsys.JobHandle, 0, len(nodes))

	for i, n := range nodes {
		deps := make([]jobsys.JobHandle, len(n.after))
		for k, d := range n.after {
			deps[k] = handles[d]
		}

		i, n := i, n
		h, err := g.sched.SubmitJob(jobsys.JobSpec{
			Name:         g.config.name + "/" + n.name,
			Work:         func(jobCtx context.Context) { r.execute(jobCtx, i, n) },
			Dependencies: deps,
		})
		if err != nil {
			cancel()
			g.sched.WaitAll(handles...)
			return fmt.Errorf("graph %s: submit %s: %w", g.config.name, n.name, err)
		}
		handles = append(handles, h)
	}

	g.sched.WaitAll(handles...)
	elapsed := time.Since(start)

	var completed, failed, skipped int64
	for i := range r.status {
		switch r.status[i].Load() {
		case statusOK:
			completed++
		case statusFailed:
			failed++
		case statusSkipped:
			skipped++
		}
	}

	g.runs.Add(1)
	g.completed.Store(completed)
	g.failed.Store(failed)
	g.skipped.Store(skipped)
	g.lastRun.Store(int64(elapsed))

	g.log.WithFields(logrus.Fields{
		"nodes":     len(nodes),
		"completed": completed,
		"failed":    failed,
		"skipped":   skipped,
		"elapsed":   elapsed,
	}).Debug("graph run finished")

	return r.result(ctx)
}

// Stats returns current statistics about the graph
func (g *Graph) Stats() Stats {
	return Stats{
		Nodes:     g.Len(),
		Runs:      g.runs.Load(),
		Completed: g.completed.Load(),
		Failed:    g.failed.Load(),
		Skipped:   g.skipped.Load(),
		LastRun:   time.Duration(g.lastRun.Load()),
	}
}

// run is the state of one Graph.Run
type run struct {
	g      *Graph
	ctx    context.Context
	cancel context.CancelFunc
	status []atomic.Int32

	errorsMux sync.Mutex
	errors    []error
	failOnce  sync.Once
	firstErr  error
}

// execute runs node i as a scheduler job
func (r *run) execute(jobCtx context.Context, i int, n *node) {
	if r.ctx.Err() != nil || !r.depsOK(n) {
		r.status[i].Store(statusSkipped)
		r.observe(NodeResult{Node: n.name, Skipped: true})
		return
	}

	// Node sees cancellation of either the run or the scheduler.
	ctx, cancel := context.WithCancel(r.ctx)
	stop := context.AfterFunc(jobCtx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	start := time.Now()
	err := r.call(ctx, n)
	elapsed := time.Since(start)

	if err != nil {
		r.status[i].Store(statusFailed)
		r.handleError(&NodeError{Node: n.name, Err: err})
	} else {
		r.status[i].Store(statusOK)
	}
	r.observe(NodeResult{Node: n.name, Err: err, Duration: elapsed})
}

func (r *run) observe(res NodeResult) {
	if r.g.config.observer != nil {
		r.g.config.observer(res)
	}
}

// call runs the node function with panic recovery
func (r *run) call(ctx context.Context, n *node) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{
				Value: v,
				Stack: string(debug.Stack()),
			}
		}
	}()
	return n.fn(ctx)
}

// depsOK reports whether every dependency succeeded. Under IgnoreErrors any
// finished dependency counts.
func (r *run) depsOK(n *node) bool {
	for _, d := range n.after {
		switch r.status[d].Load() {
		case statusOK:
		case statusFailed:
			if r.g.config.errorMode != IgnoreErrors {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// handleError processes an error according to the error mode
func (r *run) handleError(err error) {
	switch r.g.config.errorMode {
	case IgnoreErrors:
		return

	case FailFast:
		r.failOnce.Do(func() {
			r.firstErr = err
			r.cancel()
		})

	case CollectAll:
		r.errorsMux.Lock()
		r.errors = append(r.errors, err)
		r.errorsMux.Unlock()
	}
}

func (r *run) result(parent context.Context) error {
	switch r.g.config.errorMode {
	case FailFast:
		if r.firstErr != nil {
			return r.firstErr
		}
	case CollectAll:
		r.errorsMux.Lock()
		defer r.errorsMux.Unlock()
		if len(r.errors) > 0 {
			errs := make([]error, len(r.errors))
			copy(errs, r.errors)
			return &AggregateError{Errors: errs}
		}
	}
	return parent.Err()
}
