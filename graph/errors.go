package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateNode is returned by Add when the name is already taken.
	ErrDuplicateNode = errors.New("graph: duplicate node")

	// ErrUnknownDependency is returned by Add when a dependency has not been
	// added yet. Nodes may only depend on earlier nodes.
	ErrUnknownDependency = errors.New("graph: unknown dependency")

	// ErrNilFunc is returned by Add for a nil node function.
	ErrNilFunc = errors.New("graph: nil node function")

	// ErrRunning is returned by Run when the graph is already running.
	ErrRunning = errors.New("graph: already running")

	// ErrSkipped marks a node that did not run because the run was
	// cancelled or a dependency failed.
	ErrSkipped = errors.New("graph: node skipped")
)

// NodeError attributes an error to the node that returned it
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError wraps a recovered node panic
type PanicError struct {
	Value interface{}
	Stack string
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// AggregateError combines the errors of one run (CollectAll mode)
type AggregateError struct {
	Errors []error
}

func (a *AggregateError) Error() string {
	if len(a.Errors) == 0 {
		return "no errors"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d error(s) occurred:", len(a.Errors))
	for i, err := range a.Errors {
		fmt.Fprintf(&b, "\n  [%d] %v", i+1, err)
	}
	return b.String()
}

// Unwrap makes AggregateError compatible with errors.Is/errors.As
func (a *AggregateError) Unwrap() []error {
	return a.Errors
}
