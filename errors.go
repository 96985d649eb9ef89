package jobsys

import "fmt"

// Common errors returned by the scheduler.
var (
	// ErrSchedulerShutdown is returned when submitting to a scheduler whose
	// Shutdown has begun. Work already accepted still runs to completion.
	//
	// Example:
	//  s.Shutdown()
	//  _, err := s.Submit(task)
	//  if errors.Is(err, jobsys.ErrSchedulerShutdown) {
	//      log.Println("Cannot submit: scheduler is shutting down")
	//  }
	ErrSchedulerShutdown = &SchedulerError{msg: "scheduler is shut down"}

	// ErrNilTask is returned when a job has no work function.
	ErrNilTask = &SchedulerError{msg: "task is nil"}

	// ErrSelfDependency is returned when a job lists its own handle as a
	// dependency. No job is created. This is the only dependency cycle the
	// scheduler detects; longer cycles deadlock and are the caller's
	// responsibility.
	ErrSelfDependency = &SchedulerError{msg: "job depends on itself"}
)

// SchedulerError represents an error that occurred within the scheduler.
// It wraps underlying errors and supports errors.Is and errors.As.
type SchedulerError struct {
	msg string // Human-readable error message
	err error  // Underlying error (if any)
}

// Error returns a formatted error message.
func (e *SchedulerError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("jobsys: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("jobsys: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e *SchedulerError) Unwrap() error {
	return e.err
}

// errInvalidConfig creates an error for invalid scheduler configuration.
func errInvalidConfig(msg string) error {
	return &SchedulerError{msg: "invalid config: " + msg}
}

// JobPanicError describes a job whose work function panicked. It is handed
// to Config.FatalHandler.
type JobPanicError struct {
	Job    JobHandle
	Name   string
	Worker int
	Value  interface{}
	Stack  string
}

func (e *JobPanicError) Error() string {
	name := e.Name
	if name == "" {
		name = e.Job.String()
	}
	return fmt.Sprintf("jobsys: job %s panicked on worker %d: %v", name, e.Worker, e.Value)
}

// Unwrap exposes the panic value if it was itself an error.
func (e *JobPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
