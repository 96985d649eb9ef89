package jobsys

import (
	"context"
	"runtime/debug"
)

// Future is the result of a job started with Go.
type Future[T any] struct {
	sched *Scheduler
	h     JobHandle

	// Written by the job before it completes; read after WaitFor.
	val T
	err error
}

// Go submits fn as a job and returns a Future for its result. The job runs
// after deps complete. A panic inside fn is recovered and returned from Wait
// as a *JobPanicError instead of reaching the fatal handler.
//
// Example:
//
//	f, _ := jobsys.Go(s, func(ctx context.Context) (int, error) {
//	    return computeChecksum(ctx, data)
//	})
//	sum, err := f.Wait()
func Go[T any](s *Scheduler, fn func(context.Context) (T, error), deps ...JobHandle) (*Future[T], error) {
	if fn == nil {
		return nil, ErrNilTask
	}

	f := &Future[T]{sched: s}

	h, err := s.SubmitJob(JobSpec{
		Work: func(ctx context.Context) {
			defer func() {
				if r := recover(); r != nil {
					f.err = &JobPanicError{
						Name:   "future",
						Worker: -1,
						Value:  r,
						Stack:  string(debug.Stack()),
					}
				}
			}()
			f.val, f.err = fn(ctx)
		},
		Dependencies: deps,
	})
	if err != nil {
		return nil, err
	}

	f.h = h
	return f, nil
}

// Handle returns the job handle, usable as a dependency for other jobs.
func (f *Future[T]) Handle() JobHandle {
	return f.h
}

// Done reports whether the result is available without blocking.
func (f *Future[T]) Done() bool {
	return f.sched.IsComplete(f.h)
}

// Wait blocks until the job has completed and returns its result.
func (f *Future[T]) Wait() (T, error) {
	f.sched.WaitFor(f.h)
	return f.val, f.err
}
