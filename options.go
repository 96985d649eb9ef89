package jobsys

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rexengine/jobsys/syncprim"
)

// Option configures a Scheduler.
type Option func(*Config)

// WithConfig replaces the whole configuration. Options after it still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

// WithNumWorkers sets the number of workers. 0 means runtime.GOMAXPROCS(0).
func WithNumWorkers(n int) Option {
	return func(c *Config) { c.NumWorkers = n }
}

// WithQueueCapacity sets the initial capacity of each worker's deque.
func WithQueueCapacity(n int) Option {
	return func(c *Config) { c.QueueCapacity = n }
}

// WithInjectionQueueSize sets the capacity of the shared injection queue.
func WithInjectionQueueSize(n int) Option {
	return func(c *Config) { c.InjectionQueueSize = n }
}

// WithQueueLock selects the lock guarding worker deques.
func WithQueueLock(kind syncprim.LockKind) Option {
	return func(c *Config) { c.QueueLock = kind }
}

// WithSpinCount sets how long idle workers spin before parking.
func WithSpinCount(n int) Option {
	return func(c *Config) { c.SpinCount = n }
}

// WithMaxParkTime bounds how long a parked worker sleeps between checks.
func WithMaxParkTime(d time.Duration) Option {
	return func(c *Config) { c.MaxParkTime = d }
}

// WithPinWorkerThreads locks each worker to an OS thread.
func WithPinWorkerThreads(pin bool) Option {
	return func(c *Config) { c.PinWorkerThreads = pin }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithFatalHandler sets the handler for panicking jobs.
func WithFatalHandler(fn func(*JobPanicError)) Option {
	return func(c *Config) { c.FatalHandler = fn }
}

// WithWorkerHooks sets callbacks run on each worker goroutine as it starts
// and stops.
//
// Example:
//
//	s, _ := jobsys.New(
//	    jobsys.WithWorkerHooks(
//	        func(workerID int) { log.Printf("Worker %d started", workerID) },
//	        func(workerID int) { log.Printf("Worker %d stopped", workerID) },
//	    ),
//	)
func WithWorkerHooks(onStart, onStop func(workerID int)) Option {
	return func(c *Config) {
		c.OnWorkerStart = onStart
		c.OnWorkerStop = onStop
	}
}
