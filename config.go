package jobsys

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rexengine/jobsys/syncprim"
)

// Config contains all configuration options for the scheduler
type Config struct {
	// NumWorkers is the number of worker goroutines
	// If 0, defaults to runtime.GOMAXPROCS(0)
	NumWorkers int

	// QueueCapacity is the initial capacity of each worker's deque
	// Must be a power of 2. Deques grow on demand.
	// Defaults to 256
	QueueCapacity int

	// InjectionQueueSize is the capacity of the shared queue used for jobs
	// submitted without worker affinity
	// Must be a power of 2. Defaults to 1024
	InjectionQueueSize int

	// QueueLock selects the lock guarding each worker's deque
	// Defaults to syncprim.Spin
	QueueLock syncprim.LockKind

	// SpinCount is the number of iterations an idle worker spins before
	// parking. Higher values reduce wake latency but burn CPU when idle
	// Defaults to 30
	SpinCount int

	// MaxParkTime is the longest a parked worker sleeps before re-checking
	// the queues on its own
	// Defaults to 10ms
	MaxParkTime time.Duration

	// PinWorkerThreads locks each worker goroutine to its own OS thread
	PinWorkerThreads bool

	// Logger receives scheduler lifecycle and fault logs
	// Defaults to logrus.StandardLogger()
	Logger logrus.FieldLogger

	// FatalHandler is called on the worker goroutine when a job panics.
	// If nil, the panic is logged and re-raised, which terminates the
	// process. If the handler returns, the job is treated as completed so
	// its dependents are not stranded.
	FatalHandler func(*JobPanicError)

	// OnWorkerStart is called when a worker starts
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops
	OnWorkerStop func(workerID int)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		NumWorkers:         runtime.GOMAXPROCS(0),
		QueueCapacity:      256,
		InjectionQueueSize: 1024,
		QueueLock:          syncprim.Spin,
		SpinCount:          30,
		MaxParkTime:        10 * time.Millisecond,
	}
}

// validate checks the configuration and returns an error if invalid
func (c *Config) validate() error {
	if c.NumWorkers < 0 {
		return errInvalidConfig("NumWorkers must be >= 0")
	}

	if c.QueueCapacity <= 0 || !isPowerOfTwo(c.QueueCapacity) {
		return errInvalidConfig("QueueCapacity must be a positive power of 2")
	}

	if c.InjectionQueueSize < 2 || !isPowerOfTwo(c.InjectionQueueSize) {
		return errInvalidConfig("InjectionQueueSize must be a power of 2 >= 2")
	}

	switch c.QueueLock {
	case syncprim.Spin, syncprim.Blocking, syncprim.DeadlockChecked:
	default:
		return errInvalidConfig("unknown QueueLock " + c.QueueLock.String())
	}

	if c.SpinCount < 0 {
		return errInvalidConfig("SpinCount must be >= 0")
	}

	if c.MaxParkTime <= 0 {
		return errInvalidConfig("MaxParkTime must be > 0")
	}

	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
