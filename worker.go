package jobsys

import (
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/cpu"

	"github.com/rexengine/jobsys/syncprim"
)

// WorkerState represents the current state of a worker
type WorkerState int32

const (
	StateRunning WorkerState = iota
	StateSpinning
	StateParked
	StateShutdown
)

func (s WorkerState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateSpinning:
		return "SPINNING"
	case StateParked:
		return "PARKED"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// worker owns one deque and one goroutine
type worker struct {
	id    int
	sched *Scheduler
	log   logrus.FieldLogger

	// queue is pushed/popped by this worker and stolen from by the others
	queue *WorkStealingQueue[JobHandle]

	_ cpu.CacheLinePad

	state atomic.Int32 // WorkerState

	// Metrics
	executed atomic.Uint64
	stolen   atomic.Uint64
	failed   atomic.Uint64

	// Stealing metadata, owner only
	seed uint32
}

// newWorker creates a new worker
func newWorker(id int, s *Scheduler) *worker {
	w := &worker{
		id:    id,
		sched: s,
		log:   s.log.WithField("worker", id),
		queue: NewWorkStealingQueue[JobHandle](s.config.QueueLock, s.config.QueueCapacity),
		seed:  uint32(time.Now().UnixNano()) ^ (uint32(id+1) * 2654435761),
	}
	if w.seed == 0 {
		w.seed = 1
	}
	w.state.Store(int32(StateRunning))
	return w
}

// run is the main worker loop
func (w *worker) run(started *syncprim.Barrier) {
	cfg := &w.sched.config

	if cfg.PinWorkerThreads {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	if cfg.OnWorkerStart != nil {
		cfg.OnWorkerStart(w.id)
	}
	w.log.Debug("worker started")
	started.Wait()

	for {
		if h, ok := w.findJob(); ok {
			w.execute(h)
			continue
		}

		if w.sched.drained() {
			break
		}

		w.park()
	}

	w.setState(StateShutdown)

	if cfg.OnWorkerStop != nil {
		cfg.OnWorkerStop(w.id)
	}
	w.log.WithField("executed", w.executed.Load()).Debug("worker stopped")
}

// findJob searches for runnable work, spinning briefly before giving up
//
// Priority:
// 1. Own queue (LIFO - most recent job first)
// 2. Injection queue (jobs with no affinity)
// 3. Steal from other workers (FIFO - oldest work)
// 4. Repeat the above SpinCount times, yielding between rounds
func (w *worker) findJob() (JobHandle, bool) {
	if h, ok := w.tryFind(); ok {
		return h, true
	}

	spins := w.sched.config.SpinCount
	if spins == 0 {
		return JobHandle{}, false
	}

	w.setState(StateSpinning)
	for i := 0; i < spins; i++ {
		runtime.Gosched()
		if h, ok := w.tryFind(); ok {
			w.setState(StateRunning)
			return h, true
		}
	}
	w.setState(StateRunning)

	return JobHandle{}, false
}

func (w *worker) tryFind() (JobHandle, bool) {
	if h, ok := w.queue.TryPop(); ok {
		return h, true
	}
	if h, ok := w.sched.injection.TryPop(); ok {
		return h, true
	}
	return w.steal()
}

// steal starts at a random victim and sweeps the rest round-robin, so a
// single pass visits every other worker once
func (w *worker) steal() (JobHandle, bool) {
	workers := w.sched.workers
	n := len(workers)
	if n <= 1 {
		return JobHandle{}, false
	}

	start := w.randomVictim(n)
	for i := 0; i < n; i++ {
		victim := (start + i) % n
		if victim == w.id {
			continue
		}

		if h, ok := workers[victim].queue.TrySteal(); ok {
			w.stolen.Add(1)
			w.sched.metrics.stolen.Add(1)
			return h, true
		}
	}

	return JobHandle{}, false
}

// randomVictim selects a random worker using XorShift PRNG
func (w *worker) randomVictim(n int) int {
	w.seed ^= w.seed << 13
	w.seed ^= w.seed >> 17
	w.seed ^= w.seed << 5
	return int(w.seed % uint32(n))
}

// park sleeps on the scheduler's idle condition until work is announced,
// shutdown drains, or MaxParkTime elapses
//
// sleeping is raised before the re-check under idleMu, and producers read
// it after publishing work, so a wakeup cannot fall between the two.
func (w *worker) park() {
	s := w.sched

	w.setState(StateParked)
	s.sleeping.Add(1)

	s.idleMu.Lock()
	if !s.hasQueuedWork() && !s.drained() {
		s.idle.WaitTimeout(s.config.MaxParkTime)
	}
	s.idleMu.Unlock()

	s.sleeping.Add(-1)
	w.setState(StateRunning)
}

// execute runs the job behind h and completes it
func (w *worker) execute(h JobHandle) {
	s := w.sched

	j, ok := s.jobs.Get(h)
	if !ok {
		// Queued handles are live until completion; a miss means the
		// table was corrupted.
		w.log.WithField("job", h.String()).Error("queued job missing from job table")
		return
	}

	start := time.Now()
	if !w.runJob(h, j) {
		w.failed.Add(1)
	}
	s.recordLatency(time.Since(start))

	s.complete(w, h, j)
	w.executed.Add(1)
}

// runJob executes the work function with panic recovery
// Returns false if the job panicked and the fatal handler returned
func (w *worker) runJob(h JobHandle, j *job) (ok bool) {
	s := w.sched

	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.metrics.panicked.Add(1)

			perr := &JobPanicError{
				Job:    h,
				Name:   j.name,
				Worker: w.id,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
			w.log.WithFields(logrus.Fields{
				"job":  h.String(),
				"name": j.name,
			}).WithError(perr).Error("job panicked")

			s.fatal(perr)
		}
	}()

	j.work(s.ctx)
	return true
}

func (w *worker) setState(st WorkerState) {
	w.state.Store(int32(st))
}

// getState returns the current worker state
func (w *worker) getState() WorkerState {
	return WorkerState(w.state.Load())
}
