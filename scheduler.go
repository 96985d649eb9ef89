package jobsys

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rexengine/jobsys/handle"
	"github.com/rexengine/jobsys/syncprim"
)

// schedulerState represents scheduler lifecycle states
type schedulerState uint32

const (
	stateRunning schedulerState = iota
	stateStopping
	stateStopped
)

// Scheduler runs dependency-ordered jobs on a fixed set of work-stealing
// workers
type Scheduler struct {
	id     uuid.UUID
	config Config
	log    logrus.FieldLogger

	workers   []*worker
	injection *injectionQueue[JobHandle]
	jobs      *handle.Map[jobTag, *job]

	// ctx is handed to every job and cancelled when Shutdown begins
	ctx    context.Context
	cancel context.CancelFunc

	// Lifecycle management
	state        atomic.Uint32 // schedulerState
	outstanding  atomic.Int64  // accepted jobs not yet completed
	wg           sync.WaitGroup
	shutdownOnce sync.Once

	// worker id for round-robin distribution of jobs
	nextWorker atomic.Uint64

	// Idle workers park on idle. sleeping is the number parked or about to.
	idleMu   sync.Mutex
	idle     *syncprim.Cond
	sleeping atomic.Int32

	// WaitFor callers block on doneCond. waiters gates the Broadcast.
	doneMu   sync.Mutex
	doneCond *sync.Cond
	waiters  atomic.Int32

	// Metrics
	metrics schedulerMetrics

	// Latency tracking, microseconds
	latencySum   atomic.Uint64
	latencyCount atomic.Uint64
	latencyMax   atomic.Uint64
}

// schedulerMetrics tracks scheduler-wide statistics
type schedulerMetrics struct {
	submitted atomic.Uint64
	completed atomic.Uint64
	rejected  atomic.Uint64
	panicked  atomic.Uint64
	stolen    atomic.Uint64
	injected  atomic.Uint64
}

// New creates a scheduler and starts its workers.
// It returns an error if the configuration is invalid.
//
// Example:
//
//	s, err := jobsys.New(
//	    jobsys.WithNumWorkers(4),
//	    jobsys.WithQueueLock(syncprim.Blocking),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Shutdown()
func New(opts ...Option) (*Scheduler, error) {
	cfg := DefaultConfig()

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = DefaultConfig().NumWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		id:        uuid.New(),
		config:    cfg,
		injection: newInjectionQueue[JobHandle](cfg.InjectionQueueSize),
		jobs:      handle.NewMap[jobTag, *job](cfg.QueueCapacity),
		workers:   make([]*worker, cfg.NumWorkers),
	}
	s.log = cfg.Logger.WithField("scheduler", s.id.String())
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.idle = syncprim.NewCond(&s.idleMu)
	s.doneCond = sync.NewCond(&s.doneMu)
	s.state.Store(uint32(stateRunning))

	for i := range s.workers {
		s.workers[i] = newWorker(i, s)
	}

	// New returns once every worker has run its start hook.
	started := syncprim.NewBarrier(len(s.workers) + 1)

	s.wg.Add(len(s.workers))
	for _, w := range s.workers {
		go func(wk *worker) {
			defer s.wg.Done()
			wk.run(started)
		}(w)
	}
	started.Wait()

	s.log.WithFields(logrus.Fields{
		"workers":    cfg.NumWorkers,
		"queue_lock": cfg.QueueLock.String(),
	}).Debug("scheduler started")

	return s, nil
}

// Submit schedules task to run after every job in deps has completed.
//
// Returns ErrNilTask if task is nil.
// Returns ErrSchedulerShutdown if Shutdown has begun.
// Returns ErrSelfDependency if deps names the job being created.
//
// Example:
//
//	load, _ := s.Submit(loadAssets)
//	s.Submit(buildScene, load) // runs after loadAssets
func (s *Scheduler) Submit(task func(), deps ...JobHandle) (JobHandle, error) {
	if task == nil {
		return JobHandle{}, ErrNilTask
	}
	return s.SubmitJob(JobSpec{
		Work:         func(context.Context) { task() },
		Dependencies: deps,
	})
}

// SubmitJob schedules a job described by spec.
//
// The job's pending count starts at len(spec.Dependencies)+1. Each live
// dependency registers the new job as a dependent; dependencies that are
// invalid or already completed are counted down immediately. The extra guard
// count is dropped last, so the job cannot be queued while it is still being
// wired up. Whichever decrement reaches zero queues the job, exactly once.
func (s *Scheduler) SubmitJob(spec JobSpec) (JobHandle, error) {
	if spec.Work == nil {
		return JobHandle{}, ErrNilTask
	}

	// Count the job before looking at state so Shutdown cannot observe zero
	// outstanding work while this submission is in progress.
	s.outstanding.Add(1)
	if schedulerState(s.state.Load()) != stateRunning {
		s.metrics.rejected.Add(1)
		s.finishOutstanding()
		return JobHandle{}, ErrSchedulerShutdown
	}

	j := &job{
		work:       spec.Work,
		name:       spec.Name,
		onComplete: spec.OnComplete,
		affinity:   spec.Affinity,
		submitted:  time.Now().UnixNano(),
	}
	j.pending.Store(int32(len(spec.Dependencies) + 1))

	h := s.jobs.Insert(j)

	for _, dep := range spec.Dependencies {
		if dep == h {
			s.jobs.Remove(h)
			s.finishOutstanding()
			return JobHandle{}, ErrSelfDependency
		}
	}

	s.metrics.submitted.Add(1)

	for _, dep := range spec.Dependencies {
		dj, ok := s.jobs.Get(dep)
		if !ok || !dj.addDependent(h) {
			// The guard keeps this above zero.
			j.pending.Add(-1)
		}
	}

	if j.release() {
		s.enqueue(h, j.affinity, nil)
	}

	return h, nil
}

// enqueue places a ready job. Jobs released by a completing worker go on
// that worker's own queue.
func (s *Scheduler) enqueue(h JobHandle, affinity Affinity, local *worker) {
	switch {
	case local != nil:
		local.queue.Push(h)
	case affinity == AffinityNone && s.injection.TryPush(h):
		s.metrics.injected.Add(1)
	default:
		next := s.nextWorker.Add(1)
		s.workers[next%uint64(len(s.workers))].queue.Push(h)
	}

	s.wakeOne()
}

// complete finishes a job that has run:
// 1. close the job and take its dependents
// 2. count each dependent down, queueing those that reach zero locally
// 3. count it, release the slot, then set the completion flag
// 4. run OnComplete and wake WaitFor callers
func (s *Scheduler) complete(w *worker, h JobHandle, j *job) {
	for _, dh := range j.close() {
		dj, ok := s.jobs.Get(dh)
		if ok && dj.release() {
			s.enqueue(dh, dj.affinity, w)
		}
	}

	s.metrics.completed.Add(1)
	s.jobs.Remove(h)
	j.done.Store(true)

	if j.onComplete != nil {
		j.onComplete(h)
	}

	if s.waiters.Load() > 0 {
		s.doneMu.Lock()
		s.doneCond.Broadcast()
		s.doneMu.Unlock()
	}

	s.finishOutstanding()
}

// WaitFor blocks until the job behind h has completed. It returns
// immediately if h is invalid or already complete.
//
// Calling WaitFor from inside a job blocks that worker; if every worker
// does so the scheduler deadlocks.
func (s *Scheduler) WaitFor(h JobHandle) {
	j, ok := s.jobs.Get(h)
	if !ok || j.done.Load() {
		return
	}

	s.waiters.Add(1)
	s.doneMu.Lock()
	for !j.done.Load() {
		s.doneCond.Wait()
	}
	s.doneMu.Unlock()
	s.waiters.Add(-1)
}

// WaitAll waits for every handle in hs.
func (s *Scheduler) WaitAll(hs ...JobHandle) {
	for _, h := range hs {
		s.WaitFor(h)
	}
}

// IsComplete reports whether the job behind h has completed. It never
// blocks. Handles this scheduler never issued report false.
func (s *Scheduler) IsComplete(h JobHandle) bool {
	if j, ok := s.jobs.Get(h); ok {
		return j.done.Load()
	}
	return s.jobs.Expired(h)
}

// Shutdown stops accepting jobs, cancels the context passed to running
// jobs, waits for every accepted job (including ones still waiting on
// dependencies) to finish, and joins the workers.
//
// Multiple calls to Shutdown are safe; later calls block until the first
// has finished. Calling Shutdown from inside a job deadlocks.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.log.WithField("outstanding", s.outstanding.Load()).Info("scheduler shutting down")

		s.state.Store(uint32(stateStopping))
		s.cancel()
		s.wakeAll()

		s.wg.Wait()
		s.state.Store(uint32(stateStopped))

		s.log.WithFields(logrus.Fields{
			"completed": s.metrics.completed.Load(),
			"panicked":  s.metrics.panicked.Load(),
		}).Info("scheduler stopped")
	})
}

// ShuttingDown reports whether Shutdown has begun.
func (s *Scheduler) ShuttingDown() bool {
	return schedulerState(s.state.Load()) != stateRunning
}

// NumWorkers returns the number of workers.
func (s *Scheduler) NumWorkers() int {
	return len(s.workers)
}

// ID returns the scheduler's instance id, also attached to its log entries.
func (s *Scheduler) ID() uuid.UUID {
	return s.id
}

// Context returns the context handed to jobs. It is cancelled when Shutdown
// begins.
func (s *Scheduler) Context() context.Context {
	return s.ctx
}

// drained reports that the workers may exit
func (s *Scheduler) drained() bool {
	return schedulerState(s.state.Load()) != stateRunning && s.outstanding.Load() == 0
}

// hasQueuedWork checks every queue. Advisory.
func (s *Scheduler) hasQueuedWork() bool {
	if s.injection.Len() > 0 {
		return true
	}
	for _, w := range s.workers {
		if !w.queue.Empty() {
			return true
		}
	}
	return false
}

// finishOutstanding drops one accepted job and wakes the workers if it was
// the last one during shutdown.
func (s *Scheduler) finishOutstanding() {
	if s.outstanding.Add(-1) == 0 && schedulerState(s.state.Load()) != stateRunning {
		s.wakeAll()
	}
}

func (s *Scheduler) wakeOne() {
	if s.sleeping.Load() > 0 {
		s.idleMu.Lock()
		s.idle.Signal()
		s.idleMu.Unlock()
	}
}

func (s *Scheduler) wakeAll() {
	s.idleMu.Lock()
	s.idle.Broadcast()
	s.idleMu.Unlock()
}

// fatal hands a job panic to the configured handler. Without one the panic
// is re-raised on the worker, terminating the process.
func (s *Scheduler) fatal(err *JobPanicError) {
	if s.config.FatalHandler != nil {
		s.config.FatalHandler(err)
		return
	}
	panic(err)
}

// recordLatency records job execution latency
func (s *Scheduler) recordLatency(d time.Duration) {
	micros := uint64(d.Microseconds())

	s.latencySum.Add(micros)
	s.latencyCount.Add(1)

	for {
		current := s.latencyMax.Load()
		if micros <= current {
			break
		}
		if s.latencyMax.CompareAndSwap(current, micros) {
			break
		}
	}
}
