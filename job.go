package jobsys

import (
	"context"
	"sync/atomic"

	"github.com/rexengine/jobsys/handle"
	"github.com/rexengine/jobsys/syncprim"
)

// jobTag scopes handles to the scheduler's job table.
type jobTag struct{}

// JobHandle identifies a submitted job. It stays safe to use after the job
// finishes: the slot it named is recycled under a new generation, so a stale
// handle never aliases a later job.
type JobHandle = handle.Strong[jobTag]

// Affinity controls where a job with no pending dependencies is queued.
type Affinity int

const (
	// AffinityWorker queues the job on a worker's own deque, chosen
	// round-robin.
	AffinityWorker Affinity = iota

	// AffinityNone queues the job on the shared injection queue so the first
	// idle worker takes it. Falls back to AffinityWorker if that queue is full.
	AffinityNone
)

// JobSpec describes a job for SubmitJob.
type JobSpec struct {
	// Name is used in logs and panic reports. Optional.
	Name string

	// Work is the job body. The context is cancelled when Shutdown begins.
	Work func(ctx context.Context)

	// Dependencies must all complete before Work runs. Invalid or already
	// completed handles are satisfied immediately.
	Dependencies []JobHandle

	// OnComplete runs on the completing worker after the job is marked
	// complete. Optional.
	OnComplete func(JobHandle)

	// Affinity selects the initial queue. Jobs released by a completing
	// dependency always go to that worker's own queue.
	Affinity Affinity
}

// job is the descriptor stored in the job table.
// Pending (pending > 0) -> Ready (queued) -> Running -> Completed.
type job struct {
	work       func(ctx context.Context)
	name       string
	onComplete func(JobHandle)
	affinity   Affinity

	// pending counts unfinished dependencies plus one submission guard.
	// The decrement that reaches zero queues the job.
	pending atomic.Int32

	// done is set once the job has run and its dependents were notified.
	done atomic.Bool

	// lock guards closed and dependents.
	lock       syncprim.Spinlock
	closed     bool
	dependents []JobHandle

	submitted int64 // unix nano, for queue latency
}

// addDependent registers h to be released when j completes.
// Returns false if j already finished notifying, in which case the caller
// must count the dependency as satisfied.
func (j *job) addDependent(h JobHandle) bool {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.closed {
		return false
	}
	j.dependents = append(j.dependents, h)
	return true
}

// close marks j as finished and returns the dependents to release.
// No dependent can be added afterwards.
func (j *job) close() []JobHandle {
	j.lock.Lock()
	defer j.lock.Unlock()

	j.closed = true
	deps := j.dependents
	j.dependents = nil
	return deps
}

// release drops one pending count. Returns true for the single caller that
// takes the job from Pending to Ready.
func (j *job) release() bool {
	return j.pending.Add(-1) == 0
}
