package jobsys

import "time"

// Stats contains statistics about scheduler operation and performance.
// All counters are snapshots taken at the time Stats() is called and may be
// slightly inconsistent during concurrent operations due to lock-free reads.
//
// Example:
//
//	stats := s.Stats()
//	fmt.Printf("Stolen: %.1f%%\n",
//	    float64(stats.Stolen) / float64(stats.Completed) * 100)
type Stats struct {
	// Submitted is the total number of jobs accepted since creation.
	// Rejected submissions are not included.
	Submitted uint64

	// Completed is the total number of jobs that have finished,
	// including jobs that panicked.
	Completed uint64

	// Rejected is the number of submissions refused because Shutdown had begun.
	Rejected uint64

	// Panicked is the number of jobs whose work function panicked.
	Panicked uint64

	// Stolen is the number of jobs a worker took from another worker's queue.
	Stolen uint64

	// Injected is the number of jobs routed through the injection queue.
	Injected uint64

	// Pending is the number of accepted jobs not yet completed: waiting on
	// dependencies, queued or running.
	Pending uint64

	// InjectionDepth is the number of jobs currently in the injection queue.
	InjectionDepth int

	// WorkerStats contains statistics for each worker.
	// The slice length equals NumWorkers.
	WorkerStats []WorkerStats

	// NumWorkers is fixed at scheduler creation.
	NumWorkers int

	// TotalQueueDepth is the combined number of jobs in all worker queues.
	// Does not include running jobs or jobs waiting on dependencies.
	TotalQueueDepth int

	// LatencyAvg is the average execution time of completed jobs.
	// Zero if no job has completed.
	LatencyAvg time.Duration

	// LatencyMax is the longest execution time observed for a single job.
	LatencyMax time.Duration
}

// WorkerStats contains statistics for an individual worker goroutine.
// Each worker maintains its own counters to avoid contention.
type WorkerStats struct {
	// WorkerID is the worker's index (0-based).
	WorkerID int

	// JobsExecuted is the total number of jobs this worker has run.
	JobsExecuted uint64

	// JobsStolen is the number of those jobs taken from another worker.
	JobsStolen uint64

	// JobsFailed is the number of jobs that panicked on this worker.
	JobsFailed uint64

	// QueueDepth is the number of jobs in this worker's queue.
	QueueDepth int

	// Capacity is the current buffer size of this worker's queue.
	// Queues grow on demand, so this only increases.
	Capacity int

	// State is one of "RUNNING", "SPINNING", "PARKED" or "SHUTDOWN".
	State string
}

// Stats returns a snapshot of scheduler statistics.
func (s *Scheduler) Stats() Stats {
	outstanding := s.outstanding.Load()
	if outstanding < 0 {
		outstanding = 0
	}

	workerStats := make([]WorkerStats, len(s.workers))
	totalDepth := 0

	for i, w := range s.workers {
		depth := w.queue.Len()
		totalDepth += depth

		workerStats[i] = WorkerStats{
			WorkerID:     i,
			JobsExecuted: w.executed.Load(),
			JobsStolen:   w.stolen.Load(),
			JobsFailed:   w.failed.Load(),
			QueueDepth:   depth,
			Capacity:     w.queue.Capacity(),
			State:        w.getState().String(),
		}
	}

	latencyCount := s.latencyCount.Load()
	latencyAvg := time.Duration(0)
	latencyMax := time.Duration(0)

	if latencyCount > 0 {
		latencyAvg = time.Duration(s.latencySum.Load()/latencyCount) * time.Microsecond
		latencyMax = time.Duration(s.latencyMax.Load()) * time.Microsecond
	}

	return Stats{
		Submitted:       s.metrics.submitted.Load(),
		Completed:       s.metrics.completed.Load(),
		Rejected:        s.metrics.rejected.Load(),
		Panicked:        s.metrics.panicked.Load(),
		Stolen:          s.metrics.stolen.Load(),
		Injected:        s.metrics.injected.Load(),
		Pending:         uint64(outstanding),
		InjectionDepth:  s.injection.Len(),
		WorkerStats:     workerStats,
		NumWorkers:      len(s.workers),
		TotalQueueDepth: totalDepth,
		LatencyAvg:      latencyAvg,
		LatencyMax:      latencyMax,
	}
}
