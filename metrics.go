package jobsys

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports Scheduler.Stats as Prometheus metrics.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(jobsys.NewCollector(s))
type Collector struct {
	sched *Scheduler

	submitted *prometheus.Desc
	completed *prometheus.Desc
	rejected  *prometheus.Desc
	panicked  *prometheus.Desc
	stolen    *prometheus.Desc
	pending   *prometheus.Desc
	injection *prometheus.Desc
	latency   *prometheus.Desc

	workerExecuted *prometheus.Desc
	workerDepth    *prometheus.Desc
}

// NewCollector returns a collector for s. Every series carries a
// "scheduler" label with the instance id.
func NewCollector(s *Scheduler) *Collector {
	labels := prometheus.Labels{"scheduler": s.ID().String()}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc("jobsys_"+name, help, variable, labels)
	}

	return &Collector{
		sched:          s,
		submitted:      desc("jobs_submitted_total", "Total number of jobs accepted."),
		completed:      desc("jobs_completed_total", "Total number of jobs completed."),
		rejected:       desc("jobs_rejected_total", "Total number of submissions rejected during shutdown."),
		panicked:       desc("jobs_panicked_total", "Total number of jobs that panicked."),
		stolen:         desc("jobs_stolen_total", "Total number of jobs taken from another worker's queue."),
		pending:        desc("jobs_pending", "Accepted jobs not yet completed."),
		injection:      desc("injection_queue_depth", "Jobs waiting in the injection queue."),
		latency:        desc("job_latency_max_seconds", "Longest observed job execution time."),
		workerExecuted: desc("worker_jobs_executed_total", "Jobs executed per worker.", "worker"),
		workerDepth:    desc("worker_queue_depth", "Jobs queued per worker.", "worker"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.completed
	ch <- c.rejected
	ch <- c.panicked
	ch <- c.stolen
	ch <- c.pending
	ch <- c.injection
	ch <- c.latency
	ch <- c.workerExecuted
	ch <- c.workerDepth
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.sched.Stats()

	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(st.Submitted))
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(st.Completed))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(st.Rejected))
	ch <- prometheus.MustNewConstMetric(c.panicked, prometheus.CounterValue, float64(st.Panicked))
	ch <- prometheus.MustNewConstMetric(c.stolen, prometheus.CounterValue, float64(st.Stolen))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(st.Pending))
	ch <- prometheus.MustNewConstMetric(c.injection, prometheus.GaugeValue, float64(st.InjectionDepth))
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, st.LatencyMax.Seconds())

	for _, ws := range st.WorkerStats {
		id := strconv.Itoa(ws.WorkerID)
		ch <- prometheus.MustNewConstMetric(c.workerExecuted, prometheus.CounterValue, float64(ws.JobsExecuted), id)
		ch <- prometheus.MustNewConstMetric(c.workerDepth, prometheus.GaugeValue, float64(ws.QueueDepth), id)
	}
}
