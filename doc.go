// Package jobsys provides a work-stealing job scheduler for fine-grained,
// dependency-ordered work.
//
// Each worker goroutine owns a deque. A worker pops its own jobs newest first
// and, when it runs dry, takes work from the shared injection queue or steals
// the oldest job from another worker. Jobs declare the jobs they depend on;
// a job becomes runnable when the last of them completes, and the worker that
// completes it queues it locally.
//
// # Key Features
//
//   - Per-worker deques with owner LIFO and thief FIFO ends
//   - Spinlock or blocking mutex deque guards, plus a deadlock-checked mutex for debugging
//   - Exactly-once dependency release through a single atomic counter per job
//   - Generation-tagged job handles that stay safe after the job is recycled
//   - Typed futures over jobs
//   - Prometheus collector over scheduler statistics
//   - Fatal handler and worker lifecycle hooks instead of process-wide globals
//
// # Quick Start
//
//	s, err := jobsys.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Shutdown()
//
//	input, _ := s.Submit(pollInput)
//	physics, _ := s.Submit(stepPhysics, input)
//	anim, _ := s.Submit(stepAnimation, input)
//	render, _ := s.Submit(buildDrawList, physics, anim)
//
//	s.WaitFor(render)
//
// # Jobs
//
// SubmitJob takes a JobSpec with a name, a context-aware work function, a
// completion callback and a queue affinity:
//
//	h, err := s.SubmitJob(jobsys.JobSpec{
//	    Name:         "stream-textures",
//	    Work:         func(ctx context.Context) { streamTextures(ctx) },
//	    Dependencies: []jobsys.JobHandle{load},
//	    OnComplete:   func(h jobsys.JobHandle) { events.Enqueue(h) },
//	    Affinity:     jobsys.AffinityNone,
//	})
//
// OnComplete runs on the worker that completed the job. To handle
// completions on a particular goroutine, forward them through eventq.Queue
// and flush it there.
//
// The context passed to Work is cancelled when Shutdown begins. Jobs are never
// preempted; long jobs should check it.
//
// # Handles
//
// A JobHandle is an index plus a generation. When a job completes its slot is
// released and the generation bumped, so the old handle reports complete
// (IsComplete) and WaitFor on it returns at once, while never aliasing the
// job that reuses the slot. A handle the scheduler never issued reports not
// complete.
//
// # Dependencies
//
// A job may only depend on handles that exist when it is submitted, so
// dependency cycles cannot be built; the one exception, a job naming its own
// handle, is rejected with ErrSelfDependency.
//
// # Panics
//
// A panicking job is a fatal fault. The panic is recovered on the worker,
// logged, wrapped in a *JobPanicError and passed to the FatalHandler. Without
// one, the panic is re-raised and the process exits. A handler that returns
// lets the job complete so its dependents still run:
//
//	s, _ := jobsys.New(
//	    jobsys.WithFatalHandler(func(err *jobsys.JobPanicError) {
//	        crashReporter.Capture(err, err.Stack)
//	    }),
//	)
//
// # Configuration
//
//	s, err := jobsys.New(
//	    jobsys.WithNumWorkers(8),
//	    jobsys.WithQueueCapacity(512),
//	    jobsys.WithQueueLock(syncprim.Blocking),
//	    jobsys.WithMaxParkTime(5 * time.Millisecond),
//	    jobsys.WithSpinCount(100),
//	    jobsys.WithLogger(logrus.WithField("component", "jobs")),
//	)
//
// # Shutdown
//
// Shutdown rejects new submissions with ErrSchedulerShutdown, then waits for
// every accepted job, including jobs still waiting on dependencies, before
// the workers exit.
//
// # Metrics
//
//	stats := s.Stats()
//	fmt.Printf("Completed: %d, Stolen: %d\n", stats.Completed, stats.Stolen)
//
//	prometheus.MustRegister(jobsys.NewCollector(s))
package jobsys
