package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rexengine/jobsys"
	"github.com/rexengine/jobsys/internal/framegraph"
)

type benchOptions struct {
	jobs      int
	producers int
	fanout    int
	work      time.Duration
}

func newBenchCmd(a *app) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure scheduler throughput",
		Long: `bench submits jobs from several producer goroutines and waits for all of
them. With --fanout F every root job gets F dependents, so part of the load is
released by workers instead of producers.`,
		Example: `  jobsys bench --jobs 1000000 --producers 8
  jobsys bench --jobs 100000 --fanout 16 --work 5us --queue-lock blocking`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.bench(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.jobs, "jobs", "m", 100000, "total number of jobs")
	cmd.Flags().IntVarP(&opts.producers, "producers", "p", 1, "number of submitting goroutines")
	cmd.Flags().IntVarP(&opts.fanout, "fanout", "f", 0, "dependents per root job")
	cmd.Flags().DurationVar(&opts.work, "work", 0, "busy work per job")

	return cmd
}

func (a *app) bench(cmd *cobra.Command, opts *benchOptions) error {
	if opts.jobs < 1 || opts.producers < 1 || opts.fanout < 0 {
		return fmt.Errorf("invalid bench options: jobs=%d producers=%d fanout=%d", opts.jobs, opts.producers, opts.fanout)
	}

	s, err := a.newScheduler()
	if err != nil {
		return err
	}
	defer s.Shutdown()

	stop, err := serveMetrics(a.v.GetString("metrics-addr"), s, a.log)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	work := func() {}
	if opts.work > 0 {
		work = func() { _ = framegraph.Spin(ctx, opts.work) }
	}

	per := opts.jobs / opts.producers
	handles := make([][]jobsys.JobHandle, opts.producers)

	start := time.Now()
	grp, gctx := errgroup.WithContext(ctx)
	for p := 0; p < opts.producers; p++ {
		p := p
		n := per
		if p == opts.producers-1 {
			n = opts.jobs - per*(opts.producers-1)
		}
		grp.Go(func() error {
			hs := make([]jobsys.JobHandle, 0, n)
			var root jobsys.JobHandle
			for i := 0; i < n; i++ {
				if i%1024 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}

				var deps []jobsys.JobHandle
				if opts.fanout > 0 && i%(opts.fanout+1) != 0 {
					deps = []jobsys.JobHandle{root}
				}
				h, err := s.Submit(work, deps...)
				if err != nil {
					return err
				}
				if deps == nil {
					root = h
				}
				hs = append(hs, h)
			}
			handles[p] = hs
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	submitted := time.Since(start)

	for _, hs := range handles {
		s.WaitAll(hs...)
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s jobs=%d producers=%d fanout=%d workers=%d lock=%s\n",
		color.CyanString("[jobsys]"), opts.jobs, opts.producers, opts.fanout,
		s.NumWorkers(), a.v.GetString("queue-lock"))
	fmt.Fprintf(out, "submit %s, total %s, %s\n",
		submitted.Round(time.Microsecond), elapsed.Round(time.Microsecond),
		color.GreenString("%.0f jobs/s", float64(opts.jobs)/elapsed.Seconds()))
	printStats(out, s.Stats())
	return nil
}
