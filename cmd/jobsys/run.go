package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/rexengine/jobsys"
	"github.com/rexengine/jobsys/eventq"
	"github.com/rexengine/jobsys/graph"
	"github.com/rexengine/jobsys/internal/framegraph"
)

type runOptions struct {
	graphFile string
	frames    int
	errorMode string
}

// nodeTotals accumulates one node's results across frames
type nodeTotals struct {
	runs    int
	failed  int
	skipped int
	total   time.Duration
	max     time.Duration
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a frame graph repeatedly and report frame timings",
		Example: `  jobsys run --graph frame.yaml --frames 120
  JOBSYS_WORKERS=4 jobsys run --graph frame.yaml --error-mode fail-fast`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFrames(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.graphFile, "graph", "g", "", "frame graph YAML file")
	cmd.Flags().IntVarP(&opts.frames, "frames", "n", 1, "number of frames to run")
	cmd.Flags().StringVar(&opts.errorMode, "error-mode", "collect-all", "node error handling (collect-all, fail-fast, ignore)")
	_ = cmd.MarkFlagRequired("graph")

	return cmd
}

func (a *app) runFrames(cmd *cobra.Command, opts *runOptions) error {
	if opts.frames < 1 {
		return fmt.Errorf("--frames must be at least 1, got %d", opts.frames)
	}
	mode, err := graph.ParseErrorMode(opts.errorMode)
	if err != nil {
		return err
	}

	frame, err := framegraph.Load(opts.graphFile)
	if err != nil {
		return err
	}

	runID := ulid.Make()
	log := a.log.WithField("run", runID.String())

	s, err := a.newScheduler()
	if err != nil {
		return err
	}
	defer s.Shutdown()

	stop, err := serveMetrics(a.v.GetString("metrics-addr"), s, log)
	if err != nil {
		return err
	}
	defer stop()

	// Node results arrive on worker goroutines and are drained here between
	// frames so the totals below need no lock.
	events := eventq.New[graph.NodeResult](len(frame.Nodes))
	g, err := frame.Build(s,
		graph.WithErrorMode(mode),
		graph.WithLogger(log),
		graph.WithNodeObserver(events.Enqueue),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	critical, serial := frame.CriticalPath(), frame.TotalCost()
	fmt.Fprintf(out, "%s %s frame=%s nodes=%d workers=%d critical=%s serial=%s\n",
		color.CyanString("[jobsys]"), runID, frame.Name, len(frame.Nodes),
		s.NumWorkers(), critical, serial)

	totals := make(map[string]*nodeTotals, len(frame.Nodes))
	for _, n := range frame.Nodes {
		totals[n.Name] = &nodeTotals{}
	}

	var frameSum, frameMax time.Duration
	failedFrames := 0
	ran := 0
	for i := 0; i < opts.frames; i++ {
		start := time.Now()
		runErr := g.Run(ctx)
		elapsed := time.Since(start)

		events.Flush(func(r graph.NodeResult) {
			t := totals[r.Node]
			switch {
			case r.Skipped:
				t.skipped++
			case r.Err != nil:
				t.failed++
			default:
				t.runs++
				t.total += r.Duration
				if r.Duration > t.max {
					t.max = r.Duration
				}
			}
		})

		if ctx.Err() != nil {
			log.Warn("Interrupted")
			break
		}

		ran++
		frameSum += elapsed
		if elapsed > frameMax {
			frameMax = elapsed
		}

		status := frameColor(elapsed, critical, serial).Sprint(elapsed.Round(time.Microsecond))
		if runErr != nil {
			failedFrames++
			fmt.Fprintf(out, "frame %4d  %s  %s %v\n", i, status, color.RedString("error:"), runErr)
			continue
		}
		fmt.Fprintf(out, "frame %4d  %s\n", i, status)
	}

	printNodeTotals(out, frame, totals)
	if ran > 0 {
		fmt.Fprintf(out, "\nframes=%d failed=%d avg=%s max=%s\n",
			ran, failedFrames, (frameSum / time.Duration(ran)).Round(time.Microsecond), frameMax.Round(time.Microsecond))
	}
	printStats(out, s.Stats())

	if failedFrames > 0 {
		return fmt.Errorf("%d of %d frames failed", failedFrames, ran)
	}
	return ctx.Err()
}

// frameColor is green near the critical path, yellow up to the serial cost
// and red beyond it
func frameColor(elapsed, critical, serial time.Duration) *color.Color {
	switch {
	case elapsed <= critical+critical/4:
		return color.New(color.FgGreen)
	case elapsed <= serial:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func printNodeTotals(out io.Writer, frame *framegraph.Frame, totals map[string]*nodeTotals) {
	fmt.Fprintf(out, "\n%-20s %10s %12s %12s %8s %8s\n", "node", "cost", "avg", "max", "failed", "skipped")
	for _, n := range frame.Nodes {
		t := totals[n.Name]
		var avg time.Duration
		if t.runs > 0 {
			avg = t.total / time.Duration(t.runs)
		}
		fmt.Fprintf(out, "%-20s %10s %12s %12s %8d %8d\n",
			n.Name, time.Duration(n.Cost), avg.Round(time.Microsecond), t.max.Round(time.Microsecond), t.failed, t.skipped)
	}
}

func printStats(out io.Writer, st jobsys.Stats) {
	var stolenPct float64
	if st.Completed > 0 {
		stolenPct = float64(st.Stolen) / float64(st.Completed) * 100
	}

	fmt.Fprintf(out, "jobs submitted=%d completed=%d panicked=%d stolen=%.1f%% injected=%d\n",
		st.Submitted, st.Completed, st.Panicked, stolenPct, st.Injected)
	fmt.Fprintf(out, "job latency avg=%s max=%s\n", st.LatencyAvg, st.LatencyMax)
	for _, ws := range st.WorkerStats {
		fmt.Fprintf(out, "  worker %2d  executed=%-8d stolen=%-8d capacity=%d\n",
			ws.WorkerID, ws.JobsExecuted, ws.JobsStolen, ws.Capacity)
	}
}
