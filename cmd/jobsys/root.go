package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rexengine/jobsys"
	"github.com/rexengine/jobsys/syncprim"
)

const envPrefix = "JOBSYS"

// app carries what every subcommand needs once flags and config are resolved
type app struct {
	v   *viper.Viper
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: logrus.New()}
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "jobsys",
		Short: "Work-stealing job scheduler driver",
		Long: `jobsys drives the work-stealing job scheduler.

It runs YAML frame graphs frame after frame and reports timings against the
graph's critical path, or floods the scheduler with small jobs to measure
throughput. Global settings come from flags, JOBSYS_* environment variables
or an optional config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.Int("workers", 0, "number of worker goroutines (0 = GOMAXPROCS)")
	flags.String("queue-lock", "spin", "worker queue lock (spin, blocking, deadlock)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "serve /metrics and /stats on this address while running")

	for _, name := range []string{"workers", "queue-lock", "log-level", "metrics-addr"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newBenchCmd(a))
	return cmd
}

func (a *app) init(cfgFile string) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := logrus.ParseLevel(a.v.GetString("log-level"))
	if err != nil {
		return err
	}
	a.log.SetLevel(level)
	a.log.SetOutput(os.Stderr)
	a.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfgFile != "" {
		a.log.WithField("file", a.v.ConfigFileUsed()).Debug("Using config file")
	}
	return nil
}

func (a *app) newScheduler() (*jobsys.Scheduler, error) {
	kind, err := syncprim.ParseLockKind(a.v.GetString("queue-lock"))
	if err != nil {
		return nil, err
	}

	return jobsys.New(
		jobsys.WithNumWorkers(a.v.GetInt("workers")),
		jobsys.WithQueueLock(kind),
		jobsys.WithLogger(a.log),
		jobsys.WithFatalHandler(func(err *jobsys.JobPanicError) {
			a.log.WithField("job", err.Name).Error("Job panicked, continuing")
		}),
	)
}
