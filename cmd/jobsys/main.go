// Command jobsys runs frame graphs and throughput benchmarks on the job
// system scheduler.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}
