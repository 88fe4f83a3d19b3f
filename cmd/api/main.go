// Command api serves the read-only dashboard API over stored weekly
// snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/eshaffer321/kdp-ads-analytics/internal/cli"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
)

func main() {
	flags := cli.ParseServeFlags()
	cfg := config.LoadOrEnv_WithPath(flags.Config)

	if err := cli.RunServe(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
