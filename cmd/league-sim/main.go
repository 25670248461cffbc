package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/matchday/internal/leaguesim"
)

// Default configuration constants.
const (
	defaultManagers = 500
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout  = 30 * time.Second
	defaultWait     = time.Minute
	defaultTopN     = 20
	defaultRunLimit = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		managers = flag.Int("managers", defaultManagers, "Number of managers")
		gameID   = flag.String("game", "gw1", "Game id")
		seed     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for the generated league")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent HTTP workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait     = flag.Duration("wait", defaultWait, "How long to wait for finalization")
		topN     = flag.Int("top", defaultTopN, "Leaderboard entries to check")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		leaguesim.ShowHelp(os.Stdout)
		return
	}

	closeLog, err := leaguesim.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	if _, err := leaguesim.Run(ctx, &leaguesim.Config{
		BaseURL:  *baseURL,
		Managers: *managers,
		GameID:   *gameID,
		Seed:     *seed,
		Workers:  *workers,
		Timeout:  *timeout,
		WaitFor:  *wait,
		TopN:     *topN,
		Verbose:  *verbose,
	}); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		closeLog()
		os.Exit(1)
	}
}
