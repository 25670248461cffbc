package leaguesim

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/matchday/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the logger writing to stdout and, when logFile is
// set, to that file too.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return nil, err
		}
	}
	if logFile == "" {
		return func() {}, nil
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	return func() { _ = file.Close() }, nil
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = fmt.Fprintf(w, `matchday league simulator
=========================

Generates a league (player catalog, one squad per manager, one game of
events), uploads it to a running service, finalizes the game and checks every
manager's score against a local run of the scoring engine.

Usage:
  go run ./cmd/league-sim [options]

Options:
  -url string         Base URL of the service (default "http://localhost:9080")
  -managers int       Number of managers (default 500)
  -game string        Game id (default "gw1")
  -seed uint          Seed for the generated league (default: current time)
  -workers int        Concurrent HTTP workers (default CPU cores * 2)
  -timeout duration   HTTP request timeout (default 30s)
  -wait duration      How long to wait for finalization (default %s)
  -top int            Leaderboard entries to check (default %d)
  -log string         Also write logs to this file
  -verbose            Enable debug logging
  -help               Show this help message

Examples:
  go run ./cmd/league-sim -managers 2000 -workers 16
  go run ./cmd/league-sim -seed 42 -game gw7 -verbose
`, defaultWaitFor, defaultTopN)
}
