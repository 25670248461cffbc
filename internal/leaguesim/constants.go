package leaguesim

import "time"

// Catalog size per position.
const (
	catalogGK  = 8
	catalogDEF = 25
	catalogMID = 25
	catalogFWD = 15
)

// Run defaults.
const (
	defaultPollInterval = 100 * time.Millisecond
	defaultWaitFor      = time.Minute
	defaultTopN         = 20
	workerChannelFactor = 2
)

// formations a generated squad may start in, as DEF-MID-FWD.
var formations = [][3]int{
	{3, 4, 3}, {3, 5, 2}, {4, 3, 3}, {4, 4, 2}, {4, 5, 1}, {5, 3, 2}, {5, 4, 1},
}
