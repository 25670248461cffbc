package notify

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const embeddedStartTimeout = 10 * time.Second

// StartEmbedded runs an in-process NATS server for local development and
// tests. port 0 picks a free port.
func StartEmbedded(port int) (*server.Server, error) {
	if port == 0 {
		port = -1
	}
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(embeddedStartTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats not ready after %s", embeddedStartTimeout)
	}
	return ns, nil
}
