package database

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// ConnectNATS opens a NATS connection that keeps reconnecting for the life of the process.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url must not be empty")
	}

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return conn, nil
}

// NATSStatus reports an error unless the connection is currently usable.
func NATSStatus(conn *nats.Conn) error {
	if conn == nil {
		return fmt.Errorf("nats not configured")
	}
	if !conn.IsConnected() {
		return fmt.Errorf("nats %s", conn.Status())
	}
	return nil
}
