package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Xombi17/MEETease/internal/core/domain"
)

// SubjectPrefix namespaces session change subjects.
const SubjectPrefix = "meetease.sessions."

// Subject is the change-feed subject of one session.
func Subject(code string) string {
	return SubjectPrefix + code
}

// Feed implements ports.SessionFeed over core NATS publish/subscribe.
// Snapshots are full documents, so a missed message is repaired by the next.
type Feed struct {
	conn *nats.Conn
}

// Connect dials NATS with the reconnect policy shared by every service.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// NewFeed wraps an established connection.
func NewFeed(conn *nats.Conn) *Feed {
	return &Feed{conn: conn}
}

// Publish broadcasts a session snapshot.
func (f *Feed) Publish(ctx context.Context, code string, update domain.SessionUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return f.conn.Publish(Subject(code), data)
}

// Connected reports the connection state for readiness probes.
func (f *Feed) Connected() bool {
	return f.conn.IsConnected()
}

// Close drains and closes the connection.
func (f *Feed) Close() {
	_ = f.conn.Drain()
}
