package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/Xombi17/MEETease/internal/core/domain"
	"github.com/Xombi17/MEETease/internal/pkg/logging"
)

// Subscribe delivers every snapshot published for the session until the
// returned func is called or ctx is done. Handlers run on the NATS
// subscription goroutine, one message at a time.
func (f *Feed) Subscribe(ctx context.Context, code string, handler func(update domain.SessionUpdate)) (func(), error) {
	logger := logging.FromContext(ctx).With("subject", Subject(code))

	sub, err := f.conn.Subscribe(Subject(code), func(msg *nats.Msg) {
		update, err := DecodeUpdate(msg.Data)
		if err != nil {
			logger.Warn("dropping malformed session update", "error", err)
			return
		}
		handler(update)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", code, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = sub.Unsubscribe() })
	return func() {
		stop()
		_ = sub.Unsubscribe()
	}, nil
}

// DecodeUpdate parses a feed message.
func DecodeUpdate(data []byte) (domain.SessionUpdate, error) {
	var u domain.SessionUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return u, err
	}
	if u.Snapshot.Participants == nil {
		u.Snapshot.Participants = map[string]domain.RemoteParticipant{}
	}
	return u, nil
}
