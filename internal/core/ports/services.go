package ports

import (
	"context"

	"github.com/Xombi17/MEETease/internal/core/domain"
)

// SessionFeed broadcasts session snapshots to every subscribed replica/device.
type SessionFeed interface {
	Publish(ctx context.Context, code string, update domain.SessionUpdate) error
	Subscribe(ctx context.Context, code string, handler func(update domain.SessionUpdate)) (unsubscribe func(), err error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
