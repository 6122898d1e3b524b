package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Connect opens a Valkey (Redis-compatible) client shared by the cache and
// the session store.
func Connect(addr string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return client, nil
}

// Ping checks the connection for readiness probes.
func Ping(ctx context.Context, client valkey.Client) error {
	return client.Do(ctx, client.B().Ping().Build()).Error()
}

// Cache implements ports.CacheService for geocoding lookups.
type Cache struct {
	client valkey.Client
	prefix string
}

// NewCache creates a cache whose keys are namespaced under prefix.
func NewCache(client valkey.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Get retrieves a value by key. A missing key is reported as an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build())
	if cmd.Error() != nil {
		return nil, cmd.Error()
	}
	return cmd.AsBytes()
}

// Set stores a value with a TTL in seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	cmd := c.client.Do(ctx,
		c.client.B().Set().Key(c.prefix+key).Value(valkey.BinaryString(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build(),
	)
	return cmd.Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.prefix+key).Build()).Error()
}
