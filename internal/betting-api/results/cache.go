package results

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda os resultados agregados de um evento no Redis
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *Cache { return &Cache{R: r, TTL: ttl} }

func keyEvent(eventID int64) string { return "results:event:" + strconv.FormatInt(eventID, 10) }

func (c *Cache) Get(ctx context.Context, eventID int64, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyEvent(eventID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) Set(ctx context.Context, eventID int64, v any) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyEvent(eventID), b, c.TTL).Err()
}

// Invalidate derruba o agregado cacheado; chamado quando entra aposta nova
func (c *Cache) Invalidate(ctx context.Context, eventID int64) error {
	return c.R.Del(ctx, keyEvent(eventID)).Err()
}
