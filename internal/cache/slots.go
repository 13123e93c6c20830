// Package cache stores resolved slot lists in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ptportal/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultPrefix = "ptportal"
	defaultTTL    = time.Minute
)

// Key identifies one resolution. Now is truncated to the minute so requests
// within the same minute share an entry.
type Key struct {
	Start         model.Date
	End           model.Date
	SessionTypeID int64
	Now           time.Time
}

// SlotCache caches slot lists. Entries are namespaced by a generation
// counter; Invalidate bumps it so every older entry is ignored and left to expire.
// A SlotCache with a nil client is a no-op.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger *zerolog.Logger
}

func NewSlotCache(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *SlotCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SlotCache{redis: client, ttl: ttl, prefix: defaultPrefix, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (c *SlotCache) Enabled() bool {
	return c != nil && c.redis != nil
}

func (c *SlotCache) generationKey() string {
	return c.prefix + ":slots:generation"
}

func (c *SlotCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.redis.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *SlotCache) entryKey(gen int64, k Key) string {
	return fmt.Sprintf("%s:slots:g%d:%s:%s:st%d:%d",
		c.prefix, gen, k.Start, k.End, k.SessionTypeID, k.Now.Truncate(time.Minute).Unix())
}

// noGeneration is returned by Get when the generation could not be read;
// Set ignores it.
const noGeneration = -1

// Get loads cached slots for k. It also returns the generation it looked
// under; a caller that computes slots after a miss passes it to Set so a
// result fetched before an invalidation is never stored as current.
// Any Redis or decode error is a miss.
func (c *SlotCache) Get(ctx context.Context, k Key) ([]model.TimeSlot, int64, bool) {
	if !c.Enabled() {
		return nil, noGeneration, false
	}
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Slot cache generation read failed")
		return nil, noGeneration, false
	}
	val, err := c.redis.Get(ctx, c.entryKey(gen, k)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("Slot cache read failed")
		}
		return nil, gen, false
	}
	var slots []model.TimeSlot
	if err := json.Unmarshal(val, &slots); err != nil {
		return nil, gen, false
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	return slots, gen, true
}

// Set stores slots for k under gen, the generation returned by Get.
func (c *SlotCache) Set(ctx context.Context, gen int64, k Key, slots []model.TimeSlot) {
	if !c.Enabled() || gen < 0 {
		return
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.entryKey(gen, k), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Slot cache write failed")
	}
}

// Invalidate discards every cached slot list.
func (c *SlotCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.redis.Incr(ctx, c.generationKey()).Err()
}

// Ping checks the Redis connection.
func (c *SlotCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
