package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// RedisFeed publishes every mutation twice: XADD to a stream for
// catch-up consumers and PUBLISH on a channel for live dashboards.
type RedisFeed struct {
	rdb     *redis.Client
	stream  string
	channel string
	ttl     time.Duration
}

func NewRedisFeed(rdb *redis.Client, prefix string, ttl time.Duration) *RedisFeed {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "tradepilot"
	}
	return &RedisFeed{
		rdb:     rdb,
		stream:  prefix + ":changes",
		channel: prefix + ":changes:pub",
		ttl:     ttl,
	}
}

func (f *RedisFeed) Publish(ctx context.Context, ch model.Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	// 1) Stream: XADD <stream> * kind symbol payload
	_, err = f.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: f.stream,
		Values: map[string]any{
			"kind":    ch.Kind,
			"symbol":  ch.Symbol,
			"ts_ms":   ch.Ts.UnixMilli(),
			"payload": string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd change: %w", err)
	}
	if f.ttl > 0 {
		f.rdb.Expire(ctx, f.stream, f.ttl)
	}

	// 2) PubSub: PUBLISH <channel> json
	if err := f.rdb.Publish(ctx, f.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

var _ port.ChangeFeed = (*RedisFeed)(nil)
