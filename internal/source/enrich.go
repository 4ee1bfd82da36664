package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Enricher fills in fields of an event that the relay left out.
type Enricher interface {
	Enrich(ctx context.Context, ev *MonitorEvent) error
}

// monitorKeyPrefix is where the backend records the receiving half of an event,
// monitor:{uuid}, for about a minute.
const monitorKeyPrefix = "monitor:"

// RedisEnricher completes events from the backend's monitor:{uuid} records, which
// hold the emitter sid and the client side timestamps.
type RedisEnricher struct {
	client *redis.Client
}

func NewRedisEnricher(client *redis.Client) *RedisEnricher {
	return &RedisEnricher{client: client}
}

// Enrich only fills empty fields, so a complete event is returned unchanged without a
// lookup.
func (e *RedisEnricher) Enrich(ctx context.Context, ev *MonitorEvent) error {
	if ev.UUID == "" || (ev.EmittedBy != "" && ev.ClientTs != 0 && ev.ServerRecv != 0) {
		return nil
	}

	data, err := e.client.Get(ctx, monitorKeyPrefix+ev.UUID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get monitor record %s: %w", ev.UUID, err)
	}

	var rec MonitorEvent
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode monitor record %s: %w", ev.UUID, err)
	}

	if ev.EmittedBy == "" {
		ev.EmittedBy = rec.EmittedBy
	}
	if ev.ClientEvent == "" {
		ev.ClientEvent = rec.ClientEvent
	}
	if ev.ClientTs == 0 {
		ev.ClientTs = rec.ClientTs
	}
	if ev.ServerRecv == 0 {
		ev.ServerRecv = rec.ServerRecv
	}
	return nil
}
