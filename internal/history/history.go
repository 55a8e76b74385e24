// internal/history/history.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) the historian drains.
const DefaultQueueName = "conquian_actions"

// ActionRecord is one successful game transition, queued for the historian
// to persist. The engine never sees this type; the transport layer emits it
// after every mutation.
type ActionRecord struct {
	RoomID      uuid.UUID              `json:"room_id"`
	GameID      uuid.UUID              `json:"game_id"`
	ActionIndex int                    `json:"action_index"`
	ActorID     uuid.UUID              `json:"actor_id"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"action_payload,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// Publisher pushes action records onto the Redis queue. A nil *Publisher is
// valid and drops every record, so the server runs fine without Redis.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// NewPublisherFromEnv connects to Redis using REDIS_ADDR and REDIS_DB. When
// REDIS_ADDR is unset the action log is disabled and (nil, nil) is returned.
func NewPublisherFromEnv(ctx context.Context) (*Publisher, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   getEnvInt("REDIS_DB", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Publisher{
		rdb:   rdb,
		queue: getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
	}, nil
}

// Publish serializes the record and RPUSHes it onto the queue. Safe to call
// on a nil Publisher.
func (p *Publisher) Publish(ctx context.Context, record ActionRecord) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", p.queue, err)
	}
	return nil
}

// Close releases the Redis connection. Safe on a nil Publisher.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer or returns a
// default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
