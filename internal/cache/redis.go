// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list that receives room action records.
const DefaultQueueName = "hustle_actions"

// ActionRecord holds the minimal info needed by an external historian to
// replay what happened in a room.
type ActionRecord struct {
	RoomID        string                 `json:"room_id"`
	RoomCode      string                 `json:"room_code"`
	ActionIndex   int                    `json:"action_index"`
	ActorID       string                 `json:"actor_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// ErrInvalidRecord is returned by Pop for a queue entry that is not an
// ActionRecord. The entry has already been removed from the queue.
var ErrInvalidRecord = errors.New("invalid action record")

// Options configures the Redis connection behind an ActionLog.
type Options struct {
	Addr      string
	DB        int
	QueueName string
}

// ActionLog pushes ActionRecords onto a Redis list.
type ActionLog struct {
	rdb   *redis.Client
	queue string
}

// NewActionLog wraps an existing client. An empty queue uses DefaultQueueName.
func NewActionLog(rdb *redis.Client, queue string) *ActionLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionLog{rdb: rdb, queue: queue}
}

// ConnectActionLog dials Redis and verifies the connection with a ping.
func ConnectActionLog(ctx context.Context, opts Options) (*ActionLog, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return NewActionLog(rdb, opts.QueueName), nil
}

// Queue returns the list name records are pushed to.
func (l *ActionLog) Queue() string {
	return l.queue
}

// Publish serializes record to JSON and appends it to the queue.
func (l *ActionLog) Publish(ctx context.Context, record ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// Pop blocks for up to timeout waiting for the oldest record on the queue.
// It returns nil, nil when the wait ends with nothing queued.
func (l *ActionLog) Pop(ctx context.Context, timeout time.Duration) (*ActionRecord, error) {
	res, err := l.rdb.BLPop(ctx, timeout, l.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to BLPop from Redis list '%s': %w", l.queue, err)
	}
	// res[0] is the queue name and res[1] the payload
	if len(res) < 2 {
		return nil, nil
	}
	var record ActionRecord
	if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return &record, nil
}

// Close releases the underlying client.
func (l *ActionLog) Close() error {
	return l.rdb.Close()
}
