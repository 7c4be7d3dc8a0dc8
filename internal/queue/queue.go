package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKey is the Redis list carrying recognition messages.
const DefaultKey = "attendance:recognitions"

// blockFor bounds each BRPOP so cancellation is noticed.
const blockFor = 5 * time.Second

// Message is one typed unit of work.
type Message struct {
	Type string
	Body []byte
}

// Encode builds a message whose body is v as JSON.
func Encode(typ string, v any) (Message, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s message: %w", typ, err)
	}
	return Message{Type: typ, Body: body}, nil
}

// Decode checks the message type and unmarshals the JSON body into v.
func (m Message) Decode(typ string, v any) error {
	if m.Type != typ {
		return fmt.Errorf("unexpected message type %q, want %q", m.Type, typ)
	}
	if err := json.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("decode %s message: %w", typ, err)
	}
	return nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
	Len(ctx context.Context) (int64, error)
}

// InMemory is a bounded channel-backed queue used when the worker runs in-process.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a queue holding at most size pending messages.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message, blocking while the queue is full.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel that is closed when ctx ends.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Len reports pending messages.
func (q *InMemory) Len(context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

// RedisQueue is a Redis list with LPUSH producers and BRPOP consumers.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisQueue builds a queue on key, or DefaultKey when empty.
func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{client: client, key: key, logger: logger}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	return q.client.LPush(ctx, q.key, serialize(msg)).Err()
}

// Len reports the list length.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Consume streams messages until ctx ends. Redis outages are retried once a second.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		down := false
		for {
			res, err := q.client.BRPop(ctx, blockFor, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, redis.Nil) {
					continue
				}
				if !down {
					q.logger.Warn("redis queue unavailable, retrying", zap.String("key", q.key), zap.Error(err))
					down = true
				}
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			if down {
				q.logger.Info("redis queue reconnected", zap.String("key", q.key))
				down = false
			}
			// BRPOP answers [key, value]
			if len(res) != 2 {
				continue
			}
			select {
			case out <- deserialize(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Messages are stored as "type|body"; the body may itself contain '|'.
func serialize(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	typ, body, ok := strings.Cut(s, "|")
	if !ok {
		return Message{Body: []byte(s)}
	}
	return Message{Type: typ, Body: []byte(body)}
}
