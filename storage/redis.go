package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	opSet    = "set"
	opDelete = "del"
)

type changeEvent struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
	Op     string `json:"op"`
}

// Redis stores entries under "<prefix>:<namespace>:<key>" and publishes every change
// on "<prefix>:<namespace>:events".
type Redis struct {
	redis     redis.UniversalClient
	prefix    string
	namespace string
	origin    string
}

// NewRedis returns a Redis store. namespace separates independent sessions (for
// example one per operator); it defaults to "default".
func NewRedis(client redis.UniversalClient, prefix, namespace string) *Redis {
	if prefix == "" {
		prefix = "dash"
	}
	if namespace == "" {
		namespace = "default"
	}
	return &Redis{
		redis:     client,
		prefix:    prefix,
		namespace: namespace,
		origin:    uuid.NewString(),
	}
}

func (r *Redis) key(key string) string {
	return r.prefix + ":" + r.namespace + ":" + key
}

func (r *Redis) channel() string {
	return r.prefix + ":" + r.namespace + ":events"
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.redis.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	event, err := r.event(key, opSet)
	if err != nil {
		return err
	}
	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(key), value, 0)
		pipe.Publish(ctx, r.channel(), event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	event, err := r.event(key, opDelete)
	if err != nil {
		return err
	}
	n, err := r.redis.Del(ctx, r.key(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return nil
	}
	if err := r.redis.Publish(ctx, r.channel(), event).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Watch subscribes to changes made by other Redis stores in the same namespace. It
// returns once the subscription is confirmed.
func (r *Redis) Watch(ctx context.Context, fn func(key string, deleted bool)) (func(), error) {
	sub := r.redis.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			var ev changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			fn(ev.Key, ev.Op == opDelete)
		}
	}()

	return func() {
		_ = sub.Close()
		<-done
	}, nil
}

func (r *Redis) event(key, op string) (string, error) {
	data, err := json.Marshal(changeEvent{Origin: r.origin, Key: key, Op: op})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
