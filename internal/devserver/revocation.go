package devserver

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations records credentials the server no longer honours.
type Revocations struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRevocations(client redis.UniversalClient, prefix string) *Revocations {
	if prefix == "" {
		prefix = "dashdev"
	}
	return &Revocations{redis: client, prefix: prefix}
}

func (r *Revocations) revokedKey(id string) string { return r.prefix + ":revoked:" + id }
func (r *Revocations) issuedKey(userID string) string {
	return r.prefix + ":issued:" + userID
}

// Track remembers that credential id was issued to userID so RevokeUser can find it.
func (r *Revocations) Track(ctx context.Context, userID, id string, ttl time.Duration) error {
	key := r.issuedKey(userID)
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, id)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// RevokeCredential stops honouring the credential with id until it would have
// expired anyway.
func (r *Revocations) RevokeCredential(ctx context.Context, id string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.redis.Set(ctx, r.revokedKey(id), "1", ttl).Err()
}

// RevokeUser revokes every tracked credential of userID. It returns how many were
// revoked.
func (r *Revocations) RevokeUser(ctx context.Context, userID string, ttl time.Duration) (int, error) {
	ids, err := r.redis.SMembers(ctx, r.issuedKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Set(ctx, r.revokedKey(id), "1", ttl)
		}
		pipe.Del(ctx, r.issuedKey(userID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Revoked reports whether the credential with id has been revoked.
func (r *Revocations) Revoked(ctx context.Context, id string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.revokedKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
