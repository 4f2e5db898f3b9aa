package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoked entries mirror the token-in-denylist marker: key is the jti, value
// is a boolean flag, TTL is the token's remaining lifetime. Entries are never
// deleted explicitly; redis expires them no later than the token itself
// would have expired.
const revokedValue = "true"

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// MarkRevoked is idempotent: re-marking an already-revoked jti just refreshes
// the marker. A non-positive ttl means the token is already past expiry and
// needs no entry.
func (s *Store) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, jti, revokedValue, ttl).Err(); err != nil {
		return fmt.Errorf("mark jti revoked: %w", err)
	}
	return nil
}

// IsRevoked returns true only while a live entry exists. Errors must be
// treated as a rejection by callers, never as "not revoked".
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	val, err := s.rdb.Get(ctx, jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revocation lookup: %w", err)
	}
	return val == revokedValue, nil
}
