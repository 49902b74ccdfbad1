package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisOTPIssuanceStore serializes email-OTP minting per user.
// SetNX is the compare-and-swap: the first requester in a validity window
// claims issuance, concurrent requesters fall back to the stored token.
type RedisOTPIssuanceStore struct {
	client *redis.Client
}

// NewRedisOTPIssuanceStore creates the OTP issuance guard adapter.
func NewRedisOTPIssuanceStore(client *redis.Client) *RedisOTPIssuanceStore {
	return &RedisOTPIssuanceStore{client: client}
}

func (s *RedisOTPIssuanceStore) Claim(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return s.client.SetNX(ctx, "auth:otp:issue:"+userID.String(), "1", ttl).Result()
}

func (s *RedisOTPIssuanceStore) Release(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, "auth:otp:issue:"+userID.String()).Err()
}
