package cache

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed lua/release_claim.lua
var luaReleaseClaim string

// Claims keeps concurrent submissions of one transaction hash from calling
// the chain providers twice. The database unique constraint stays the real
// serialization point; a claim only saves provider quota.
//
// A nil *Claims grants every claim.
type Claims struct {
	rdb        redis.UniversalClient
	ttl        time.Duration
	scrRelease *redis.Script
}

// NewClaims returns nil when rdb is nil.
func NewClaims(rdb redis.UniversalClient, ttl time.Duration) *Claims {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Claims{
		rdb:        rdb,
		ttl:        ttl,
		scrRelease: redis.NewScript(luaReleaseClaim),
	}
}

func claimKey(txHash string) string { return fmt.Sprintf("deposit:claim:{%s}", strings.ToLower(txHash)) }

// Acquire takes the claim of txHash. ok is false while another request
// holds it. The returned token releases the claim.
func (c *Claims) Acquire(ctx context.Context, txHash string) (token string, ok bool, err error) {
	token = uuid.NewString()
	if c == nil {
		return token, true, nil
	}
	ok, err = c.rdb.SetNX(ctx, claimKey(txHash), token, c.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire deposit claim: %w", err)
	}
	return token, ok, nil
}

// Release drops the claim if token still owns it.
func (c *Claims) Release(ctx context.Context, txHash, token string) error {
	if c == nil {
		return nil
	}
	if err := c.scrRelease.Run(ctx, c.rdb, []string{claimKey(txHash)}, token).Err(); err != nil {
		return fmt.Errorf("release deposit claim: %w", err)
	}
	return nil
}
