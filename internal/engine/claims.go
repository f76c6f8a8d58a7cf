package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClaimStore hands out short-lived dispatch leases so overlapping drain
// invocations cannot both send the same record. A claim is a SET NX with a
// TTL: if the holder crashes mid-dispatch the lease expires and the record
// (still pending/failed in the queue) becomes claimable again.
type ClaimStore struct {
	redisClient *redis.Client
	logger      *slog.Logger
	owner       string
	lease       time.Duration
}

// Compare-and-delete: release a claim only if this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

func NewClaimStore(redisClient *redis.Client, logger *slog.Logger, lease time.Duration) *ClaimStore {
	return &ClaimStore{
		redisClient: redisClient,
		logger:      logger,
		owner:       uuid.NewString(),
		lease:       lease,
	}
}

func claimKey(recordID string) string {
	return fmt.Sprintf("claim:%s", recordID)
}

// Claim attempts to take the dispatch lease for a record. Returns false when
// another invocation already holds it.
func (c *ClaimStore) Claim(ctx context.Context, recordID string) (bool, error) {
	ok, err := c.redisClient.SetNX(ctx, claimKey(recordID), c.owner, c.lease).Result()
	if err != nil {
		return false, fmt.Errorf("claiming record %s: %w", recordID, err)
	}
	return ok, nil
}

// Release drops the lease if this instance still holds it. A lease that
// expired and was re-claimed elsewhere is left alone.
func (c *ClaimStore) Release(ctx context.Context, recordID string) {
	if err := releaseScript.Run(ctx, c.redisClient, []string{claimKey(recordID)}, c.owner).Err(); err != nil {
		c.logger.Warn("failed to release claim", "record_id", recordID, "error", err)
	}
}
