package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"iap-verify-api/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// OutcomeCache caches successful validation outcomes in Redis so a client
// re-submitting the same receipt does not trigger another vendor call
type OutcomeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOutcomeCache creates a new outcome cache
func NewOutcomeCache(client *redis.Client, ttl time.Duration) *OutcomeCache {
	return &OutcomeCache{
		client: client,
		ttl:    ttl,
	}
}

// TokenHash returns the hex SHA-256 of a receipt token. Raw tokens are never
// used as cache keys or stored in audit records.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// outcomeCacheKey keys the cache by the full claim, not just the token: the
// same receipt token submitted with a different product or transaction id is
// a different claim and must go through reconciliation again
func outcomeCacheKey(claimed ClaimedReceipt) string {
	return fmt.Sprintf("receipt_outcome:%s:%s:%s:%s",
		claimed.BundleID, claimed.ProductID, claimed.TransactionID, TokenHash(claimed.Token))
}

// Get returns a cached outcome for the claimed receipt, if present
func (c *OutcomeCache) Get(claimed ClaimedReceipt) (ValidationOutcome, bool) {
	ctx := context.Background()

	data, err := c.client.Get(ctx, outcomeCacheKey(claimed)).Result()
	if err != nil {
		if err != redis.Nil {
			logging.Errorf("Outcome cache read failed: %v", err)
		}
		return ValidationOutcome{}, false
	}

	var outcome ValidationOutcome
	if err := json.Unmarshal([]byte(data), &outcome); err != nil {
		logging.Errorf("Outcome cache entry corrupt, ignoring: %v", err)
		return ValidationOutcome{}, false
	}

	return outcome, true
}

// Store caches an outcome for the claimed receipt
func (c *OutcomeCache) Store(claimed ClaimedReceipt, outcome ValidationOutcome) {
	ctx := context.Background()

	data, err := json.Marshal(outcome)
	if err != nil {
		logging.Errorf("Failed to marshal outcome for cache: %v", err)
		return
	}

	if err := c.client.Set(ctx, outcomeCacheKey(claimed), data, c.ttl).Err(); err != nil {
		logging.Errorf("Outcome cache write failed: %v", err)
	}
}
