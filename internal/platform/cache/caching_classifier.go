// Package cache provides caching decorators for the classification pipeline.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// DefaultTTL is used when a non-positive ttl is given.
const DefaultTTL = 24 * time.Hour

// Classifier is the pipeline being decorated.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) ([]string, error)
}

// CachingClassifier decorates a Classifier with Redis caching.
// Results are keyed by model digest and image content, so the same photo
// uploaded twice under different names hits the cache.
type CachingClassifier struct {
	inner       Classifier
	rdb         *redis.Client
	ttl         time.Duration
	namespace   string
	modelDigest string
}

// NewCachingClassifier decorates a Classifier with Redis caching.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "classify".
// A nil rdb disables caching.
func NewCachingClassifier(rdb *redis.Client, ttl time.Duration, inner Classifier, namespace, modelDigest string) *CachingClassifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = "classify"
	}
	return &CachingClassifier{
		inner:       inner,
		rdb:         rdb,
		ttl:         ttl,
		namespace:   namespace,
		modelDigest: modelDigest,
	}
}

// Classify returns a cached result when present, otherwise delegates and caches the result.
// Only successful results are cached.
func (c *CachingClassifier) Classify(ctx context.Context, imagePath string) ([]string, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.Classify(ctx, imagePath)
	}

	content, err := os.ReadFile(imagePath)
	if err != nil {
		// Let the pipeline report the unreadable file
		return c.inner.Classify(ctx, imagePath)
	}
	key := c.cacheKey(content)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []string
		if err := json.Unmarshal(b, &out); err == nil && len(out) > 1 {
			slog.Debug("classification cache hit", "key", key)
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to inference
	out, err := c.inner.Classify(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			slog.Warn("failed to store classification in cache", "key", key, "error", err)
		}
	}

	return out, nil
}

// cacheKey generates a cache key for an image under the current model.
func (c *CachingClassifier) cacheKey(content []byte) string {
	sum := blake2b.Sum256(content)
	return fmt.Sprintf("%s:%s:%s", c.namespace, c.modelDigest, hex.EncodeToString(sum[:]))
}
