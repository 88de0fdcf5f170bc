package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const embeddingCachePrefix = "embedding:"

// CachedEmbedder 用Redis缓存查询向量，缓存异常时直接走下游
type CachedEmbedder struct {
	next   Embedder
	client *redis.Client
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedEmbedder 包装 next，client 为 nil 时原样返回 next
func NewCachedEmbedder(next Embedder, client *redis.Client, model string, ttl time.Duration, logger *zap.Logger) Embedder {
	if client == nil {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedEmbedder{
		next:   next,
		client: client,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return embeddingCachePrefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	} else if err != redis.Nil {
		c.logger.Debug("embedding cache read failed", zap.Error(err))
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("embedding cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

func (c *CachedEmbedder) Ready() bool {
	return c.next.Ready()
}
