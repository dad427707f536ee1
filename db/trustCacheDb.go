package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"readgate/models"

	"github.com/redis/go-redis/v9"
)

// TrustScoreCache is the URL-keyed trust-score store. Get returns (nil, nil)
// on miss; an expired entry counts as a miss. Put replaces the whole record.
type TrustScoreCache interface {
	GetTrustScore(ctx context.Context, normalizedURL string) (*models.TrustScoreRecord, error)
	PutTrustScore(ctx context.Context, record *models.TrustScoreRecord, ttl time.Duration) error
}

type RedisTrustScoreCache struct {
	client *redis.Client
}

func NewRedisTrustScoreCache(addr string) (*RedisTrustScoreCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisTrustScoreCache{client: client}, nil
}

func trustScoreKey(normalizedURL string) string {
	return "trust:" + normalizedURL
}

func (c *RedisTrustScoreCache) GetTrustScore(ctx context.Context, normalizedURL string) (*models.TrustScoreRecord, error) {
	payload, err := c.client.Get(ctx, trustScoreKey(normalizedURL)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trust score: %w", err)
	}

	record := &models.TrustScoreRecord{}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trust score: %w", err)
	}

	// Redis TTL already evicts, but a payload that outlived its stamped
	// expiry must still read as absent.
	if !record.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return record, nil
}

func (c *RedisTrustScoreCache) PutTrustScore(ctx context.Context, record *models.TrustScoreRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal trust score: %w", err)
	}

	if err := c.client.Set(ctx, trustScoreKey(record.SourceURL), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to put trust score: %w", err)
	}

	return nil
}

func (c *RedisTrustScoreCache) Close() error {
	return c.client.Close()
}
