package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func embeddingJobKey(documentID uint64) string {
	return fmt.Sprintf("embedjob:doc:%d", documentID)
}

// ClaimEmbeddingJob marks a backfill as pending for documentID. It returns
// false when one is already pending, so the caller should not enqueue again.
func (s *Store) ClaimEmbeddingJob(ctx context.Context, documentID uint64, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, embeddingJobKey(documentID), time.Now().Unix(), ttl).Result()
}

func (s *Store) ReleaseEmbeddingJob(ctx context.Context, documentID uint64) error {
	err := s.rdb.Del(ctx, embeddingJobKey(documentID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
