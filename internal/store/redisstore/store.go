package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	Client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		Client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.Client.Ping(cctx).Err()
}

func (s *Store) Close() error {
	return s.Client.Close()
}
