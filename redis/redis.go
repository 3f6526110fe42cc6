package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/config"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// NewClient connects to Redis and verifies the connection with a PING
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opTimeout := time.Duration(cfg.OperationTimeout) * time.Second

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}

	log.Info().Str("address", cfg.Address).Int("db", cfg.DB).Msg("Connected to Redis successfully")
	return rdb, nil
}
