package redis

import (
	"context"
	"testing"

	"github.com/hatefsystems/search-engine-core-sub000/config"

	"github.com/alicebob/miniredis/v2"
)

func TestNewClient(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer s.Close()

	client, err := NewClient(context.Background(), config.RedisConfig{
		Address:          s.Addr(),
		PoolSize:         2,
		OperationTimeout: 1,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Errorf("Set() error = %v", err)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	addr := s.Addr()
	s.Close()

	if _, err := NewClient(context.Background(), config.RedisConfig{Address: addr, OperationTimeout: 1}); err == nil {
		t.Error("NewClient() succeeded against a closed server")
	}
}
