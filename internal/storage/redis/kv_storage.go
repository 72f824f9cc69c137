// Package redis хранит сессию клиента в Redis под общим префиксом ключей.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

const (
	// DefaultPrefix используется, если префикс не задан.
	DefaultPrefix = "minicrm:session:"
	scanBatch     = 100
)

// KeyValueStorage реализует domain.KeyValueStorage поверх go-redis.
type KeyValueStorage struct {
	client goredis.UniversalClient
	prefix string
}

// NewKeyValueStorage оборачивает готовый клиент.
func NewKeyValueStorage(client goredis.UniversalClient, prefix string) *KeyValueStorage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KeyValueStorage{client: client, prefix: prefix}
}

// Open подключается к addr и проверяет соединение PING.
func Open(ctx context.Context, addr, prefix string) (*KeyValueStorage, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewKeyValueStorage(client, prefix), nil
}

func (s *KeyValueStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *KeyValueStorage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *KeyValueStorage) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Clear удаляет только ключи с префиксом хранилища.
func (s *KeyValueStorage) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close закрывает клиент.
func (s *KeyValueStorage) Close() error {
	return s.client.Close()
}

var _ domain.KeyValueStorage = (*KeyValueStorage)(nil)
