package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

// Options описывает подключение к Redis
type Options struct {
	Host         string
	Port         string
	Password     string
	DB           int
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SessionCache хранит snapshot'ы завершённых сессий.
// Снимок терминальной сессии больше не меняется, поэтому TTL можно держать долгим.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ port.Cache = (*SessionCache)(nil)

// NewSessionCache подключается к Redis и проверяет соединение
func NewSessionCache(opts Options) (*SessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", opts.Host, opts.Port),
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newSessionCache(client, opts.TTL), nil
}

func newSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{
		client: client,
		ttl:    ttl,
	}
}

// Get читает значение; при отсутствии ключа возвращает port.ErrCacheMiss
func (c *SessionCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return port.ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return nil
}

// Set сохраняет значение с TTL по умолчанию
func (c *SessionCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

func (c *SessionCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Ping используется readiness-проверкой
func (c *SessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SessionCache) Close() error {
	return c.client.Close()
}
