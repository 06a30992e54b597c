package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/duration"
	"github.com/waftester/vulnprobe/pkg/output/writers"
)

var _ Store = (*Redis)(nil)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	// URL is the Redis connection string (default "redis://localhost:6379").
	URL string

	// TTL is how long reports live (default duration.ReportTTL). Negative
	// disables expiry.
	TTL time.Duration

	// Prefix namespaces keys (default defaults.RedisKeyPrefix).
	Prefix string

	ConnectTimeout time.Duration
}

// Redis stores reports under <prefix><id>:<format> with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects and pings the server.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.TTL == 0 {
		opts.TTL = duration.ReportTTL
	}
	if opts.TTL < 0 {
		opts.TTL = 0
	}
	if opts.Prefix == "" {
		opts.Prefix = defaults.RedisKeyPrefix
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = duration.RedisConnect
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("store: parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: connect to Redis: %w", err)
	}

	return &Redis{client: client, ttl: opts.TTL, prefix: opts.Prefix}, nil
}

// Key returns the Redis key for id and f.
func (s *Redis) Key(id string, f writers.Format) string {
	return s.prefix + id + ":" + string(f)
}

// Save sets the key with the configured TTL.
func (s *Redis) Save(ctx context.Context, id string, f writers.Format, data []byte) error {
	if err := validate(id, f); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(id, f), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: save %s: %w", id, err)
	}
	return nil
}

// Load gets the key.
func (s *Redis) Load(ctx context.Context, id string, f writers.Format) ([]byte, error) {
	if err := validate(id, f); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.Key(id, f)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Key(id, f))
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", id, err)
	}
	return data, nil
}

// Close closes the Redis connection.
func (s *Redis) Close() error {
	return s.client.Close()
}
