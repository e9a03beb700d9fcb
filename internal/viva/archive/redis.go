// Package archive keeps finished-session reports in Redis with a TTL.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keshav2232/viva/internal/viva/domain"
)

const (
	// Redis key prefix for reports
	reportKeyPrefix = "viva:report:"
	// Default TTL for report keys (30 days)
	defaultTTL = 30 * 24 * time.Hour
)

// ErrInvalidConfig is returned when no Redis client or URL is supplied.
var ErrInvalidConfig = errors.New("archive: redis client required")

// RedisArchive implements domain.ReportArchive on Redis.
type RedisArchive struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ domain.ReportArchive = (*RedisArchive)(nil)

// Option is a functional option for configuring the archive.
type Option func(*RedisArchive)

// WithTTL sets the TTL for report keys.
func WithTTL(ttl time.Duration) Option {
	return func(a *RedisArchive) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithKeyPrefix overrides the key prefix, e.g. to share one Redis between deployments.
func WithKeyPrefix(prefix string) Option {
	return func(a *RedisArchive) { a.prefix = prefix }
}

// NewRedis creates an archive on an existing client.
func NewRedis(client *redis.Client, opts ...Option) (*RedisArchive, error) {
	if client == nil {
		return nil, ErrInvalidConfig
	}
	a := &RedisArchive{client: client, ttl: defaultTTL, prefix: reportKeyPrefix}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewRedisFromURL parses a redis:// URL and connects lazily.
func NewRedisFromURL(url string, opts ...Option) (*RedisArchive, error) {
	if url == "" {
		return nil, ErrInvalidConfig
	}
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(ro), opts...)
}

// Ping checks connectivity.
func (a *RedisArchive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// SaveReport implements domain.ReportArchive.
func (a *RedisArchive) SaveReport(ctx context.Context, r *domain.Report) error {
	val, err := encode(r)
	if err != nil {
		return err
	}
	return a.client.Set(ctx, a.key(r.SessionID), val, a.ttl).Err()
}

// GetReport implements domain.ReportArchive.
func (a *RedisArchive) GetReport(ctx context.Context, sessionID string) (*domain.Report, error) {
	val, err := a.client.Get(ctx, a.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrReportNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return decode(val)
}

// Close implements io.Closer.
func (a *RedisArchive) Close() error {
	return a.client.Close()
}

// key constructs the Redis key for a session ID.
func (a *RedisArchive) key(id string) string {
	return a.prefix + id
}

func encode(r *domain.Report) ([]byte, error) {
	if r == nil || r.SessionID == "" {
		return nil, errors.New("archive: report without session id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.Report, error) {
	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
