// Package cache provides the shared Redis tier for analyzed clinical notes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
)

const (
	defaultTTL = 24 * time.Hour
	// payloads at or above this size are stored zstd-compressed
	compressionThreshold = 1024

	formatJSON byte = 'j'
	formatZstd byte = 'z'
)

// cachedNote is the stored envelope for a note
type cachedNote struct {
	Note     *domain.ClinicalNote `json:"note"`
	CachedAt time.Time            `json:"cached_at"`
}

// RedisNoteCache implements domain.NoteCache on Redis
type RedisNoteCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	encoder    *zstd.Encoder
	decoder    *zstd.Decoder
	logger     *logrus.Logger
}

// NewRedisNoteCache connects to config.RedisURL and verifies the connection
func NewRedisNoteCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisNoteCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisNoteCacheFromClient(client, config.DefaultTTL, logger)
}

// NewRedisNoteCacheFromClient wraps an existing client
func NewRedisNoteCacheFromClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) (*RedisNoteCache, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logrus.New()
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &RedisNoteCache{
		redis:      client,
		defaultTTL: ttl,
		encoder:    encoder,
		decoder:    decoder,
		logger:     logger,
	}, nil
}

// Get returns the cached note for key. Corrupt entries are deleted and
// reported as a miss.
func (c *RedisNoteCache) Get(ctx context.Context, key string) (*domain.ClinicalNote, bool, error) {
	val, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached note: %w", err)
	}

	entry, err := c.decode(val)
	if err != nil || entry.Note == nil {
		c.logger.WithField("key", key).Warn("Dropping corrupt cache entry")
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return entry.Note, true, nil
}

// Set stores note under key with the default TTL
func (c *RedisNoteCache) Set(ctx context.Context, key string, note *domain.ClinicalNote) error {
	payload, err := c.encode(cachedNote{Note: note, CachedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, key, payload, c.defaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache note: %w", err)
	}
	return nil
}

// Health pings Redis
func (c *RedisNoteCache) Health(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close releases the codec and the Redis connection pool
func (c *RedisNoteCache) Close() error {
	c.decoder.Close()
	if err := c.encoder.Close(); err != nil {
		return err
	}
	return c.redis.Close()
}

// encode prefixes the payload with a one-byte format marker
func (c *RedisNoteCache) encode(entry cachedNote) ([]byte, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cached note: %w", err)
	}
	if len(raw) < compressionThreshold {
		return append([]byte{formatJSON}, raw...), nil
	}
	return c.encoder.EncodeAll(raw, []byte{formatZstd}), nil
}

func (c *RedisNoteCache) decode(val []byte) (*cachedNote, error) {
	if len(val) == 0 {
		return nil, fmt.Errorf("empty cache entry")
	}

	raw := val[1:]
	switch val[0] {
	case formatJSON:
	case formatZstd:
		var err error
		raw, err = c.decoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress cache entry: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown cache entry format %q", val[0])
	}

	var entry cachedNote
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return &entry, nil
}
