package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medical-scribe-server/internal/domain"
)

func testNote(summary string) *domain.ClinicalNote {
	return &domain.ClinicalNote{
		Summary:     summary,
		PatientInfo: &domain.PatientInfo{ChiefComplaint: "咳", Duration: "1週間"},
		SOAP: &domain.SOAPNote{
			Subjective: &domain.Subjective{Severity: "軽度", Symptoms: []string{"咳", "微熱"}},
			Assessment: &domain.Assessment{Diagnosis: "急性気管支炎", ICD10: "J20.9"},
			Plan:       &domain.Plan{FollowUp: "1週間後"},
		},
	}
}

func newCodecOnlyCache(t *testing.T) *RedisNoteCache {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	c, err := NewRedisNoteCacheFromClient(nil, 0, logger)
	require.NoError(t, err)
	return c
}

func TestRedisNoteCache_Codec(t *testing.T) {
	c := newCodecOnlyCache(t)
	assert.Equal(t, defaultTTL, c.defaultTTL)

	tests := []struct {
		name   string
		note   *domain.ClinicalNote
		format byte
	}{
		{"small note stays plain", testNote("短い要約"), formatJSON},
		{"large note is compressed", testNote(strings.Repeat("長い要約。", 400)), formatZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := c.encode(cachedNote{Note: tt.note, CachedAt: time.Now()})
			require.NoError(t, err)
			assert.Equal(t, tt.format, payload[0])

			entry, err := c.decode(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.note, entry.Note)
		})
	}
}

func TestRedisNoteCache_DecodeRejectsGarbage(t *testing.T) {
	c := newCodecOnlyCache(t)

	for _, val := range [][]byte{nil, []byte("x{}"), []byte("j{not json"), []byte("zgarbage")} {
		_, err := c.decode(val)
		assert.Error(t, err, "%q", val)
	}
}

func TestNewRedisNoteCache_BadURL(t *testing.T) {
	_, err := NewRedisNoteCache(domain.CacheConfig{RedisURL: "not-a-url"}, nil)
	assert.Error(t, err)
}

func TestRedisNoteCache_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}()

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := NewRedisNoteCache(domain.CacheConfig{
		RedisURL:   "redis://" + endpoint + "/0",
		DefaultTTL: time.Minute,
		PoolSize:   4,
	}, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Health(ctx))

	t.Run("Miss", func(t *testing.T) {
		note, ok, err := c.Get(ctx, "analysis:missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, note)
	})

	t.Run("Set_Then_Get", func(t *testing.T) {
		want := testNote(strings.Repeat("要約", 1000))
		require.NoError(t, c.Set(ctx, "analysis:one", want))

		got, ok, err := c.Get(ctx, "analysis:one")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)

		ttl, err := c.redis.TTL(ctx, "analysis:one").Result()
		require.NoError(t, err)
		assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 5)
	})

	t.Run("Corrupt_Entry_Dropped", func(t *testing.T) {
		require.NoError(t, c.redis.Set(ctx, "analysis:bad", "garbage", time.Minute).Err())

		_, ok, err := c.Get(ctx, "analysis:bad")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = c.redis.Get(ctx, "analysis:bad").Result()
		assert.ErrorIs(t, err, redis.Nil)
	})
}
