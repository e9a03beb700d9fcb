package archive

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshav2232/viva/internal/viva/domain"
)

func sampleReport(id string) *domain.Report {
	return &domain.Report{
		SessionID:   id,
		Topic:       "Thermodynamics",
		Difficulty:  domain.DifficultyEasy,
		Persona:     domain.PersonaConfusedPeer,
		FinishedAt:  time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		FillerStats: domain.FillerStats{TotalWords: 12, FillerCount: 3, ByWord: map[string]int{"like": 3}},
		Summary:     domain.Summary{OverallScore: 7, Strengths: []string{"examples"}, Improvements: []string{"pace"}},
	}
}

func TestNewRedisRequiresClient(t *testing.T) {
	_, err := NewRedis(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRedisFromURL("")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRedisFromURL("not a url://")
	assert.Error(t, err)
}

func TestOptionsAndKey(t *testing.T) {
	a, err := NewRedisFromURL("redis://localhost:6379/2", WithTTL(time.Hour), WithKeyPrefix("test:"))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, time.Hour, a.ttl)
	assert.Equal(t, "test:abc", a.key("abc"))

	b, err := NewRedisFromURL("redis://localhost:6379", WithTTL(0))
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, defaultTTL, b.ttl, "non-positive TTL keeps the default")
	assert.Equal(t, "viva:report:abc", b.key("abc"))
}

func TestEncodeDecode(t *testing.T) {
	r := sampleReport("s-9")
	data, err := encode(r)
	require.NoError(t, err)

	got, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, r.Summary, got.Summary)
	assert.Equal(t, r.FillerStats, got.FillerStats)
	assert.True(t, r.FinishedAt.Equal(got.FinishedAt))

	_, err = encode(&domain.Report{})
	assert.Error(t, err)
	_, err = decode([]byte("{"))
	assert.Error(t, err)
}

// TestRedisRoundTrip runs against a live server when REDIS_URL is set.
func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	a, err := NewRedisFromURL(url, WithKeyPrefix("viva-test:"), WithTTL(time.Minute))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Ping(ctx))

	r := sampleReport("roundtrip")
	require.NoError(t, a.SaveReport(ctx, r))
	got, err := a.GetReport(ctx, "roundtrip")
	require.NoError(t, err)
	assert.Equal(t, r.Topic, got.Topic)

	_, err = a.GetReport(ctx, "absent")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}
