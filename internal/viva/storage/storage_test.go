package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshav2232/viva/internal/viva/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveUserGetOrCreate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first, err := s.SaveUser(ctx, "Asha", "Asha@Example.com ")
	require.NoError(t, err)
	assert.Len(t, first.ID, 26, "ulid")
	assert.Equal(t, "asha@example.com", first.Email)

	again, err := s.SaveUser(ctx, "Asha K", "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Asha", again.Name, "existing account is returned unchanged")

	_, err = s.SaveUser(ctx, "", "x@y.z")
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
	assert.NotErrorIs(t, err, domain.ErrInvalidSession)
}

func TestListUsersNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		at := base.Add(time.Duration(i) * time.Hour)
		s.now = func() time.Time { return at }
		_, err := s.SaveUser(ctx, email, email)
		require.NoError(t, err)
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "c@x.io", users[0].Email)
	assert.Equal(t, "a@x.io", users[2].Email)
	assert.True(t, users[0].CreatedAt.Equal(base.Add(2*time.Hour)))
}

func TestListUsersEmpty(t *testing.T) {
	s := newTestStorage(t)
	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestConcurrentLoginsSameEmail(t *testing.T) {
	s := newTestStorage(t)
	ids := make([]string, 10)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := s.SaveUser(context.Background(), "Ravi", "ravi@example.com")
			if assert.NoError(t, err) {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestReports(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)

	finished := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	r := &domain.Report{
		SessionID:  "s-1",
		Topic:      "Optics",
		Difficulty: domain.DifficultyTough,
		Persona:    domain.PersonaRuthlessExaminer,
		FinishedAt: finished,
		Transcript: []domain.Turn{{Role: domain.RoleExaminer, Content: "Define refraction."}},
		FillerStats: domain.FillerStats{
			TotalWords: 10, FillerCount: 2, ByWord: map[string]int{"um": 2},
		},
		Summary: domain.Summary{OverallScore: 6, Strengths: []string{"pace"}, Improvements: []string{}},
	}
	require.NoError(t, s.SaveReport(ctx, r))

	got, err := s.GetReport(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, r.Topic, got.Topic)
	assert.Equal(t, r.FillerStats, got.FillerStats)
	assert.Equal(t, r.Summary, got.Summary)
	assert.True(t, got.FinishedAt.Equal(finished))

	r.Summary.OverallScore = 8
	require.NoError(t, s.SaveReport(ctx, r), "saving again replaces")

	list, err := s.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 8.0, list[0].OverallScore)
	assert.Equal(t, "ruthless_examiner", list[0].Persona)
}
