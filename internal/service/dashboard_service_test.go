package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type fakeStatsRepo struct {
	calls     int32
	monthly   []models.MonthlyCount
	locations []models.LocationCount
	births    []time.Time
	err       error
}

func (f *fakeStatsRepo) CountSince(ctx context.Context, from time.Time) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	if from.IsZero() {
		return 42, nil
	}
	return 3, nil
}

func (f *fakeStatsRepo) MonthlyCounts(ctx context.Context, from time.Time) ([]models.MonthlyCount, error) {
	return f.monthly, nil
}

func (f *fakeStatsRepo) CountByCareer(ctx context.Context) ([]models.CareerCount, error) {
	return []models.CareerCount{{Career: "Informática", Shift: models.ShiftDay, Count: 30}}, nil
}

func (f *fakeStatsRepo) CountByLocation(ctx context.Context) ([]models.LocationCount, error) {
	return f.locations, nil
}

func (f *fakeStatsRepo) CountByAcademicLevel(ctx context.Context) ([]models.LabelCount, error) {
	return []models.LabelCount{{Label: "Bachiller", Count: 20}}, f.err
}

func (f *fakeStatsRepo) BirthDates(ctx context.Context) ([]time.Time, error) {
	return f.births, nil
}

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("not supported")
}

func newDashboardFixture(repo *fakeStatsRepo, cache *CacheService) *DashboardService {
	svc := NewDashboardService(DashboardServiceParams{
		Repo:   repo,
		Cache:  cache,
		Logger: zap.NewNop(),
		Config: DashboardServiceConfig{SeriesStart: time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)},
	})
	svc.now = func() time.Time { return time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestDashboardStatsComposition(t *testing.T) {
	repo := &fakeStatsRepo{
		monthly: []models.MonthlyCount{{Month: "2025-12", Count: 5}, {Month: "2026-02", Count: 3}},
		locations: []models.LocationCount{
			{Municipality: "Tipitapa", Community: "Las Maderas", Count: 2},
			{Municipality: "Masaya", Community: "Centro", Count: 4},
			{Municipality: "Tipitapa", Community: "San Benito", Count: 3},
		},
		births: []time.Time{
			time.Date(2008, time.February, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2008, time.February, 11, 0, 0, 0, 0, time.UTC),
			time.Date(2000, time.June, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	svc := newDashboardFixture(repo, nil)

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 42, stats.Total)
	assert.Equal(t, 3, stats.CurrentMonth)

	assert.Equal(t, []models.MonthlyCount{
		{Month: "2025-11", Count: 0},
		{Month: "2025-12", Count: 5},
		{Month: "2026-01", Count: 0},
		{Month: "2026-02", Count: 3},
	}, stats.Monthly)

	require.Len(t, stats.ByMunicipality, 2)
	assert.Equal(t, "Tipitapa", stats.ByMunicipality[0].Municipality)
	assert.Equal(t, 5, stats.ByMunicipality[0].Count)
	assert.Len(t, stats.ByMunicipality[0].Communities, 2)
	assert.Equal(t, "Masaya", stats.ByMunicipality[1].Municipality)

	assert.Equal(t, []models.AgeCount{{Age: 17, Count: 1}, {Age: 18, Count: 1}, {Age: 25, Count: 1}}, stats.AgeHistogram)
}

func TestDashboardStatsUsesCacheUntilInvalidated(t *testing.T) {
	repo := &fakeStatsRepo{}
	cache := NewCacheService(&memoryCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := newDashboardFixture(repo, cache)

	_, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	callsAfterFirst := atomic.LoadInt32(&repo.calls)

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 42, stats.Total)
	assert.Equal(t, callsAfterFirst, atomic.LoadInt32(&repo.calls))

	svc.InvalidateStats(context.Background())
	_, cached, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestDashboardStatsQueryFailure(t *testing.T) {
	svc := newDashboardFixture(&fakeStatsRepo{err: errors.New("connection reset")}, nil)

	_, _, err := svc.Stats(context.Background())
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.NotContains(t, appErr.Message, "connection reset")
}
