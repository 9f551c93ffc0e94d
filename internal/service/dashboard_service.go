package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

const dashboardStatsKey = "dash:enrollment-stats"

type enrollmentStatsRepository interface {
	CountSince(ctx context.Context, from time.Time) (int, error)
	MonthlyCounts(ctx context.Context, from time.Time) ([]models.MonthlyCount, error)
	CountByCareer(ctx context.Context) ([]models.CareerCount, error)
	CountByLocation(ctx context.Context) ([]models.LocationCount, error)
	CountByAcademicLevel(ctx context.Context) ([]models.LabelCount, error)
	BirthDates(ctx context.Context) ([]time.Time, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	SeriesStart time.Time
}

// DashboardService composes enrollment statistics for the admin dashboard.
type DashboardService struct {
	repo   enrollmentStatsRepository
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo   enrollmentStatsRepository
	Cache  *CacheService
	Logger *zap.Logger
	Config DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.SeriesStart.IsZero() {
		cfg.SeriesStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:   params.Repo,
		cache:  params.Cache,
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
}

// Stats returns the dashboard statistics and whether they came from cache.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, bool, error) {
	if s.cache != nil {
		var cached models.DashboardStats
		hit, err := s.cache.Get(ctx, dashboardStatsKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	stats, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardStatsKey, stats, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", dashboardStatsKey), zap.Error(err))
		}
	}
	return stats, false, nil
}

// InvalidateStats drops cached statistics after an enrollment or career write.
func (s *DashboardService) InvalidateStats(ctx context.Context) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardStatsKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardStats, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	seriesStart := time.Date(s.cfg.SeriesStart.Year(), s.cfg.SeriesStart.Month(), 1, 0, 0, 0, 0, time.UTC)

	var (
		total, current int
		monthly        []models.MonthlyCount
		careers        []models.CareerCount
		locations      []models.LocationCount
		levels         []models.LabelCount
		births         []time.Time
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = s.repo.CountSince(gctx, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		current, err = s.repo.CountSince(gctx, monthStart)
		return err
	})
	g.Go(func() (err error) {
		monthly, err = s.repo.MonthlyCounts(gctx, seriesStart)
		return err
	})
	g.Go(func() (err error) {
		careers, err = s.repo.CountByCareer(gctx)
		return err
	})
	g.Go(func() (err error) {
		locations, err = s.repo.CountByLocation(gctx)
		return err
	})
	g.Go(func() (err error) {
		levels, err = s.repo.CountByAcademicLevel(gctx)
		return err
	})
	g.Go(func() (err error) {
		births, err = s.repo.BirthDates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard statistics query failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard statistics")
	}

	if careers == nil {
		careers = []models.CareerCount{}
	}
	if levels == nil {
		levels = []models.LabelCount{}
	}
	return &models.DashboardStats{
		Total:           total,
		CurrentMonth:    current,
		Monthly:         fillMonths(seriesStart, monthStart, monthly),
		ByCareer:        careers,
		ByMunicipality:  nestLocations(locations),
		ByAcademicLevel: levels,
		AgeHistogram:    ageHistogram(births, now),
		GeneratedAt:     now,
	}, nil
}

// fillMonths returns one bucket per month in [from, to], zero where rows has none.
func fillMonths(from, to time.Time, rows []models.MonthlyCount) []models.MonthlyCount {
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Month] = row.Count
	}
	series := []models.MonthlyCount{}
	for m := from; !m.After(to); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		series = append(series, models.MonthlyCount{Month: key, Count: counts[key]})
	}
	return series
}

// nestLocations groups community rows under their municipality, largest first.
func nestLocations(rows []models.LocationCount) []models.MunicipalityCount {
	index := make(map[string]int)
	out := []models.MunicipalityCount{}
	for _, row := range rows {
		i, ok := index[row.Municipality]
		if !ok {
			i = len(out)
			index[row.Municipality] = i
			out = append(out, models.MunicipalityCount{Municipality: row.Municipality, Communities: []models.LabelCount{}})
		}
		out[i].Count += row.Count
		out[i].Communities = append(out[i].Communities, models.LabelCount{Label: row.Community, Count: row.Count})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Municipality < out[b].Municipality
	})
	return out
}

// ageHistogram buckets birth dates by age on ref, ascending.
func ageHistogram(births []time.Time, ref time.Time) []models.AgeCount {
	counts := make(map[int]int)
	for _, birth := range births {
		counts[models.AgeOn(birth, ref)]++
	}
	out := make([]models.AgeCount, 0, len(counts))
	for age, count := range counts {
		out = append(out, models.AgeCount{Age: age, Count: count})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Age < out[b].Age })
	return out
}
