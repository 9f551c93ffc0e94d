package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type careerRepository interface {
	List(ctx context.Context, filter models.CareerFilter) ([]models.Career, error)
	FindByID(ctx context.Context, id string) (*models.Career, error)
	Create(ctx context.Context, career *models.Career) error
	Update(ctx context.Context, career *models.Career) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// CareerService manages the careers offered on the intake form.
type CareerService struct {
	repo      careerRepository
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCareerService constructs a CareerService.
func NewCareerService(repo careerRepository, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *CareerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = dto.NewValidator()
	}
	return &CareerService{repo: repo, stats: stats, validator: validate, logger: logger}
}

// List returns careers with enrollment counts.
func (s *CareerService) List(ctx context.Context, filter models.CareerFilter) ([]models.Career, error) {
	careers, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list careers")
	}
	return careers, nil
}

// ListActive returns careers open for public enrollment.
func (s *CareerService) ListActive(ctx context.Context) ([]models.Career, error) {
	active := true
	return s.List(ctx, models.CareerFilter{Active: &active})
}

// Create adds a career. New careers start active.
func (s *CareerService) Create(ctx context.Context, req dto.CareerRequest) (*models.Career, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid career payload")
	}
	career := &models.Career{Name: strings.TrimSpace(req.Name), Shift: req.Shift, Active: true}
	if err := s.repo.Create(ctx, career); err != nil {
		return nil, s.classify(err, "failed to create career")
	}
	s.invalidate(ctx)
	return career, nil
}

// Update renames a career or changes its shift.
func (s *CareerService) Update(ctx context.Context, id string, req dto.CareerRequest) (*models.Career, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid career payload")
	}
	career, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	career.Name = strings.TrimSpace(req.Name)
	career.Shift = req.Shift
	if err := s.repo.Update(ctx, career); err != nil {
		return nil, s.classify(err, "failed to update career")
	}
	s.invalidate(ctx)
	return career, nil
}

// SetActive toggles whether the career appears on the public form.
func (s *CareerService) SetActive(ctx context.Context, id string, req dto.CareerActiveRequest) (*models.Career, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "active is required")
	}
	if err := s.repo.SetActive(ctx, id, *req.Active); err != nil {
		return nil, s.classify(err, "failed to toggle career")
	}
	return s.get(ctx, id)
}

// Delete removes a career that no enrollment references.
func (s *CareerService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.classify(err, "failed to delete career")
	}
	s.invalidate(ctx)
	return nil
}

func (s *CareerService) get(ctx context.Context, id string) (*models.Career, error) {
	career, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "career not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load career")
	}
	return career, nil
}

func (s *CareerService) classify(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "career not found")
	}
	if _, ok := repository.UniqueViolation(err); ok {
		return appErrors.Clone(appErrors.ErrDuplicate, "a career with this name already exists")
	}
	if _, ok := repository.ForeignKeyViolation(err); ok {
		return appErrors.Clone(appErrors.ErrConflict, "career has enrollments")
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *CareerService) invalidate(ctx context.Context) {
	if s.stats != nil {
		s.stats.InvalidateStats(ctx)
	}
}
