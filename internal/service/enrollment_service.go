package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/internal/repository"
	"github.com/noah-isme/ctp-enrollment-api/pkg/assets"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
	applog "github.com/noah-isme/ctp-enrollment-api/pkg/logger"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDuplicates(ctx context.Context, cedula, email *string, excludeID string) (models.DuplicateMatch, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
	SetPrinted(ctx context.Context, id string, printed bool) error
}

type careerFinder interface {
	FindByName(ctx context.Context, name string) (*models.Career, error)
}

type assetUploader interface {
	Check(raw string) error
	Upload(ctx context.Context, raw string) (assets.Result, error)
	DeleteMany(ctx context.Context, handles []string)
	HandleFromURL(url string) string
}

type enrollmentNotifier interface {
	EnrollmentCreated(ctx context.Context, enrollment models.Enrollment)
}

type statsInvalidator interface {
	InvalidateStats(ctx context.Context)
}

// Messages returned for classified enrollment write failures.
const (
	msgDuplicateCedula = "this cedula is already registered"
	msgDuplicateEmail  = "this email is already registered"
	msgUnknownCareer   = "the selected career does not exist"
	msgAssetUpload     = "could not upload documents, please try again"
	msgIDInUse         = "this enrollment id is already in use"
)

// EnrollmentServiceParams groups constructor dependencies.
type EnrollmentServiceParams struct {
	Repo      enrollmentRepository
	Careers   careerFinder
	Uploader  assetUploader
	Notifier  enrollmentNotifier
	Stats     statsInvalidator
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// EnrollmentService writes enrollments across the relational store and the
// object store, compensating uploads when the database write fails.
type EnrollmentService struct {
	repo      enrollmentRepository
	careers   careerFinder
	uploader  assetUploader
	notifier  enrollmentNotifier
	stats     statsInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(params EnrollmentServiceParams) *EnrollmentService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = dto.NewValidator()
	}
	return &EnrollmentService{
		repo:      params.Repo,
		careers:   params.Careers,
		uploader:  params.Uploader,
		notifier:  params.Notifier,
		stats:     params.Stats,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns a page of enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an enrollment by id.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Create validates and persists a new enrollment. A nil actor records a
// public self-registration. A request carrying the id of an enrollment that
// already holds the same submission returns that enrollment unchanged, so a
// client retrying after a lost response does not record it twice.
func (s *EnrollmentService) Create(ctx context.Context, actor *models.Actor, req dto.EnrollmentRequest) (*models.Enrollment, error) {
	birthDate, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	for _, kind := range models.AssetKinds {
		raw := req.Assets[kind]
		if raw != "" && !assets.IsEmbedded(raw) && s.uploader.HandleFromURL(raw) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assets.%s must be an embedded image or a stored document URL", kind))
		}
	}

	enrollment := buildEnrollment(req, birthDate)
	enrollment.ID = req.ID
	if actor != nil && actor.UserID != "" {
		userID := actor.UserID
		enrollment.UserID = &userID
	}

	if enrollment.ID != "" {
		existing, err := s.findResubmission(ctx, enrollment)
		if err != nil || existing != nil {
			return existing, err
		}
	}
	if err := s.checkDuplicates(ctx, enrollment.Cedula, enrollment.Email, ""); err != nil {
		return nil, err
	}
	career, err := s.resolveCareer(ctx, req.Career)
	if err != nil {
		return nil, err
	}
	enrollment.CareerID = career.ID
	enrollment.CareerName = career.Name
	enrollment.CareerShift = string(career.Shift)

	uploaded, handles, err := s.uploadAll(ctx, req.Assets)
	if err != nil {
		return nil, err
	}
	for _, kind := range models.AssetKinds {
		if url, ok := uploaded[kind]; ok {
			enrollment.Assets.Set(kind, url)
		} else if raw := req.Assets[kind]; raw != "" && !assets.IsEmbedded(raw) {
			enrollment.Assets.Set(kind, strings.TrimSpace(raw))
		}
	}

	if err := s.repo.Create(ctx, enrollment); err != nil {
		s.compensate(ctx, handles)
		s.metrics.RecordEnrollmentWrite("create", "failed")
		if constraint, ok := repository.UniqueViolation(err); ok && constraint == repository.ConstraintEnrollmentPrimaryKey {
			// A concurrent retry committed the same id first.
			existing, findErr := s.findResubmission(ctx, enrollment)
			if findErr != nil || existing != nil {
				return existing, findErr
			}
		}
		return nil, s.classifyWriteError(err, "failed to save enrollment")
	}
	s.metrics.RecordEnrollmentWrite("create", "ok")
	applog.For(ctx, s.logger).Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.Bool("public", enrollment.UserID == nil),
		zap.Int("assets", len(handles)))

	s.invalidateStats(ctx)
	if s.notifier != nil {
		s.notifier.EnrollmentCreated(ctx, *enrollment)
	}
	return enrollment, nil
}

// Update replaces an enrollment's fields. Asset values may be new embedded
// images, the currently stored URL, or an empty string to remove the
// document; kinds missing from the request keep their current value.
func (s *EnrollmentService) Update(ctx context.Context, actor *models.Actor, id string, req dto.EnrollmentRequest) (*models.Enrollment, error) {
	birthDate, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	pending := make(map[models.AssetKind]string)
	next := current.Assets.Clone()
	var replaced []string
	for kind, raw := range req.Assets {
		old := current.Assets.URL(kind)
		switch {
		case raw == "":
			next.Set(kind, "")
			if old != "" {
				replaced = append(replaced, old)
			}
		case assets.IsEmbedded(raw):
			pending[kind] = raw
			if old != "" {
				replaced = append(replaced, old)
			}
		case raw != old:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assets.%s must be an embedded image or the stored URL", kind))
		}
	}

	if req.ID != "" && req.ID != id {
		return nil, appErrors.Clone(appErrors.ErrValidation, "id does not match the enrollment being updated")
	}

	updated := buildEnrollment(req, birthDate)
	updated.ID = current.ID
	updated.UserID = current.UserID
	updated.UserName = current.UserName
	updated.Printed = current.Printed
	updated.CreatedAt = current.CreatedAt
	updated.Assets = next

	if err := s.checkDuplicates(ctx, updated.Cedula, updated.Email, id); err != nil {
		return nil, err
	}
	career, err := s.resolveCareer(ctx, req.Career)
	if err != nil {
		return nil, err
	}
	updated.CareerID = career.ID
	updated.CareerName = career.Name
	updated.CareerShift = string(career.Shift)

	uploaded, handles, err := s.uploadAll(ctx, pending)
	if err != nil {
		return nil, err
	}
	for kind, url := range uploaded {
		updated.Assets.Set(kind, url)
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		// The previous objects stay referenced by the unchanged row.
		s.compensate(ctx, handles)
		s.metrics.RecordEnrollmentWrite("update", "failed")
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, s.classifyWriteError(err, "failed to update enrollment")
	}
	s.metrics.RecordEnrollmentWrite("update", "ok")

	if len(replaced) > 0 {
		s.uploader.DeleteMany(context.WithoutCancel(ctx), s.handlesFor(replaced))
	}
	var actorID string
	if actor != nil {
		actorID = actor.UserID
	}
	applog.For(ctx, s.logger).Info("enrollment updated",
		zap.String("enrollment_id", id),
		zap.String("actor_id", actorID),
		zap.Int("uploaded", len(handles)),
		zap.Int("replaced", len(replaced)))

	s.invalidateStats(ctx)
	return updated, nil
}

// Delete removes an enrollment's stored documents and then its row.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var urls []string
	for _, kind := range models.AssetKinds {
		if url := current.Assets.URL(kind); url != "" {
			urls = append(urls, url)
		}
	}
	if len(urls) > 0 {
		s.uploader.DeleteMany(context.WithoutCancel(ctx), s.handlesFor(urls))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		applog.For(ctx, s.logger).Error("enrollment delete failed after assets were removed", zap.String("enrollment_id", id), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	s.metrics.RecordEnrollmentWrite("delete", "ok")
	s.invalidateStats(ctx)
	return nil
}

// MarkPrinted sets the printed flag.
func (s *EnrollmentService) MarkPrinted(ctx context.Context, id string, printed bool) error {
	if err := s.repo.SetPrinted(ctx, id, printed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update printed flag")
	}
	return nil
}

func (s *EnrollmentService) validate(req dto.EnrollmentRequest) (time.Time, error) {
	if err := s.validator.Struct(req); err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	for kind := range req.Assets {
		if !kind.Valid() {
			return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document %q", kind))
		}
	}
	for _, kind := range models.AssetKinds {
		if err := s.uploader.Check(req.Assets[kind]); err != nil {
			return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("assets.%s is not a valid image", kind))
		}
	}
	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "birth_date must use YYYY-MM-DD")
	}
	return birthDate, nil
}

// findResubmission returns the stored enrollment with candidate's id when it
// records the same person. Another record under that id is a conflict.
func (s *EnrollmentService) findResubmission(ctx context.Context, candidate *models.Enrollment) (*models.Enrollment, error) {
	existing, err := s.repo.FindByID(ctx, candidate.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !sameSubmission(existing, candidate) {
		return nil, appErrors.Clone(appErrors.ErrConflict, msgIDInUse)
	}
	applog.For(ctx, s.logger).Info("enrollment resubmitted", zap.String("enrollment_id", existing.ID))
	return existing, nil
}

func sameSubmission(a, b *models.Enrollment) bool {
	return a.FullName == b.FullName &&
		a.BirthDate.Equal(b.BirthDate) &&
		equalOptional(a.Cedula, b.Cedula) &&
		equalOptional(a.Email, b.Email)
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *EnrollmentService) checkDuplicates(ctx context.Context, cedula, email *string, excludeID string) error {
	match, err := s.repo.FindDuplicates(ctx, cedula, email, excludeID)
	if err != nil {
		s.logger.Error("duplicate check failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify enrollment uniqueness")
	}
	switch {
	case match.Cedula:
		return appErrors.Clone(appErrors.ErrDuplicate, msgDuplicateCedula)
	case match.Email:
		return appErrors.Clone(appErrors.ErrDuplicate, msgDuplicateEmail)
	}
	return nil
}

func (s *EnrollmentService) resolveCareer(ctx context.Context, name string) (*models.Career, error) {
	career, err := s.careers.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReference, msgUnknownCareer)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve career")
	}
	return career, nil
}

// uploadAll uploads every embedded payload concurrently. On failure the
// objects already stored are deleted before the error is returned.
func (s *EnrollmentService) uploadAll(ctx context.Context, payloads map[models.AssetKind]string) (map[models.AssetKind]string, []string, error) {
	var (
		mu      sync.Mutex
		urls    = make(map[models.AssetKind]string)
		handles []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for kind, raw := range payloads {
		if !assets.IsEmbedded(raw) {
			continue
		}
		kind, raw := kind, raw
		g.Go(func() error {
			res, err := s.uploader.Upload(gctx, raw)
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			if !res.Uploaded() {
				return nil
			}
			mu.Lock()
			urls[kind] = res.URL
			handles = append(handles, res.Handle)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	s.metrics.RecordAssetUploads(len(handles))
	if err != nil {
		applog.For(ctx, s.logger).Warn("asset upload failed", zap.Error(err), zap.Int("compensating", len(handles)))
		s.compensate(ctx, handles)
		if errors.Is(err, assets.ErrInvalidPayload) {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document image")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrAssetUpload.Code, appErrors.ErrAssetUpload.Status, msgAssetUpload)
	}
	return urls, handles, nil
}

func (s *EnrollmentService) compensate(ctx context.Context, handles []string) {
	if len(handles) == 0 {
		return
	}
	s.metrics.RecordAssetCompensation(len(handles))
	s.uploader.DeleteMany(context.WithoutCancel(ctx), handles)
}

func (s *EnrollmentService) handlesFor(urls []string) []string {
	handles := make([]string, 0, len(urls))
	for _, url := range urls {
		if handle := s.uploader.HandleFromURL(url); handle != "" {
			handles = append(handles, handle)
		} else {
			s.logger.Warn("no deletion handle for stored asset", zap.String("url", url))
		}
	}
	return handles
}

// classifyWriteError maps store failures onto user-safe errors. Raw database
// text is logged, never returned.
func (s *EnrollmentService) classifyWriteError(err error, message string) error {
	if constraint, ok := repository.UniqueViolation(err); ok {
		switch constraint {
		case repository.ConstraintEnrollmentCedula:
			return appErrors.Clone(appErrors.ErrDuplicate, msgDuplicateCedula)
		case repository.ConstraintEnrollmentEmail:
			return appErrors.Clone(appErrors.ErrDuplicate, msgDuplicateEmail)
		}
		s.logger.Warn("unexpected unique violation", zap.String("constraint", constraint), zap.Error(err))
		return appErrors.Clone(appErrors.ErrDuplicate, "")
	}
	if _, ok := repository.ForeignKeyViolation(err); ok {
		return appErrors.Clone(appErrors.ErrReference, msgUnknownCareer)
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *EnrollmentService) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.InvalidateStats(ctx)
	}
}

func buildEnrollment(req dto.EnrollmentRequest, birthDate time.Time) *models.Enrollment {
	return &models.Enrollment{
		FullName:              strings.TrimSpace(req.FullName),
		BirthDate:             birthDate,
		Gender:                req.Gender,
		MaritalStatus:         req.MaritalStatus,
		Cedula:                optional(req.Cedula, strings.ToUpper),
		Department:            strings.TrimSpace(req.Department),
		Municipality:          strings.TrimSpace(req.Municipality),
		Community:             strings.TrimSpace(req.Community),
		Address:               strings.TrimSpace(req.Address),
		Phone:                 strings.TrimSpace(req.Phone),
		Email:                 optional(req.Email, strings.ToLower),
		AcademicLevel:         strings.TrimSpace(req.AcademicLevel),
		EmergencyName:         strings.TrimSpace(req.EmergencyName),
		EmergencyRelationship: strings.TrimSpace(req.EmergencyRelationship),
		EmergencyPhone:        strings.TrimSpace(req.EmergencyPhone),
		EmergencyAddress:      strings.TrimSpace(req.EmergencyAddress),
		Assets:                models.Assets{},
	}
}

// optional turns blank input into an absent value so empty strings never
// collide on unique columns.
func optional(value string, normalize func(string) string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	value = normalize(value)
	return &value
}
