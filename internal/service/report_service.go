package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/pkg/assets"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
	"github.com/noah-isme/ctp-enrollment-api/pkg/export"
)

type sheetEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	SetPrinted(ctx context.Context, id string, printed bool) error
}

type imageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type sheetRenderer interface {
	RenderSheet(sheet export.Sheet) ([]byte, error)
}

// sheetImageKinds are embedded in the printed sheet, in this order.
var sheetImageKinds = []models.AssetKind{models.AssetIDFront, models.AssetIDBack, models.AssetSignature}

// ReportServiceConfig governs printed sheets and export cleanup.
type ReportServiceConfig struct {
	CenterName  string
	CleanupCron string
}

// ReportService produces enrollment sheets and list exports.
type ReportService struct {
	enrollments sheetEnrollmentStore
	images      imageFetcher
	renderer    sheetRenderer
	exporter    *ExportService
	stats       statsInvalidator
	logger      *zap.Logger
	cfg         ReportServiceConfig
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Enrollments sheetEnrollmentStore
	Images      imageFetcher
	Renderer    sheetRenderer
	Exporter    *ExportService
	Stats       statsInvalidator
	Logger      *zap.Logger
	Config      ReportServiceConfig
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(params ReportServiceParams) *ReportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := params.Renderer
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	cfg := params.Config
	if cfg.CenterName == "" {
		cfg.CenterName = "Technical Education Center"
	}
	return &ReportService{
		enrollments: params.Enrollments,
		images:      params.Images,
		renderer:    renderer,
		exporter:    params.Exporter,
		stats:       params.Stats,
		logger:      logger,
		cfg:         cfg,
	}
}

// EnrollmentSheet renders the printable form of one enrollment and marks it printed.
// Images that cannot be fetched or decoded are left out of the sheet.
func (s *ReportService) EnrollmentSheet(ctx context.Context, id string) ([]byte, string, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	sheet := s.buildSheet(enrollment)
	sheet.Images = s.loadImages(ctx, enrollment)

	pdf, err := s.renderer.RenderSheet(sheet)
	if err != nil {
		s.logger.Error("failed to render enrollment sheet", zap.String("enrollment_id", id), zap.Error(err))
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render enrollment sheet")
	}

	if !enrollment.Printed {
		if err := s.enrollments.SetPrinted(ctx, id, true); err != nil {
			s.logger.Warn("failed to mark enrollment printed", zap.String("enrollment_id", id), zap.Error(err))
		} else if s.stats != nil {
			s.stats.InvalidateStats(ctx)
		}
	}
	return pdf, sheetFilename(enrollment), nil
}

// ExportEnrollments renders the filtered list and returns its signed download link.
func (s *ReportService) ExportEnrollments(ctx context.Context, filter models.EnrollmentFilter, format dto.ReportFormat) (*dto.ReportResponse, error) {
	if format != dto.ReportFormatCSV && format != dto.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}
	result, err := s.exporter.Generate(ctx, filter, format)
	if err != nil {
		s.logger.Error("enrollment export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate export")
	}
	return &dto.ReportResponse{Format: result.Format, Rows: result.Rows, URL: result.URL, ExpiresAt: result.ExpiresAt}, nil
}

// ResolveDownload validates token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	download, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.exporter.Open(download.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{File: file, Filename: filepath.Base(download.Path), ExpiresAt: download.ExpiresAt}, nil
}

// Cleanup purges expired exports once.
func (s *ReportService) Cleanup() {
	removed, err := s.exporter.Cleanup(0)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(removed)))
	}
}

// StartCleanup schedules Cleanup on the configured cron spec. The caller stops the returned scheduler.
func (s *ReportService) StartCleanup() (*cron.Cron, error) {
	spec := s.cfg.CleanupCron
	if spec == "" {
		spec = "@hourly"
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, s.Cleanup); err != nil {
		return nil, fmt.Errorf("schedule report cleanup %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

func (s *ReportService) buildSheet(e *models.Enrollment) export.Sheet {
	recordedBy := "Public form"
	if e.UserName != nil {
		recordedBy = *e.UserName
	}
	return export.Sheet{
		Title:    "Enrollment form",
		Subtitle: s.cfg.CenterName,
		Sections: []export.SheetSection{
			{
				Heading: "Career",
				Fields: []export.SheetField{
					{Label: "Career", Value: e.CareerName},
					{Label: "Shift", Value: e.CareerShift},
				},
			},
			{
				Heading: "Personal data",
				Fields: []export.SheetField{
					{Label: "Full name", Value: e.FullName},
					{Label: "Cedula", Value: deref(e.Cedula)},
					{Label: "Birth date", Value: e.BirthDate.Format("02/01/2006")},
					{Label: "Age", Value: fmt.Sprintf("%d", models.AgeOn(e.BirthDate, e.CreatedAt))},
					{Label: "Gender", Value: e.Gender},
					{Label: "Marital status", Value: e.MaritalStatus},
					{Label: "Academic level", Value: e.AcademicLevel},
					{Label: "Phone", Value: e.Phone},
					{Label: "Email", Value: deref(e.Email)},
					{Label: "Address", Value: strings.Join(nonEmpty(e.Address, e.Community, e.Municipality, e.Department), ", ")},
				},
			},
			{
				Heading: "Emergency contact",
				Fields: []export.SheetField{
					{Label: "Name", Value: e.EmergencyName},
					{Label: "Relationship", Value: e.EmergencyRelationship},
					{Label: "Phone", Value: e.EmergencyPhone},
					{Label: "Address", Value: e.EmergencyAddress},
				},
			},
		},
		Footer: fmt.Sprintf("Registered %s by %s", e.CreatedAt.Format("02/01/2006 15:04"), recordedBy),
	}
}

func (s *ReportService) loadImages(ctx context.Context, e *models.Enrollment) []export.SheetImage {
	if s.images == nil {
		return nil
	}
	slots := make([]*export.SheetImage, len(sheetImageKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range sheetImageKinds {
		i, kind := i, kind
		url := e.Assets.URL(kind)
		if url == "" {
			continue
		}
		g.Go(func() error {
			raw, err := s.images.Fetch(gctx, url)
			if err != nil {
				s.logger.Warn("sheet image unavailable", zap.String("kind", string(kind)), zap.Error(err))
				return nil
			}
			data, typ, err := assets.Printable(raw)
			if err != nil {
				s.logger.Warn("sheet image not printable", zap.String("kind", string(kind)), zap.Error(err))
				return nil
			}
			slots[i] = &export.SheetImage{Label: kind.Label(), Type: typ, Data: data}
			return nil
		})
	}
	_ = g.Wait()

	images := make([]export.SheetImage, 0, len(slots))
	for _, img := range slots {
		if img != nil {
			images = append(images, *img)
		}
	}
	return images
}

func sheetFilename(e *models.Enrollment) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '/' || r == '\\' || r == '"' || r == '.':
			return -1
		}
		return r
	}, strings.TrimSpace(e.FullName))
	if name == "" {
		name = e.ID
	}
	return fmt.Sprintf("enrollment_%s.pdf", name)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
