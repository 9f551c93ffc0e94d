package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/pkg/export"
	"github.com/noah-isme/ctp-enrollment-api/pkg/storage"
)

type enrollmentExportSource interface {
	Export(ctx context.Context, filter models.EnrollmentFilter, limit int) ([]models.Enrollment, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	MaxRows   int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       dto.ReportFormat
	Rows         int
	ExpiresAt    time.Time
}

// ExportService renders enrollment listings and persists them behind signed download links.
type ExportService struct {
	source  enrollmentExportSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(source enrollmentExportSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		source:  source,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate renders every enrollment matching filter (up to MaxRows) and stores the file.
func (s *ExportService) Generate(ctx context.Context, filter models.EnrollmentFilter, format dto.ReportFormat) (*ExportResult, error) {
	enrollments, err := s.source.Export(ctx, filter, s.cfg.MaxRows)
	if err != nil {
		return nil, err
	}
	dataset := enrollmentDataset(enrollments)

	var payload []byte
	switch format {
	case dto.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case dto.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Enrollments")
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("enrollments_%s_%s.%s", s.now().UTC().Format("20060102_150405"), id[:8], format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove unsigned export", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       format,
		Rows:         len(enrollments),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (*storage.SignedDownload, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

var enrollmentExportHeaders = []string{
	"Date", "Full name", "Cedula", "Birth date", "Gender", "Phone", "Email",
	"Municipality", "Community", "Academic level", "Career", "Shift", "Recorded by", "Documents", "Printed",
}

func enrollmentDataset(enrollments []models.Enrollment) export.Dataset {
	rows := make([]map[string]string, 0, len(enrollments))
	for _, e := range enrollments {
		recordedBy := "public form"
		if e.UserName != nil {
			recordedBy = *e.UserName
		}
		rows = append(rows, map[string]string{
			"Date":           e.CreatedAt.Format("2006-01-02"),
			"Full name":      e.FullName,
			"Cedula":         deref(e.Cedula),
			"Birth date":     e.BirthDate.Format("2006-01-02"),
			"Gender":         e.Gender,
			"Phone":          e.Phone,
			"Email":          deref(e.Email),
			"Municipality":   e.Municipality,
			"Community":      e.Community,
			"Academic level": e.AcademicLevel,
			"Career":         e.CareerName,
			"Shift":          e.CareerShift,
			"Recorded by":    recordedBy,
			"Documents":      fmt.Sprintf("%d/%d", documentCount(e.Assets), len(models.AssetKinds)),
			"Printed":        yesNo(e.Printed),
		})
	}
	return export.Dataset{Headers: enrollmentExportHeaders, Rows: rows}
}

func documentCount(a models.Assets) int {
	n := 0
	for _, kind := range models.AssetKinds {
		if a.URL(kind) != "" {
			n++
		}
	}
	return n
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
