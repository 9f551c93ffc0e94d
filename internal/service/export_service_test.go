package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/pkg/export"
	"github.com/noah-isme/ctp-enrollment-api/pkg/storage"
)

type exportSourceStub struct {
	rows      []models.Enrollment
	err       error
	lastLimit int
	lastQuery models.EnrollmentFilter
}

func (s *exportSourceStub) Export(ctx context.Context, filter models.EnrollmentFilter, limit int) ([]models.Enrollment, error) {
	s.lastLimit = limit
	s.lastQuery = filter
	return s.rows, s.err
}

func exportRows() []models.Enrollment {
	recorder := "digitador"
	front := "https://cdn.example.com/front.webp"
	return []models.Enrollment{
		{
			ID: "e1", FullName: "Ana López", BirthDate: time.Date(2005, 3, 4, 0, 0, 0, 0, time.UTC),
			Municipality: "Tipitapa", CareerName: "Informática", CareerShift: "day",
			Assets: models.Assets{models.AssetIDFront: &front}, Printed: true,
			CreatedAt: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			ID: "e2", FullName: "Luis Pérez", UserName: &recorder, CareerName: "Contabilidad",
			CreatedAt: time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC),
		},
	}
}

func newExportServiceForTest(t *testing.T, source *exportSourceStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour, MaxRows: 100}
	svc := NewExportService(source, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(false), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateCSV(t *testing.T) {
	source := &exportSourceStub{rows: exportRows()}
	svc, store := newExportServiceForTest(t, source)

	result, err := svc.Generate(context.Background(), models.EnrollmentFilter{Career: "Informática"}, dto.ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 100, source.lastLimit)
	assert.Equal(t, "Informática", source.lastQuery.Career)
	assert.Equal(t, 2, result.Rows)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))

	content, err := store.Read(result.RelativePath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Ana López")
	assert.Contains(t, lines[1], "public form")
	assert.Contains(t, lines[1], "1/6")
	assert.Contains(t, lines[2], "digitador")

	download, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, result.RelativePath, download.Path)
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, store := newExportServiceForTest(t, &exportSourceStub{rows: exportRows()})

	result, err := svc.Generate(context.Background(), models.EnrollmentFilter{}, dto.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, dto.ReportFormatPDF, result.Format)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	head := make([]byte, 4)
	_, err = file.Read(head)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("%PDF"), head))

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &exportSourceStub{})
	_, err := svc.Generate(context.Background(), models.EnrollmentFilter{}, dto.ReportFormat("xlsx"))
	assert.Error(t, err)
}

func TestExportServiceSourceFailure(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &exportSourceStub{err: errors.New("db down")})
	_, err := svc.Generate(context.Background(), models.EnrollmentFilter{}, dto.ReportFormatCSV)
	assert.EqualError(t, err, "db down")
}
