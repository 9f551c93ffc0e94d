package dto

import "time"

// ReportFormat enumerates export formats.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatPDF ReportFormat = "pdf"
	ReportFormatCSV ReportFormat = "csv"
)

// ReportResponse points at a generated export.
type ReportResponse struct {
	Format    ReportFormat `json:"format"`
	Rows      int          `json:"rows"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}
