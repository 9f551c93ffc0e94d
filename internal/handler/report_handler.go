package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/internal/service"
	"github.com/noah-isme/ctp-enrollment-api/pkg/response"
)

type reportService interface {
	EnrollmentSheet(ctx context.Context, id string) ([]byte, string, error)
	ExportEnrollments(ctx context.Context, filter models.EnrollmentFilter, format dto.ReportFormat) (*dto.ReportResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes printable sheets and list exports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// EnrollmentSheet godoc
// @Summary Printable enrollment sheet
// @Description Renders the enrollment as PDF and marks it printed.
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/pdf [get]
func (h *ReportHandler) EnrollmentSheet(c *gin.Context) {
	pdf, filename, err := h.reports.EnrollmentSheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// ExportEnrollments godoc
// @Summary Export enrollment list
// @Description Renders every enrollment matching the filters and returns a signed download URL.
// @Tags Reports
// @Produce json
// @Param format query string true "pdf or csv"
// @Param date query string false "Created on day (YYYY-MM-DD)"
// @Param user_id query string false "Recorded by user id, or 'public'"
// @Param career query string false "Career name"
// @Param search query string false "Search by full name"
// @Param documents query string false "with or without"
// @Param printed query string false "yes or no"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/enrollments [get]
func (h *ReportHandler) ExportEnrollments(c *gin.Context) {
	filter, ok := bindEnrollmentFilter(c)
	if !ok {
		return
	}
	format := dto.ReportFormat(strings.ToLower(c.DefaultQuery("format", string(dto.ReportFormatPDF))))
	res, err := h.reports.ExportEnrollments(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Download godoc
// @Summary Download generated report
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.reports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "text/csv; charset=utf-8"
	if strings.HasSuffix(download.Filename, ".pdf") {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, download.File, nil)
}
