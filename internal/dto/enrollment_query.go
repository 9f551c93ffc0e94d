package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
)

// PublicSubmitter is the user_id filter value selecting self-registrations.
const PublicSubmitter = "public"

// Filter converts the query string into repository predicates.
func (q EnrollmentListQuery) Filter() (models.EnrollmentFilter, error) {
	filter := models.EnrollmentFilter{
		Career:    strings.TrimSpace(q.Career),
		Search:    strings.TrimSpace(q.Search),
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}

	if q.Date != "" {
		day, err := time.Parse("2006-01-02", q.Date)
		if err != nil {
			return filter, fmt.Errorf("date must use YYYY-MM-DD")
		}
		filter.Date = &day
	}

	switch uid := strings.TrimSpace(q.UserID); uid {
	case "":
	case PublicSubmitter:
		filter.PublicOnly = true
	default:
		filter.UserID = uid
	}

	switch models.DocumentFilter(strings.ToLower(q.Documents)) {
	case models.DocumentsAny:
	case models.DocumentsWith:
		filter.Documents = models.DocumentsWith
	case models.DocumentsWithout:
		filter.Documents = models.DocumentsWithout
	default:
		return filter, fmt.Errorf("documents must be with or without")
	}

	switch strings.ToLower(q.Printed) {
	case "":
	case "yes", "true", "1":
		printed := true
		filter.Printed = &printed
	case "no", "false", "0":
		printed := false
		filter.Printed = &printed
	default:
		return filter, fmt.Errorf("printed must be yes or no")
	}

	return filter, nil
}
