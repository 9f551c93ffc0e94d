package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
)

// CountSince counts enrollments created at or after from. A zero from counts everything.
func (r *EnrollmentRepository) CountSince(ctx context.Context, from time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM enrollments`
	var args []interface{}
	if !from.IsZero() {
		query += ` WHERE created_at >= $1`
		args = append(args, from)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// MonthlyCounts groups enrollments by UTC creation month starting at from.
// Months without enrollments are absent.
func (r *EnrollmentRepository) MonthlyCounts(ctx context.Context, from time.Time) ([]models.MonthlyCount, error) {
	const query = `SELECT to_char(date_trunc('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month, COUNT(*) AS count
        FROM enrollments WHERE created_at >= $1 GROUP BY 1 ORDER BY 1`
	var rows []models.MonthlyCount
	if err := r.db.SelectContext(ctx, &rows, query, from); err != nil {
		return nil, fmt.Errorf("monthly enrollment counts: %w", err)
	}
	return rows, nil
}

// CountByCareer groups enrollments by career, including careers without enrollments.
func (r *EnrollmentRepository) CountByCareer(ctx context.Context) ([]models.CareerCount, error) {
	const query = `SELECT c.name AS career, c.shift AS shift, COUNT(e.id) AS count
        FROM careers c LEFT JOIN enrollments e ON e.career_id = c.id
        GROUP BY c.id, c.name, c.shift ORDER BY count DESC, c.name`
	var rows []models.CareerCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("enrollments by career: %w", err)
	}
	return rows, nil
}

// CountByLocation groups enrollments by municipality and community.
func (r *EnrollmentRepository) CountByLocation(ctx context.Context) ([]models.LocationCount, error) {
	const query = `SELECT municipality, community, COUNT(*) AS count
        FROM enrollments GROUP BY municipality, community ORDER BY municipality, count DESC, community`
	var rows []models.LocationCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("enrollments by location: %w", err)
	}
	return rows, nil
}

// CountByAcademicLevel groups enrollments by academic level.
func (r *EnrollmentRepository) CountByAcademicLevel(ctx context.Context) ([]models.LabelCount, error) {
	const query = `SELECT academic_level AS label, COUNT(*) AS count
        FROM enrollments GROUP BY academic_level ORDER BY count DESC, academic_level`
	var rows []models.LabelCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("enrollments by academic level: %w", err)
	}
	return rows, nil
}

// BirthDates returns every stored birth date for the age histogram.
func (r *EnrollmentRepository) BirthDates(ctx context.Context) ([]time.Time, error) {
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, `SELECT birth_date FROM enrollments`); err != nil {
		return nil, fmt.Errorf("enrollment birth dates: %w", err)
	}
	return dates, nil
}
