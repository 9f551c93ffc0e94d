package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
)

// CareerRepository provides database access for careers.
type CareerRepository struct {
	db *sqlx.DB
}

// NewCareerRepository constructs a CareerRepository.
func NewCareerRepository(db *sqlx.DB) *CareerRepository {
	return &CareerRepository{db: db}
}

// List returns careers with their enrollment counts.
func (r *CareerRepository) List(ctx context.Context, filter models.CareerFilter) ([]models.Career, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+strings.TrimSpace(filter.Search)+"%")
	}
	query := fmt.Sprintf(`SELECT c.id, c.name, c.shift, c.active, c.created_at, c.updated_at, COUNT(e.id) AS enrollment_count
        FROM careers c LEFT JOIN enrollments e ON e.career_id = c.id
        WHERE %s GROUP BY c.id ORDER BY c.name ASC`, strings.Join(conditions, " AND "))

	var careers []models.Career
	if err := r.db.SelectContext(ctx, &careers, query, args...); err != nil {
		return nil, fmt.Errorf("list careers: %w", err)
	}
	return careers, nil
}

// FindByID returns a career by identifier.
func (r *CareerRepository) FindByID(ctx context.Context, id string) (*models.Career, error) {
	const query = `SELECT id, name, shift, active, created_at, updated_at FROM careers WHERE id = $1`
	var career models.Career
	if err := r.db.GetContext(ctx, &career, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find career: %w", err)
	}
	return &career, nil
}

// FindByName returns a career by its unique name.
func (r *CareerRepository) FindByName(ctx context.Context, name string) (*models.Career, error) {
	const query = `SELECT id, name, shift, active, created_at, updated_at FROM careers WHERE name = $1`
	var career models.Career
	if err := r.db.GetContext(ctx, &career, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find career by name: %w", err)
	}
	return &career, nil
}

// Create inserts a career.
func (r *CareerRepository) Create(ctx context.Context, career *models.Career) error {
	if career.ID == "" {
		career.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if career.CreatedAt.IsZero() {
		career.CreatedAt = now
	}
	career.UpdatedAt = now
	const query = `INSERT INTO careers (id, name, shift, active, created_at, updated_at) VALUES (:id, :name, :shift, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, career); err != nil {
		return fmt.Errorf("create career: %w", err)
	}
	return nil
}

// Update modifies name and shift.
func (r *CareerRepository) Update(ctx context.Context, career *models.Career) error {
	career.UpdatedAt = time.Now().UTC()
	const query = `UPDATE careers SET name = :name, shift = :shift, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, career)
	if err != nil {
		return fmt.Errorf("update career: %w", err)
	}
	return expectAffected(res)
}

// SetActive toggles availability on the public intake form.
func (r *CareerRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE careers SET active = $2, updated_at = $3 WHERE id = $1`, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set career active: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a career. Referenced careers fail with a foreign key violation.
func (r *CareerRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM careers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete career: %w", err)
	}
	return expectAffected(res)
}
