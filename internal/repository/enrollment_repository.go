package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
)

const enrollmentSelect = `SELECT e.id, e.full_name, e.birth_date, e.gender, e.marital_status, e.cedula, e.department, e.municipality, e.community, e.address, e.phone, e.email, e.academic_level,
        e.emergency_name, e.emergency_relationship, e.emergency_phone, e.emergency_address, e.career_id, e.user_id,
        e.id_front_url, e.id_back_url, e.birth_certificate_url, e.diploma_url, e.grades_certificate_url, e.signature_url,
        e.printed, e.created_at, e.updated_at, c.name AS career_name, c.shift AS career_shift, u.name AS user_name`

const enrollmentFrom = `FROM enrollments e JOIN careers c ON c.id = e.career_id LEFT JOIN users u ON u.id = e.user_id`

type enrollmentRow struct {
	ID                    string    `db:"id"`
	FullName              string    `db:"full_name"`
	BirthDate             time.Time `db:"birth_date"`
	Gender                string    `db:"gender"`
	MaritalStatus         string    `db:"marital_status"`
	Cedula                *string   `db:"cedula"`
	Department            string    `db:"department"`
	Municipality          string    `db:"municipality"`
	Community             string    `db:"community"`
	Address               string    `db:"address"`
	Phone                 string    `db:"phone"`
	Email                 *string   `db:"email"`
	AcademicLevel         string    `db:"academic_level"`
	EmergencyName         string    `db:"emergency_name"`
	EmergencyRelationship string    `db:"emergency_relationship"`
	EmergencyPhone        string    `db:"emergency_phone"`
	EmergencyAddress      string    `db:"emergency_address"`
	CareerID              string    `db:"career_id"`
	UserID                *string   `db:"user_id"`
	IDFrontURL            *string   `db:"id_front_url"`
	IDBackURL             *string   `db:"id_back_url"`
	BirthCertificateURL   *string   `db:"birth_certificate_url"`
	DiplomaURL            *string   `db:"diploma_url"`
	GradesCertificateURL  *string   `db:"grades_certificate_url"`
	SignatureURL          *string   `db:"signature_url"`
	Printed               bool      `db:"printed"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
	CareerName            string    `db:"career_name"`
	CareerShift           string    `db:"career_shift"`
	UserName              *string   `db:"user_name"`
}

func (r enrollmentRow) toModel() models.Enrollment {
	return models.Enrollment{
		ID:                    r.ID,
		FullName:              r.FullName,
		BirthDate:             r.BirthDate,
		Gender:                r.Gender,
		MaritalStatus:         r.MaritalStatus,
		Cedula:                r.Cedula,
		Department:            r.Department,
		Municipality:          r.Municipality,
		Community:             r.Community,
		Address:               r.Address,
		Phone:                 r.Phone,
		Email:                 r.Email,
		AcademicLevel:         r.AcademicLevel,
		EmergencyName:         r.EmergencyName,
		EmergencyRelationship: r.EmergencyRelationship,
		EmergencyPhone:        r.EmergencyPhone,
		EmergencyAddress:      r.EmergencyAddress,
		CareerID:              r.CareerID,
		CareerName:            r.CareerName,
		CareerShift:           r.CareerShift,
		UserID:                r.UserID,
		UserName:              r.UserName,
		Assets: models.Assets{
			models.AssetIDFront:           r.IDFrontURL,
			models.AssetIDBack:            r.IDBackURL,
			models.AssetBirthCertificate:  r.BirthCertificateURL,
			models.AssetDiploma:           r.DiplomaURL,
			models.AssetGradesCertificate: r.GradesCertificateURL,
			models.AssetSignature:         r.SignatureURL,
		},
		Printed:   r.Printed,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func enrollmentParams(e *models.Enrollment) map[string]interface{} {
	params := map[string]interface{}{
		"id":                     e.ID,
		"full_name":              e.FullName,
		"birth_date":             e.BirthDate,
		"gender":                 e.Gender,
		"marital_status":         e.MaritalStatus,
		"cedula":                 e.Cedula,
		"department":             e.Department,
		"municipality":           e.Municipality,
		"community":              e.Community,
		"address":                e.Address,
		"phone":                  e.Phone,
		"email":                  e.Email,
		"academic_level":         e.AcademicLevel,
		"emergency_name":         e.EmergencyName,
		"emergency_relationship": e.EmergencyRelationship,
		"emergency_phone":        e.EmergencyPhone,
		"emergency_address":      e.EmergencyAddress,
		"career_id":              e.CareerID,
		"user_id":                e.UserID,
		"printed":                e.Printed,
		"created_at":             e.CreatedAt,
		"updated_at":             e.UpdatedAt,
	}
	for _, kind := range models.AssetKinds {
		params[kind.Column()] = e.Assets[kind]
	}
	return params
}

// EnrollmentRepository manages persistence for enrollment records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func enrollmentWhere(filter models.EnrollmentFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Date != nil {
		day := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, filter.Date.Location())
		conditions = append(conditions, fmt.Sprintf("e.created_at >= $%d AND e.created_at < $%d", len(args)+1, len(args)+2))
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	if filter.PublicOnly {
		conditions = append(conditions, "e.user_id IS NULL")
	} else if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Career != "" {
		conditions = append(conditions, fmt.Sprintf("c.name = $%d", len(args)+1))
		args = append(args, filter.Career)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("e.full_name ILIKE $%d", len(args)+1))
		args = append(args, "%"+strings.TrimSpace(filter.Search)+"%")
	}
	switch filter.Documents {
	case models.DocumentsWithout:
		conditions = append(conditions, "("+assetPredicate("IS NULL", " AND ")+")")
	case models.DocumentsWith:
		conditions = append(conditions, "("+assetPredicate("IS NOT NULL", " OR ")+")")
	}
	if filter.Printed != nil {
		conditions = append(conditions, fmt.Sprintf("e.printed = $%d", len(args)+1))
		args = append(args, *filter.Printed)
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func assetPredicate(test, join string) string {
	parts := make([]string, 0, len(models.AssetKinds))
	for _, kind := range models.AssetKinds {
		parts = append(parts, "e."+kind.Column()+" "+test)
	}
	return strings.Join(parts, join)
}

func enrollmentOrder(filter models.EnrollmentFilter) string {
	allowedSorts := map[string]string{
		"created_at": "e.created_at",
		"full_name":  "e.full_name",
		"career":     "c.name",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, e.id", column, order)
}

// List returns one page of enrollments matching filter and the total match count.
// The page query and the count query run concurrently.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	where, args := enrollmentWhere(filter)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("%s %s %s %s LIMIT %d OFFSET %d", enrollmentSelect, enrollmentFrom, where, enrollmentOrder(filter), size, offset)
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s %s", enrollmentFrom, where)

	var (
		rows  []enrollmentRow
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.db.SelectContext(gctx, &rows, listQuery, args...); err != nil {
			return fmt.Errorf("list enrollments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := r.db.GetContext(gctx, &total, countQuery, args...); err != nil {
			return fmt.Errorf("count enrollments: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return toModels(rows), total, nil
}

// Export returns up to limit enrollments matching filter, ignoring pagination.
func (r *EnrollmentRepository) Export(ctx context.Context, filter models.EnrollmentFilter, limit int) ([]models.Enrollment, error) {
	where, args := enrollmentWhere(filter)
	query := fmt.Sprintf("%s %s %s %s LIMIT %d", enrollmentSelect, enrollmentFrom, where, enrollmentOrder(filter), limit)
	var rows []enrollmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("export enrollments: %w", err)
	}
	return toModels(rows), nil
}

func toModels(rows []enrollmentRow) []models.Enrollment {
	out := make([]models.Enrollment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

// FindByID fetches an enrollment by ID. sql.ErrNoRows is returned unwrapped.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("%s %s WHERE e.id = $1", enrollmentSelect, enrollmentFrom)
	var row enrollmentRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	enrollment := row.toModel()
	return &enrollment, nil
}

// FindDuplicates reports whether cedula or email already belong to another enrollment.
// Nil values are not checked.
func (r *EnrollmentRepository) FindDuplicates(ctx context.Context, cedula, email *string, excludeID string) (models.DuplicateMatch, error) {
	var match models.DuplicateMatch
	var ors []string
	var args []interface{}
	if cedula != nil {
		args = append(args, *cedula)
		ors = append(ors, fmt.Sprintf("cedula = $%d", len(args)))
	}
	if email != nil {
		args = append(args, *email)
		ors = append(ors, fmt.Sprintf("email = $%d", len(args)))
	}
	if len(ors) == 0 {
		return match, nil
	}
	query := fmt.Sprintf("SELECT cedula, email FROM enrollments WHERE (%s)", strings.Join(ors, " OR "))
	if excludeID != "" {
		args = append(args, excludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query += " LIMIT 2"

	var rows []struct {
		Cedula *string `db:"cedula"`
		Email  *string `db:"email"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return match, fmt.Errorf("find duplicate enrollments: %w", err)
	}
	for _, row := range rows {
		if cedula != nil && row.Cedula != nil && *row.Cedula == *cedula {
			match.Cedula = true
		}
		if email != nil && row.Email != nil && *row.Email == *email {
			match.Email = true
		}
	}
	return match, nil
}

// Create inserts an enrollment. Constraint violations are returned wrapped so
// UniqueViolation and ForeignKeyViolation can inspect them.
func (r *EnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, full_name, birth_date, gender, marital_status, cedula, department, municipality, community, address, phone, email, academic_level,
        emergency_name, emergency_relationship, emergency_phone, emergency_address, career_id, user_id,
        id_front_url, id_back_url, birth_certificate_url, diploma_url, grades_certificate_url, signature_url, printed, created_at, updated_at)
        VALUES (:id, :full_name, :birth_date, :gender, :marital_status, :cedula, :department, :municipality, :community, :address, :phone, :email, :academic_level,
        :emergency_name, :emergency_relationship, :emergency_phone, :emergency_address, :career_id, :user_id,
        :id_front_url, :id_back_url, :birth_certificate_url, :diploma_url, :grades_certificate_url, :signature_url, :printed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollmentParams(e)); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of an enrollment. The recording user and
// the printed flag are not touched.
func (r *EnrollmentRepository) Update(ctx context.Context, e *models.Enrollment) error {
	e.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET full_name = :full_name, birth_date = :birth_date, gender = :gender, marital_status = :marital_status, cedula = :cedula,
        department = :department, municipality = :municipality, community = :community, address = :address, phone = :phone, email = :email, academic_level = :academic_level,
        emergency_name = :emergency_name, emergency_relationship = :emergency_relationship, emergency_phone = :emergency_phone, emergency_address = :emergency_address,
        career_id = :career_id, id_front_url = :id_front_url, id_back_url = :id_back_url, birth_certificate_url = :birth_certificate_url, diploma_url = :diploma_url,
        grades_certificate_url = :grades_certificate_url, signature_url = :signature_url, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, enrollmentParams(e))
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return expectAffected(res)
}

// Delete removes an enrollment row.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return expectAffected(res)
}

// SetPrinted updates the printed flag.
func (r *EnrollmentRepository) SetPrinted(ctx context.Context, id string, printed bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE enrollments SET printed = $2, updated_at = $3 WHERE id = $1`, id, printed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set printed: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
