package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
)

func TestCareerRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCareerRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "shift", "active", "created_at", "updated_at", "enrollment_count"}).
		AddRow("c1", "Contabilidad", "saturday", true, now, now, 3).
		AddRow("c2", "Informática", "day", true, now, now, 0)
	mock.ExpectQuery(`FROM careers c LEFT JOIN enrollments e ON e\.career_id = c\.id\s+WHERE 1=1 AND c\.active = \$1 GROUP BY c\.id ORDER BY c\.name ASC`).
		WithArgs(true).
		WillReturnRows(rows)

	active := true
	careers, err := repo.List(context.Background(), models.CareerFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, careers, 2)
	assert.Equal(t, models.ShiftSaturday, careers[0].Shift)
	assert.Equal(t, 3, careers[0].EnrollmentCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCareerRepositoryFindByNameMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCareerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, shift, active, created_at, updated_at FROM careers WHERE name = $1")).
		WithArgs("Robótica").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByName(context.Background(), "Robótica")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCareerRepositoryDeleteReferenced(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCareerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM careers WHERE id = $1")).
		WithArgs("c1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "enrollments_career_id_fkey"})

	err := repo.Delete(context.Background(), "c1")
	constraint, ok := ForeignKeyViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "enrollments_career_id_fkey", constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCareerRepositorySetActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCareerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE careers SET active = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("c1", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), "c1", false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
