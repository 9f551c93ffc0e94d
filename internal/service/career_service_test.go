package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type mockCareerRepo struct {
	careers   map[string]models.Career
	createErr error
	deleteErr error
}

func (m *mockCareerRepo) List(ctx context.Context, filter models.CareerFilter) ([]models.Career, error) {
	var out []models.Career
	for _, c := range m.careers {
		if filter.Active != nil && c.Active != *filter.Active {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCareerRepo) FindByID(ctx context.Context, id string) (*models.Career, error) {
	if c, ok := m.careers[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCareerRepo) Create(ctx context.Context, career *models.Career) error {
	if m.createErr != nil {
		return m.createErr
	}
	career.ID = "career-new"
	m.careers[career.ID] = *career
	return nil
}

func (m *mockCareerRepo) Update(ctx context.Context, career *models.Career) error {
	m.careers[career.ID] = *career
	return nil
}

func (m *mockCareerRepo) SetActive(ctx context.Context, id string, active bool) error {
	c, ok := m.careers[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Active = active
	m.careers[id] = c
	return nil
}

func (m *mockCareerRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.careers, id)
	return nil
}

func newCareerFixture() (*CareerService, *mockCareerRepo) {
	repo := &mockCareerRepo{careers: map[string]models.Career{
		"c1": {ID: "c1", Name: "Informática", Shift: models.ShiftDay, Active: true},
		"c2": {ID: "c2", Name: "Contabilidad", Shift: models.ShiftSaturday, Active: false},
	}}
	return NewCareerService(repo, nil, nil, nil), repo
}

func TestCareerServiceListActive(t *testing.T) {
	svc, _ := newCareerFixture()
	careers, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, careers, 1)
	assert.Equal(t, "Informática", careers[0].Name)
}

func TestCareerServiceCreate(t *testing.T) {
	svc, repo := newCareerFixture()

	career, err := svc.Create(context.Background(), dto.CareerRequest{Name: " Electricidad ", Shift: models.ShiftSunday})
	require.NoError(t, err)
	assert.Equal(t, "Electricidad", career.Name)
	assert.True(t, career.Active)

	_, err = svc.Create(context.Background(), dto.CareerRequest{Name: "Soldadura", Shift: "night"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	repo.createErr = &pq.Error{Code: "23505", Constraint: "careers_name_key"}
	_, err = svc.Create(context.Background(), dto.CareerRequest{Name: "Informática", Shift: models.ShiftDay})
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestCareerServiceSetActive(t *testing.T) {
	svc, _ := newCareerFixture()
	active := true
	career, err := svc.SetActive(context.Background(), "c2", dto.CareerActiveRequest{Active: &active})
	require.NoError(t, err)
	assert.True(t, career.Active)

	_, err = svc.SetActive(context.Background(), "missing", dto.CareerActiveRequest{Active: &active})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCareerServiceDeleteReferenced(t *testing.T) {
	svc, repo := newCareerFixture()
	repo.deleteErr = &pq.Error{Code: "23503", Constraint: "enrollments_career_id_fkey"}

	err := svc.Delete(context.Background(), "c1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "career has enrollments", appErr.Message)
}
