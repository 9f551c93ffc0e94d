package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listErr   error
	auditLogs []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByNameOrEmail(ctx context.Context, name, email, excludeID string) (bool, bool, error) {
	var nameTaken, emailTaken bool
	for id, u := range m.users {
		if id == excludeID {
			continue
		}
		if u.Name == name {
			nameTaken = true
		}
		if strings.EqualFold(u.Email, email) {
			emailTaken = true
		}
	}
	return nameTaken, emailTaken, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	total := 0
	for _, u := range m.users {
		if u.Role == role {
			total++
		}
	}
	return total, nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newUserFixture() (*UserService, *mockUserRepo) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Name: "secretaria", Email: "secretaria@ctp.edu.ni", Role: models.RoleAdmin},
		"user-1":  {ID: "user-1", Name: "digitador", Email: "digitador@ctp.edu.ni", Role: models.RoleStandard},
	}}
	return NewUserService(repo, nil, zap.NewNop()), repo
}

func TestUserServiceCreate(t *testing.T) {
	svc, repo := newUserFixture()

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Name:     "recepcion",
		Email:    "Recepcion@CTP.edu.ni",
		Password: "s3cretpass",
		Role:     models.RoleStandard,
	}, "admin-1", models.ClientInfo{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "recepcion@ctp.edu.ni", user.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cretpass")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestUserServiceCreateRejectsWhitespaceName(t *testing.T) {
	svc, _ := newUserFixture()

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Name:     "mesa de ayuda",
		Email:    "ayuda@ctp.edu.ni",
		Password: "s3cretpass",
		Role:     models.RoleStandard,
	}, "admin-1", models.ClientInfo{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateDuplicates(t *testing.T) {
	svc, _ := newUserFixture()

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Name: "digitador", Email: "nuevo@ctp.edu.ni", Password: "s3cretpass", Role: models.RoleStandard,
	}, "admin-1", models.ClientInfo{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "user name")

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{
		Name: "nuevo", Email: "DIGITADOR@ctp.edu.ni", Password: "s3cretpass", Role: models.RoleStandard,
	}, "admin-1", models.ClientInfo{})
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "email")
}

func TestUserServiceUpdateKeepsPasswordWhenBlank(t *testing.T) {
	svc, repo := newUserFixture()
	repo.users["user-1"].PasswordHash = "existing-hash"

	user, err := svc.Update(context.Background(), "user-1", dto.UpdateUserRequest{
		Name: "digitador2", Email: "digitador@ctp.edu.ni", Role: models.RoleStandard,
	}, "admin-1", models.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, "digitador2", user.Name)
	assert.Equal(t, "existing-hash", repo.users["user-1"].PasswordHash)
}

func TestUserServiceLastAdminIsProtected(t *testing.T) {
	svc, _ := newUserFixture()

	_, err := svc.Update(context.Background(), "admin-1", dto.UpdateUserRequest{
		Name: "secretaria", Email: "secretaria@ctp.edu.ni", Role: models.RoleStandard,
	}, "user-1", models.ClientInfo{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "admin-1", "user-1", models.ClientInfo{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDelete(t *testing.T) {
	svc, repo := newUserFixture()

	err := svc.Delete(context.Background(), "admin-1", "admin-1", models.ClientInfo{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "user-1", "admin-1", models.ClientInfo{}))
	_, ok := repo.users["user-1"]
	assert.False(t, ok)

	err = svc.Delete(context.Background(), "user-1", "admin-1", models.ClientInfo{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateProfile(t *testing.T) {
	svc, _ := newUserFixture()

	user, err := svc.UpdateProfile(context.Background(), "user-1", dto.ProfileRequest{Name: "digitador", Email: "NEW@ctp.edu.ni"}, models.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, "new@ctp.edu.ni", user.Email)

	_, err = svc.UpdateProfile(context.Background(), "user-1", dto.ProfileRequest{Name: "secretaria", Email: "x@ctp.edu.ni"}, models.ClientInfo{})
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestUserServiceList(t *testing.T) {
	svc, _ := newUserFixture()
	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, 20, pagination.PageSize)
}
