package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByNameOrEmail(ctx context.Context, name, email, excludeID string) (bool, bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = dto.NewValidator()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return users, pagination, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new user.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actorID string, client models.ClientInfo) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	if err := s.ensureUnique(ctx, req.Name, req.Email, ""); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        strings.ToLower(req.Email),
		Role:         req.Role,
		PasswordHash: string(passwordHash),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, s.classify(err, "failed to create user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "name": user.Name, "email": user.Email, "role": user.Role})
	s.audit(ctx, actorID, models.AuditActionUserCreate, user.ID, nil, newPayload, client)
	return user, nil
}

// Update modifies the user attributes. An empty password keeps the current one.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actorID string, client models.ClientInfo) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, req.Name, req.Email, id); err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin && req.Role != models.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": user.Name, "email": user.Email, "role": user.Role})

	user.Name = req.Name
	user.Email = strings.ToLower(req.Email)
	user.Role = req.Role
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.classify(err, "failed to update user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"name": user.Name, "email": user.Email, "role": user.Role, "password_changed": req.Password != ""})
	s.audit(ctx, actorID, models.AuditActionUserUpdate, user.ID, oldPayload, newPayload, client)
	return user, nil
}

// UpdateProfile lets a user change their own name and email.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req dto.ProfileRequest, client models.ClientInfo) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, req.Name, req.Email, userID); err != nil {
		return nil, err
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": user.Name, "email": user.Email})
	user.Name = req.Name
	user.Email = strings.ToLower(req.Email)
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.classify(err, "failed to update profile")
	}
	newPayload, _ := json.Marshal(map[string]interface{}{"name": user.Name, "email": user.Email})
	s.audit(ctx, userID, models.AuditActionUserUpdate, userID, oldPayload, newPayload, client)
	return user, nil
}

// Delete removes a user. Enrollments they recorded keep existing without a recorder.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, client models.ClientInfo) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrConflict, "you cannot delete your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.classify(err, "failed to delete user")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": user.Name, "email": user.Email, "role": user.Role})
	s.audit(ctx, actorID, models.AuditActionUserDelete, user.ID, oldPayload, nil, client)
	return nil
}

func (s *UserService) ensureUnique(ctx context.Context, name, email, excludeID string) error {
	nameTaken, emailTaken, err := s.repo.ExistsByNameOrEmail(ctx, name, email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check user uniqueness")
	}
	if nameTaken {
		return appErrors.Clone(appErrors.ErrDuplicate, "this user name is already taken")
	}
	if emailTaken {
		return appErrors.Clone(appErrors.ErrDuplicate, "this email is already registered")
	}
	return nil
}

func (s *UserService) ensureAnotherAdmin(ctx context.Context) error {
	admins, err := s.repo.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count administrators")
	}
	if admins <= 1 {
		return appErrors.Clone(appErrors.ErrConflict, "at least one administrator must remain")
	}
	return nil
}

func (s *UserService) classify(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if constraint, ok := repository.UniqueViolation(err); ok {
		if constraint == repository.ConstraintUserName {
			return appErrors.Clone(appErrors.ErrDuplicate, "this user name is already taken")
		}
		return appErrors.Clone(appErrors.ErrDuplicate, "this email is already registered")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *UserService) audit(ctx context.Context, actorID, action, resourceID string, oldValues, newValues []byte, client models.ClientInfo) {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actor,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}
