package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	"github.com/noah-isme/ctp-enrollment-api/internal/repository"
	"github.com/noah-isme/ctp-enrollment-api/pkg/assets"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	createErr   error
	updateErr   error
	deleted     []string
	seq         int
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{enrollments: make(map[string]models.Enrollment)}
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		e.Assets = e.Assets.Clone()
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDuplicates(ctx context.Context, cedula, email *string, excludeID string) (models.DuplicateMatch, error) {
	var match models.DuplicateMatch
	for id, e := range m.enrollments {
		if id == excludeID {
			continue
		}
		if cedula != nil && e.Cedula != nil && *e.Cedula == *cedula {
			match.Cedula = true
		}
		if email != nil && e.Email != nil && *e.Email == *email {
			match.Email = true
		}
	}
	return match, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	if enrollment.ID == "" {
		enrollment.ID = "enr-" + string(rune('0'+m.seq))
	}
	stored := *enrollment
	stored.Assets = enrollment.Assets.Clone()
	m.enrollments[enrollment.ID] = stored
	return nil
}

func (m *mockEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.enrollments[enrollment.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *enrollment
	stored.Assets = enrollment.Assets.Clone()
	m.enrollments[enrollment.ID] = stored
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.enrollments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEnrollmentRepo) SetPrinted(ctx context.Context, id string, printed bool) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Printed = printed
	m.enrollments[id] = e
	return nil
}

type mockCareerFinder struct {
	careers map[string]models.Career
}

func (m *mockCareerFinder) FindByName(ctx context.Context, name string) (*models.Career, error) {
	if c, ok := m.careers[name]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type recordingNotifier struct {
	created []models.Enrollment
}

func (r *recordingNotifier) EnrollmentCreated(ctx context.Context, enrollment models.Enrollment) {
	r.created = append(r.created, enrollment)
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) InvalidateStats(ctx context.Context) {
	c.calls++
}

type enrollmentFixture struct {
	svc      *EnrollmentService
	repo     *mockEnrollmentRepo
	store    *assets.MemoryStore
	uploader *assets.Uploader
	notifier *recordingNotifier
	stats    *countingInvalidator
}

func newEnrollmentFixture() *enrollmentFixture {
	repo := newMockEnrollmentRepo()
	store := assets.NewMemoryStore()
	uploader := assets.NewUploader(store, assets.UploaderConfig{})
	notifier := &recordingNotifier{}
	stats := &countingInvalidator{}
	careers := &mockCareerFinder{careers: map[string]models.Career{
		"Informática": {ID: "career-1", Name: "Informática", Shift: models.ShiftDay, Active: true},
	}}
	svc := NewEnrollmentService(EnrollmentServiceParams{
		Repo:     repo,
		Careers:  careers,
		Uploader: uploader,
		Notifier: notifier,
		Stats:    stats,
		Metrics:  NewMetricsService(),
		Logger:   zap.NewNop(),
	})
	return &enrollmentFixture{svc: svc, repo: repo, store: store, uploader: uploader, notifier: notifier, stats: stats}
}

func imageURI(content string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func validEnrollmentRequest() dto.EnrollmentRequest {
	return dto.EnrollmentRequest{
		FullName:              "Ana López",
		BirthDate:             "2008-03-01",
		Gender:                models.GenderFemale,
		MaritalStatus:         "single",
		Cedula:                "001-010308-0001a",
		Department:            "Managua",
		Municipality:          "Tipitapa",
		Community:             "Las Maderas",
		Address:               "Km 25 carretera norte",
		Phone:                 "88888888",
		Email:                 "Ana@Example.com",
		AcademicLevel:         "Bachiller",
		EmergencyName:         "María López",
		EmergencyRelationship: "Madre",
		EmergencyPhone:        "87777777",
		EmergencyAddress:      "Km 25 carretera norte",
		Career:                "Informática",
	}
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

func TestEnrollmentServiceCreatePublicStoresAssets(t *testing.T) {
	f := newEnrollmentFixture()
	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{
		models.AssetIDFront:   imageURI("front"),
		models.AssetSignature: imageURI("signature"),
	}

	enrollment, err := f.svc.Create(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Nil(t, enrollment.UserID)
	assert.Equal(t, "career-1", enrollment.CareerID)
	assert.Equal(t, "001-010308-0001A", *enrollment.Cedula)
	assert.Equal(t, "ana@example.com", *enrollment.Email)

	for _, kind := range []models.AssetKind{models.AssetIDFront, models.AssetSignature} {
		url := enrollment.Assets.URL(kind)
		require.NotEmpty(t, url)
		assert.True(t, f.store.Has(f.uploader.HandleFromURL(url)), "stored URL must resolve")
	}
	assert.Empty(t, enrollment.Assets.URL(models.AssetDiploma))
	assert.Len(t, f.store.Keys(), 2)
	require.Len(t, f.notifier.created, 1)
	assert.Equal(t, 1, f.stats.calls)
}

func TestEnrollmentServiceCreateRecordsActor(t *testing.T) {
	f := newEnrollmentFixture()

	enrollment, err := f.svc.Create(context.Background(), &models.Actor{UserID: "user-1", Role: models.RoleStandard}, validEnrollmentRequest())
	require.NoError(t, err)
	require.NotNil(t, enrollment.UserID)
	assert.Equal(t, "user-1", *enrollment.UserID)
}

func TestEnrollmentServiceCreateBlankOptionalFieldsAreAbsent(t *testing.T) {
	f := newEnrollmentFixture()
	first := validEnrollmentRequest()
	first.Cedula = "  "
	first.Email = ""
	second := validEnrollmentRequest()
	second.Cedula = ""
	second.Email = ""

	a, err := f.svc.Create(context.Background(), nil, first)
	require.NoError(t, err)
	assert.Nil(t, a.Cedula)
	assert.Nil(t, a.Email)

	_, err = f.svc.Create(context.Background(), nil, second)
	require.NoError(t, err, "empty cedula and email must not collide")
}

func TestEnrollmentServiceCreateDuplicateSkipsUploads(t *testing.T) {
	f := newEnrollmentFixture()
	_, err := f.svc.Create(context.Background(), nil, validEnrollmentRequest())
	require.NoError(t, err)

	req := validEnrollmentRequest()
	req.Email = "other@example.com"
	req.Assets = map[models.AssetKind]string{models.AssetIDFront: imageURI("front")}
	_, err = f.svc.Create(context.Background(), nil, req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErr.Code)
	assert.Equal(t, msgDuplicateCedula, appErr.Message)
	assert.Empty(t, f.store.Keys())
	assert.Empty(t, f.store.Deleted())
}

func TestEnrollmentServiceCreateDuplicateEmail(t *testing.T) {
	f := newEnrollmentFixture()
	_, err := f.svc.Create(context.Background(), nil, validEnrollmentRequest())
	require.NoError(t, err)

	req := validEnrollmentRequest()
	req.Cedula = ""
	req.Email = "ANA@example.com"
	_, err = f.svc.Create(context.Background(), nil, req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErr.Code)
	assert.Equal(t, msgDuplicateEmail, appErr.Message)
}

func TestEnrollmentServiceCreateInsertFailureCompensates(t *testing.T) {
	f := newEnrollmentFixture()
	f.repo.createErr = errors.New("connection reset by peer")
	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{
		models.AssetIDFront:          imageURI("front"),
		models.AssetIDBack:           imageURI("back"),
		models.AssetBirthCertificate: imageURI("birth"),
	}

	_, err := f.svc.Create(context.Background(), nil, req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.NotContains(t, appErr.Message, "connection reset")

	assert.Empty(t, f.store.Keys(), "no uploaded object may survive a failed insert")
	assert.Len(t, f.store.Deleted(), 3)
	assert.Empty(t, f.notifier.created)
	assert.Zero(t, f.stats.calls)
}

func TestEnrollmentServiceCreateInsertUniqueViolationMapsToDuplicate(t *testing.T) {
	f := newEnrollmentFixture()
	f.repo.createErr = &pq.Error{Code: "23505", Constraint: repository.ConstraintEnrollmentEmail}
	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{models.AssetDiploma: imageURI("diploma")}

	_, err := f.svc.Create(context.Background(), nil, req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErr.Code)
	assert.Equal(t, msgDuplicateEmail, appErr.Message)
	assert.Empty(t, f.store.Keys())
	assert.Len(t, f.store.Deleted(), 1)
}

func TestEnrollmentServiceCreateForeignKeyViolationMapsToReference(t *testing.T) {
	f := newEnrollmentFixture()
	f.repo.createErr = &pq.Error{Code: "23503", Constraint: "enrollments_career_id_fkey"}

	_, err := f.svc.Create(context.Background(), nil, validEnrollmentRequest())
	assert.Equal(t, appErrors.ErrReference.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCreateUploadFailureCompensatesSiblings(t *testing.T) {
	f := newEnrollmentFixture()
	var calls int32
	f.store.PutHook = func(key string) error {
		if atomic.AddInt32(&calls, 1) == 2 {
			return errors.New("bucket unavailable")
		}
		return nil
	}
	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{
		models.AssetIDFront:   imageURI("front"),
		models.AssetIDBack:    imageURI("back"),
		models.AssetSignature: imageURI("signature"),
	}

	_, err := f.svc.Create(context.Background(), nil, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAssetUpload.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.store.Keys())
	assert.Len(t, f.store.Deleted(), int(atomic.LoadInt32(&calls))-1)
	assert.Empty(t, f.repo.enrollments)
}

func TestEnrollmentServiceCreateUnknownCareer(t *testing.T) {
	f := newEnrollmentFixture()
	req := validEnrollmentRequest()
	req.Career = "Robótica"
	req.Assets = map[models.AssetKind]string{models.AssetIDFront: imageURI("front")}

	_, err := f.svc.Create(context.Background(), nil, req)
	assert.Equal(t, appErrors.ErrReference.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.store.Keys())
}

func TestEnrollmentServiceCreateValidation(t *testing.T) {
	f := newEnrollmentFixture()

	req := validEnrollmentRequest()
	req.Gender = "X"
	_, err := f.svc.Create(context.Background(), nil, req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{"passport": imageURI("p")}
	_, err = f.svc.Create(context.Background(), nil, req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{models.AssetIDFront: "https://elsewhere.example.com/id.png"}
	_, err = f.svc.Create(context.Background(), nil, req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.enrollments)
}

func TestEnrollmentServiceCreateRejectsInvalidImageBeforeUpload(t *testing.T) {
	svg := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte("<svg><script>alert(1)</script></svg>"))
	for name, bad := range map[string]string{
		"bad base64": "data:image/png;base64,!!!not-base64!!!",
		"svg":        svg,
	} {
		t.Run(name, func(t *testing.T) {
			f := newEnrollmentFixture()
			req := validEnrollmentRequest()
			req.Assets = map[models.AssetKind]string{
				models.AssetIDFront:   imageURI("front"),
				models.AssetSignature: bad,
			}

			_, err := f.svc.Create(context.Background(), nil, req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Equal(t, http.StatusBadRequest, appErr.Status)
			assert.Contains(t, appErr.Message, "signature")
			assert.Empty(t, f.store.Keys())
			assert.Empty(t, f.store.Deleted())
			assert.Empty(t, f.repo.enrollments)
		})
	}
}

func TestEnrollmentServiceUpdateRejectsInvalidImageBeforeUpload(t *testing.T) {
	f := newEnrollmentFixture()
	created, oldHandle := createWithFront(t, f)

	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{
		models.AssetIDBack:  imageURI("back"),
		models.AssetDiploma: "data:image/png;base64,%%%",
	}
	_, err := f.svc.Update(context.Background(), nil, created.ID, req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.store.Keys(), 2)
	assert.Empty(t, f.store.Deleted())
	assert.True(t, f.store.Has(oldHandle))
}

func TestEnrollmentServiceCreateKeepsStoredURL(t *testing.T) {
	f := newEnrollmentFixture()
	first, _ := createWithFront(t, f)
	storedURL := first.Assets.URL(models.AssetIDFront)

	req := validEnrollmentRequest()
	req.Cedula = ""
	req.Email = ""
	req.Assets = map[models.AssetKind]string{models.AssetIDFront: storedURL}
	second, err := f.svc.Create(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, storedURL, second.Assets.URL(models.AssetIDFront))
	assert.Len(t, f.store.Keys(), 2)
}

func TestEnrollmentServiceCreateResubmissionReturnsExisting(t *testing.T) {
	f := newEnrollmentFixture()
	req := validEnrollmentRequest()
	req.ID = uuid.NewString()
	req.Assets = map[models.AssetKind]string{models.AssetIDFront: imageURI("front")}

	first, err := f.svc.Create(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, req.ID, first.ID)

	again, err := f.svc.Create(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.repo.enrollments, 1)
	assert.Len(t, f.store.Keys(), 1, "a resubmission uploads nothing")
	assert.Len(t, f.notifier.created, 1)

	other := validEnrollmentRequest()
	other.ID = req.ID
	other.FullName = "Beto Ruiz"
	other.Cedula = ""
	other.Email = ""
	_, err = f.svc.Create(context.Background(), nil, other)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	bad := validEnrollmentRequest()
	bad.ID = "not-a-uuid"
	_, err = f.svc.Create(context.Background(), nil, bad)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func createWithFront(t *testing.T, f *enrollmentFixture) (*models.Enrollment, string) {
	t.Helper()
	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{
		models.AssetIDFront:   imageURI("old-front"),
		models.AssetSignature: imageURI("signature"),
	}
	enrollment, err := f.svc.Create(context.Background(), nil, req)
	require.NoError(t, err)
	return enrollment, f.uploader.HandleFromURL(enrollment.Assets.URL(models.AssetIDFront))
}

func TestEnrollmentServiceUpdateReplacesAssetAfterCommit(t *testing.T) {
	f := newEnrollmentFixture()
	created, oldHandle := createWithFront(t, f)

	req := validEnrollmentRequest()
	req.FullName = "Ana María López"
	req.Assets = map[models.AssetKind]string{
		models.AssetIDFront:   imageURI("new-front"),
		models.AssetSignature: created.Assets.URL(models.AssetSignature),
	}
	updated, err := f.svc.Update(context.Background(), &models.Actor{UserID: "admin-1", Role: models.RoleAdmin}, created.ID, req)
	require.NoError(t, err)

	newHandle := f.uploader.HandleFromURL(updated.Assets.URL(models.AssetIDFront))
	assert.NotEqual(t, oldHandle, newHandle)
	assert.False(t, f.store.Has(oldHandle), "replaced object must be deleted")
	assert.True(t, f.store.Has(newHandle))
	assert.Equal(t, created.Assets.URL(models.AssetSignature), updated.Assets.URL(models.AssetSignature))
	assert.Equal(t, []string{oldHandle}, f.store.Deleted())

	stored := f.repo.enrollments[created.ID]
	assert.Equal(t, "Ana María López", stored.FullName)
	assert.Nil(t, stored.UserID, "update keeps the recording user")
}

func TestEnrollmentServiceUpdateFailureKeepsOldAsset(t *testing.T) {
	f := newEnrollmentFixture()
	created, oldHandle := createWithFront(t, f)
	f.repo.updateErr = errors.New("deadlock detected")

	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{models.AssetIDFront: imageURI("new-front")}
	_, err := f.svc.Update(context.Background(), nil, created.ID, req)
	require.Error(t, err)

	assert.True(t, f.store.Has(oldHandle), "old object must survive a failed update")
	deleted := f.store.Deleted()
	require.Len(t, deleted, 1)
	assert.NotEqual(t, oldHandle, deleted[0])
	assert.False(t, f.store.Has(deleted[0]), "new upload must be compensated")
	assert.Len(t, f.store.Keys(), 2)
}

func TestEnrollmentServiceUpdateClearsAsset(t *testing.T) {
	f := newEnrollmentFixture()
	created, oldHandle := createWithFront(t, f)

	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{models.AssetIDFront: ""}
	updated, err := f.svc.Update(context.Background(), nil, created.ID, req)
	require.NoError(t, err)
	assert.Empty(t, updated.Assets.URL(models.AssetIDFront))
	assert.NotEmpty(t, updated.Assets.URL(models.AssetSignature), "kinds missing from the request are kept")
	assert.False(t, f.store.Has(oldHandle))
}

func TestEnrollmentServiceUpdateRejectsForeignURL(t *testing.T) {
	f := newEnrollmentFixture()
	created, oldHandle := createWithFront(t, f)

	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{models.AssetIDFront: "https://elsewhere.example.com/id.png"}
	_, err := f.svc.Update(context.Background(), nil, created.ID, req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.True(t, f.store.Has(oldHandle))
}

func TestEnrollmentServiceUpdateDuplicateExcludesSelf(t *testing.T) {
	f := newEnrollmentFixture()
	created, _ := createWithFront(t, f)

	other := validEnrollmentRequest()
	other.Cedula = "002"
	other.Email = "other@example.com"
	second, err := f.svc.Create(context.Background(), nil, other)
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), nil, created.ID, validEnrollmentRequest())
	require.NoError(t, err, "an enrollment does not collide with itself")

	collide := validEnrollmentRequest()
	_, err = f.svc.Update(context.Background(), nil, second.ID, collide)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdateNotFound(t *testing.T) {
	f := newEnrollmentFixture()
	_, err := f.svc.Update(context.Background(), nil, "missing", validEnrollmentRequest())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDeleteRemovesAssetsThenRow(t *testing.T) {
	f := newEnrollmentFixture()
	created, _ := createWithFront(t, f)

	require.NoError(t, f.svc.Delete(context.Background(), created.ID))
	assert.Empty(t, f.store.Keys())
	assert.Len(t, f.store.Deleted(), 2)
	assert.Equal(t, []string{created.ID}, f.repo.deleted)

	err := f.svc.Delete(context.Background(), created.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDeleteToleratesStoreFailure(t *testing.T) {
	f := newEnrollmentFixture()
	created, _ := createWithFront(t, f)
	f.store.DeleteHook = func(keys []string) error { return errors.New("bucket unavailable") }

	require.NoError(t, f.svc.Delete(context.Background(), created.ID))
	assert.Empty(t, f.repo.enrollments)
}

func TestEnrollmentServiceMarkPrinted(t *testing.T) {
	f := newEnrollmentFixture()
	created, _ := createWithFront(t, f)

	require.NoError(t, f.svc.MarkPrinted(context.Background(), created.ID, true))
	assert.True(t, f.repo.enrollments[created.ID].Printed)

	err := f.svc.MarkPrinted(context.Background(), "missing", true)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListPagination(t *testing.T) {
	f := newEnrollmentFixture()
	_, pagination, err := f.svc.List(context.Background(), models.EnrollmentFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestDuplicateHandlesAreCompensatedOnce(t *testing.T) {
	f := newEnrollmentFixture()
	f.repo.createErr = errors.New("boom")
	req := validEnrollmentRequest()
	req.Assets = map[models.AssetKind]string{
		models.AssetIDFront: imageURI("a"),
		models.AssetIDBack:  imageURI("b"),
	}
	_, err := f.svc.Create(context.Background(), nil, req)
	require.Error(t, err)

	deleted := sortedCopy(f.store.Deleted())
	require.Len(t, deleted, 2)
	assert.NotEqual(t, deleted[0], deleted[1])
}
