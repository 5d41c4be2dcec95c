package users

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/internal/audit"
	"github.com/balcaopos/balcao-backend/internal/audit/details"
	"github.com/balcaopos/balcao-backend/pkg/config"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/pagination"
	"github.com/balcaopos/balcao-backend/pkg/security"
	"github.com/balcaopos/balcao-backend/pkg/types"
)

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*models.User{}}
}

func (f *fakeUserRepo) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) List(_ context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, *user)
	}
	return out, nil
}

func (f *fakeUserRepo) Save(_ context.Context, user *models.User) error {
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.users, id)
	return nil
}

type fakeAuditor struct {
	records []audit.RecordInput
}

func (f *fakeAuditor) WithTx(_ *gorm.DB) audit.Service { return f }

func (f *fakeAuditor) Record(_ context.Context, input audit.RecordInput) (*models.AuditEntry, error) {
	f.records = append(f.records, input)
	return &models.AuditEntry{ID: int64(len(f.records))}, nil
}

func (f *fakeAuditor) Query(_ context.Context, _ audit.Filter) ([]models.AuditEntry, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeAuditor) ExportCSV(_ context.Context, _ audit.Filter, _ io.Writer) (int, error) {
	return 0, nil
}

func newTestService(t *testing.T) (*service, *fakeUserRepo, *fakeAuditor) {
	t.Helper()
	repo := newFakeUserRepo()
	auditor := &fakeAuditor{}
	svc, err := NewService(fakeTx{}, repo, auditor, testPasswordConfig(), time.UTC)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time { return time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC) }
	return impl, repo, auditor
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func admin() types.Actor {
	return types.Actor{
		ID:          uuid.New(),
		Role:        enums.UserRoleAdmin,
		SourceAddr:  "10.0.0.7",
		ClientAgent: "balcao-web/2.1",
	}
}

func TestCreateHashesPasswordAndAudits(t *testing.T) {
	svc, repo, auditor := newTestService(t)

	user, err := svc.Create(context.Background(), admin(), CreateUserInput{
		Email:    "  Maria@Loja.COM ",
		Name:     "Maria",
		Password: "correct horse",
		Role:     enums.UserRoleClerk,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "maria@loja.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Fatalf("password stored in the clear")
	}
	ok, err := security.VerifyPassword("correct horse", user.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}
	if _, err := repo.FindByID(context.Background(), user.ID); err != nil {
		t.Fatalf("persisted lookup: %v", err)
	}

	if len(auditor.records) != 1 {
		t.Fatalf("want 1 audit entry, got %d", len(auditor.records))
	}
	entry := auditor.records[0]
	if entry.Action != enums.AuditActionUserCreate {
		t.Fatalf("unexpected action %q", entry.Action)
	}
	detail, ok := entry.Detail.(*details.UserCreate)
	if !ok {
		t.Fatalf("unexpected detail type %T", entry.Detail)
	}
	if detail.Email != "maria@loja.com" || detail.Role != enums.UserRoleClerk {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if entry.Provenance.SourceAddr != "10.0.0.7" {
		t.Fatalf("provenance not captured: %+v", entry.Provenance)
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	input := CreateUserInput{Email: "joao@loja.com", Name: "Joao", Password: "long enough", Role: enums.UserRoleManager}
	if _, err := svc.Create(context.Background(), admin(), input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	input.Name = "Other Joao"
	_, err := svc.Create(context.Background(), admin(), input)
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, auditor := newTestService(t)

	cases := []struct {
		name  string
		input CreateUserInput
	}{
		{"missing email", CreateUserInput{Name: "x", Password: "long enough", Role: enums.UserRoleClerk}},
		{"short password", CreateUserInput{Email: "a@b.com", Name: "x", Password: "short", Role: enums.UserRoleClerk}},
		{"unknown role", CreateUserInput{Email: "a@b.com", Name: "x", Password: "long enough", Role: enums.UserRole("owner")}},
	}
	for _, tc := range cases {
		_, err := svc.Create(context.Background(), admin(), tc.input)
		if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: want validation error, got %v", tc.name, err)
		}
	}
	if len(auditor.records) != 0 {
		t.Fatalf("rejected creates must not be audited, got %d entries", len(auditor.records))
	}
}

func TestBatchDeleteFlagsBulk(t *testing.T) {
	svc, repo, auditor := newTestService(t)

	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		user := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@loja.com", Name: "Staff", Role: enums.UserRoleClerk, IsActive: true}
		if err := repo.Create(context.Background(), user); err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, user.ID)
	}

	deleted, err := svc.Delete(context.Background(), admin(), ids)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("want 5 deleted, got %d", deleted)
	}
	if len(auditor.records) != 5 {
		t.Fatalf("want one audit entry per user, got %d", len(auditor.records))
	}
	for _, entry := range auditor.records {
		if entry.Action != enums.AuditActionUserDelete {
			t.Fatalf("unexpected action %q", entry.Action)
		}
		if len(entry.RiskTags) != 1 || entry.RiskTags[0] != enums.RiskTagBulkDelete {
			t.Fatalf("want bulk_delete tag, got %v", entry.RiskTags)
		}
	}
}

func TestSingleDeleteIsNotBulk(t *testing.T) {
	svc, repo, auditor := newTestService(t)

	user := &models.User{ID: uuid.New(), Email: "one@loja.com", Name: "One", Role: enums.UserRoleClerk, IsActive: true}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Delete(context.Background(), admin(), []uuid.UUID{user.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(auditor.records) != 1 || len(auditor.records[0].RiskTags) != 0 {
		t.Fatalf("single delete should carry no tags: %+v", auditor.records)
	}
}

func TestDeleteRejectsSelf(t *testing.T) {
	svc, repo, _ := newTestService(t)

	actor := admin()
	if err := repo.Create(context.Background(), &models.User{ID: actor.ID, Email: "me@loja.com", Name: "Me", Role: enums.UserRoleAdmin, IsActive: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := svc.Delete(context.Background(), actor, []uuid.UUID{actor.ID})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("want validation error, got %v", err)
	}
	if user, _ := repo.FindByID(context.Background(), actor.ID); user == nil {
		t.Fatalf("self-delete must not remove the account")
	}
}

func TestAuthenticateStampsLogin(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.Create(context.Background(), admin(), CreateUserInput{
		Email:    "clerk@loja.com",
		Name:     "Clerk",
		Password: "opensesame",
		Role:     enums.UserRoleClerk,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "CLERK@loja.com", "opensesame")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("wrong account returned")
	}
	stored, _ := repo.FindByID(context.Background(), created.ID)
	if stored.LastLoginAt == nil {
		t.Fatalf("login time not stamped")
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.Create(context.Background(), admin(), CreateUserInput{
		Email:    "clerk@loja.com",
		Name:     "Clerk",
		Password: "opensesame",
		Role:     enums.UserRoleClerk,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Authenticate(context.Background(), "clerk@loja.com", "wrong")
	if pkgerrors.As(err).Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("wrong password: want unauthorized, got %v", err)
	}
	_, err = svc.Authenticate(context.Background(), "nobody@loja.com", "opensesame")
	if pkgerrors.As(err).Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("missing account: want unauthorized, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), created.ID)
	stored.IsActive = false
	if err := repo.Save(context.Background(), stored); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = svc.Authenticate(context.Background(), "clerk@loja.com", "opensesame")
	if pkgerrors.As(err).Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("inactive account: want unauthorized, got %v", err)
	}
}
