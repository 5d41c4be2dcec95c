package inventory

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/internal/audit"
	"github.com/balcaopos/balcao-backend/internal/reconcile"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/pagination"
	"github.com/balcaopos/balcao-backend/pkg/types"
)

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepo struct {
	items   []models.InventoryItem
	saveErr error
}

func (f *fakeRepo) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeRepo) List(_ context.Context, _ int, _ *pagination.Cursor) ([]models.InventoryItem, *pagination.Cursor, error) {
	out := make([]models.InventoryItem, len(f.items))
	copy(out, f.items)
	return out, nil, nil
}

func (f *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindBySKU(_ context.Context, sku string) (*models.InventoryItem, error) {
	for i := range f.items {
		if f.items[i].SKU == sku {
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) Create(_ context.Context, item *models.InventoryItem) error {
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeRepo) Save(_ context.Context, item *models.InventoryItem) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	for i := range f.items {
		if f.items[i].ID == item.ID {
			f.items[i] = *item
			return nil
		}
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
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

type fakeTracker struct {
	limit    int
	reserved int
	released int
}

func (f *fakeTracker) Reserve(_ context.Context, _ uuid.UUID, _ enums.UserRole, _ time.Time) error {
	if f.limit > 0 && f.reserved-f.released >= f.limit {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "daily limit reached")
	}
	f.reserved++
	return nil
}

func (f *fakeTracker) Release(_ context.Context, _ uuid.UUID, _ enums.UserRole, _ time.Time) error {
	f.released++
	return nil
}

func (f *fakeTracker) Remaining(_ context.Context, _ uuid.UUID, _ enums.UserRole, _ time.Time) (int, error) {
	return f.limit - (f.reserved - f.released), nil
}

type fakeEngine struct {
	summary  *reconcile.Summary
	err      error
	gotRows  []reconcile.ImportRow
	gotMode  enums.ImportMode
	runCount int
}

func (f *fakeEngine) Run(_ context.Context, rows []reconcile.ImportRow, mode enums.ImportMode) (*reconcile.Summary, error) {
	f.runCount++
	f.gotRows = rows
	f.gotMode = mode
	return f.summary, f.err
}

type deps struct {
	repo    *fakeRepo
	auditor *fakeAuditor
	tracker *fakeTracker
	engine  *fakeEngine
}

func newTestService(t *testing.T, d deps) Service {
	t.Helper()
	if d.repo == nil {
		d.repo = &fakeRepo{}
	}
	if d.auditor == nil {
		d.auditor = &fakeAuditor{}
	}
	if d.tracker == nil {
		d.tracker = &fakeTracker{}
	}
	if d.engine == nil {
		d.engine = &fakeEngine{summary: &reconcile.Summary{}}
	}
	svc, err := NewService(fakeTx{}, d.repo, d.engine, d.auditor, d.tracker, time.UTC, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func clerk() types.Actor {
	return types.Actor{ID: uuid.New(), Role: enums.UserRoleClerk, SourceAddr: "10.0.0.4", ClientAgent: "pos/1.0"}
}

func seedItem(repo *fakeRepo, price int64, quantity int) uuid.UUID {
	item := models.InventoryItem{
		ID:       uuid.New(),
		Name:     "Rice",
		SKU:      "RICE-01",
		Price:    decimal.NewFromInt(price),
		Quantity: quantity,
		Unit:     enums.UnitKg,
	}
	repo.items = append(repo.items, item)
	return item.ID
}

func TestListRejectsMalformedCursorKey(t *testing.T) {
	svc := newTestService(t, deps{})

	_, _, err := svc.List(context.Background(), 10, &pagination.Cursor{CreatedAt: time.Now(), Key: "not-a-uuid"})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad cursor key, got %v", err)
	}
}

func TestUpdateCapturesPriorAndFlagsPriceDrop(t *testing.T) {
	repo := &fakeRepo{}
	auditor := &fakeAuditor{}
	id := seedItem(repo, 100, 10)
	svc := newTestService(t, deps{repo: repo, auditor: auditor})

	newPrice := decimal.NewFromInt(60)
	item, tags, err := svc.Update(context.Background(), clerk(), id, UpdateItemInput{Price: &newPrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !item.Price.Equal(newPrice) {
		t.Fatalf("price not applied: %s", item.Price)
	}

	found := false
	for _, tag := range tags {
		if tag == enums.RiskTagPriceDrop {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected price_drop tag, got %v", tags)
	}

	if len(auditor.records) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(auditor.records))
	}
	record := auditor.records[0]
	if record.Action != enums.AuditActionUpdateProduct || record.Prior == nil {
		t.Fatalf("audit entry missing prior snapshot: %+v", record)
	}
	if record.Provenance.SourceAddr != "10.0.0.4" {
		t.Fatalf("provenance dropped: %+v", record.Provenance)
	}
}

// An actor with a ceiling of 5 performs exactly 5 updates; the 6th is
// rejected and leaves no trace: no audit entry and no item change.
func TestSixthMutationIsRejectedWithoutSideEffect(t *testing.T) {
	repo := &fakeRepo{}
	auditor := &fakeAuditor{}
	tracker := &fakeTracker{limit: 5}
	id := seedItem(repo, 100, 0)
	svc := newTestService(t, deps{repo: repo, auditor: auditor, tracker: tracker})
	actor := clerk()

	for i := 1; i <= 5; i++ {
		quantity := i * 10
		if _, _, err := svc.Update(context.Background(), actor, id, UpdateItemInput{Quantity: &quantity}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	quantity := 999
	_, _, err := svc.Update(context.Background(), actor, id, UpdateItemInput{Quantity: &quantity})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("expected quota rejection, got %v", err)
	}

	if len(auditor.records) != 5 {
		t.Fatalf("rejected mutation must not be audited, got %d entries", len(auditor.records))
	}
	item, _ := repo.FindByID(context.Background(), id)
	if item.Quantity != 50 {
		t.Fatalf("rejected mutation must not change state, quantity %d", item.Quantity)
	}
}

func TestUpdateNoOpReturnsSlotAndSkipsAudit(t *testing.T) {
	repo := &fakeRepo{}
	auditor := &fakeAuditor{}
	tracker := &fakeTracker{limit: 5}
	id := seedItem(repo, 100, 10)
	svc := newTestService(t, deps{repo: repo, auditor: auditor, tracker: tracker})

	samePrice := decimal.NewFromInt(100)
	_, tags, err := svc.Update(context.Background(), clerk(), id, UpdateItemInput{Price: &samePrice})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if tags != nil || len(auditor.records) != 0 {
		t.Fatalf("no-op update must not audit, got %d entries", len(auditor.records))
	}
	if tracker.released != 1 {
		t.Fatalf("no-op update must hand the slot back, released=%d", tracker.released)
	}
}

func TestFailedUpdateReleasesQuota(t *testing.T) {
	repo := &fakeRepo{saveErr: errors.New("disk full")}
	tracker := &fakeTracker{limit: 5}
	id := seedItem(repo, 100, 10)
	svc := newTestService(t, deps{repo: repo, tracker: tracker})

	quantity := 20
	if _, _, err := svc.Update(context.Background(), clerk(), id, UpdateItemInput{Quantity: &quantity}); err == nil {
		t.Fatalf("expected storage failure")
	}
	if tracker.released != 1 {
		t.Fatalf("failed mutation must release its slot, released=%d", tracker.released)
	}
}

func TestBatchDeleteFlagsBulkAndSkipsQuota(t *testing.T) {
	repo := &fakeRepo{}
	auditor := &fakeAuditor{}
	tracker := &fakeTracker{limit: 5}
	svc := newTestService(t, deps{repo: repo, auditor: auditor, tracker: tracker})

	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, seedItem(repo, 10, 1))
	}

	deleted, err := svc.Delete(context.Background(), clerk(), ids)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 5 || len(repo.items) != 0 {
		t.Fatalf("expected 5 deletions, got %d (%d left)", deleted, len(repo.items))
	}
	if tracker.reserved != 0 {
		t.Fatalf("deletions must not consume quota, reserved=%d", tracker.reserved)
	}

	if len(auditor.records) != 5 {
		t.Fatalf("expected one audit entry per item, got %d", len(auditor.records))
	}
	for _, record := range auditor.records {
		flagged := false
		for _, tag := range record.RiskTags {
			if tag == enums.RiskTagBulkDelete {
				flagged = true
			}
		}
		if !flagged {
			t.Fatalf("batch of 5 must flag bulk_delete, got %v", record.RiskTags)
		}
	}
}

func TestSingleDeleteIsNotBulk(t *testing.T) {
	repo := &fakeRepo{}
	auditor := &fakeAuditor{}
	id := seedItem(repo, 10, 1)
	svc := newTestService(t, deps{repo: repo, auditor: auditor})

	if _, err := svc.Delete(context.Background(), clerk(), []uuid.UUID{id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(auditor.records[0].RiskTags) != 0 {
		t.Fatalf("single delete must carry no tags, got %v", auditor.records[0].RiskTags)
	}
}

func TestImportWritesOneEntryForTheBatch(t *testing.T) {
	auditor := &fakeAuditor{}
	tracker := &fakeTracker{limit: 5}
	engine := &fakeEngine{summary: &reconcile.Summary{
		Mode: enums.ImportModeMerge, Added: 2, Updated: 1,
	}}
	svc := newTestService(t, deps{auditor: auditor, tracker: tracker, engine: engine})

	rows := []reconcile.ImportRow{{Name: "Rice"}, {Name: "Oil"}, {Name: "Salt"}}
	summary, err := svc.Import(context.Background(), clerk(), rows, enums.ImportModeMerge)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Added != 2 || summary.Updated != 1 {
		t.Fatalf("summary not relayed: %+v", summary)
	}
	if engine.runCount != 1 || engine.gotMode != enums.ImportModeMerge || len(engine.gotRows) != 3 {
		t.Fatalf("engine not driven as expected: runs=%d mode=%s rows=%d", engine.runCount, engine.gotMode, len(engine.gotRows))
	}

	if len(auditor.records) != 1 {
		t.Fatalf("a batch must produce exactly one audit entry, got %d", len(auditor.records))
	}
	if auditor.records[0].Action != enums.AuditActionProductImport {
		t.Fatalf("unexpected action %s", auditor.records[0].Action)
	}
	if tracker.reserved != 1 {
		t.Fatalf("import must consume one quota slot, reserved=%d", tracker.reserved)
	}
}

func TestImportFailureReleasesQuota(t *testing.T) {
	tracker := &fakeTracker{limit: 5}
	engine := &fakeEngine{err: errors.New("boom")}
	svc := newTestService(t, deps{tracker: tracker, engine: engine})

	_, err := svc.Import(context.Background(), clerk(), []reconcile.ImportRow{{Name: "x"}}, enums.ImportModeReset)
	if err == nil {
		t.Fatalf("expected engine failure")
	}
	if tracker.released != 1 {
		t.Fatalf("failed import must release its slot, released=%d", tracker.released)
	}
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	repo := &fakeRepo{}
	seedItem(repo, 10, 1)
	svc := newTestService(t, deps{repo: repo})

	sku := "RICE-01"
	_, err := svc.Create(context.Background(), clerk(), CreateItemInput{Name: "Other", SKU: &sku})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}
