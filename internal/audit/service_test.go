package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/balcaopos/balcao-backend/internal/audit/details"
	"github.com/balcaopos/balcao-backend/pkg/db/models"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/pagination"
)

type fakeRepo struct {
	created []*models.AuditEntry

	lastParams listEntriesParams
	pages      [][]models.AuditEntry
	cursors    []*pagination.Cursor
	calls      int
}

func (f *fakeRepo) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(_ context.Context, entry *models.AuditEntry) error {
	entry.ID = int64(len(f.created) + 1)
	f.created = append(f.created, entry)
	return nil
}

func (f *fakeRepo) List(_ context.Context, params listEntriesParams) ([]models.AuditEntry, *pagination.Cursor, error) {
	f.lastParams = params
	if f.calls >= len(f.pages) {
		return nil, nil, nil
	}
	page := f.pages[f.calls]
	var cursor *pagination.Cursor
	if f.calls < len(f.cursors) {
		cursor = f.cursors[f.calls]
	}
	f.calls++
	return page, cursor, nil
}

func newTestService(t *testing.T, repo *fakeRepo, loc *time.Location) *service {
	t.Helper()
	svc, err := NewService(repo, loc, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service)
}

func TestRecordWritesTypedDetailAndTags(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, time.UTC)
	actorID := uuid.New()

	entry, err := svc.Record(context.Background(), RecordInput{
		ActorID:    &actorID,
		Action:     enums.AuditActionSaleCreate,
		EntityType: "sale",
		EntityID:   uuid.NewString(),
		Detail: &details.Sale{
			Subtotal: decimal.NewFromInt(100),
			Discount: decimal.NewFromInt(20),
		},
		Provenance: Provenance{SourceAddr: "10.0.0.9", ClientAgent: "pos-terminal/2.1"},
		RiskTags:   []enums.RiskTag{enums.RiskTagHighDiscount},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.ID != 1 {
		t.Fatalf("expected persisted id, got %d", entry.ID)
	}

	var decoded details.Sale
	if err := json.Unmarshal(entry.Detail, &decoded); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if !decoded.Discount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("detail round trip lost discount: %s", decoded.Discount)
	}
	if len(entry.RiskTags) != 1 || entry.RiskTags[0] != "high_discount" {
		t.Fatalf("unexpected risk tags: %v", entry.RiskTags)
	}
	if entry.SourceAddr != "10.0.0.9" || entry.ClientAgent != "pos-terminal/2.1" {
		t.Fatalf("provenance dropped: %+v", entry)
	}
	if entry.PriorSnapshot != nil {
		t.Fatalf("expected no snapshot, got %s", entry.PriorSnapshot)
	}
}

func TestRecordCapturesPriorSnapshot(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, time.UTC)

	entry, err := svc.Record(context.Background(), RecordInput{
		Action:     enums.AuditActionUpdateProduct,
		EntityType: "inventory_item",
		EntityID:   uuid.NewString(),
		Detail:     &details.ProductUpdate{Fields: []string{"price"}},
		Prior:      &details.ProductSnapshot{Name: "Rice", Price: decimal.NewFromInt(8)},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	var prior details.ProductSnapshot
	if err := json.Unmarshal(entry.PriorSnapshot, &prior); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if prior.Name != "Rice" || !prior.Price.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("snapshot round trip lost state: %+v", prior)
	}
	if entry.ActorID != nil {
		t.Fatalf("system action must carry no actor")
	}
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, time.UTC)

	_, err := svc.Record(context.Background(), RecordInput{Action: "NOT_AN_ACTION", EntityType: "x"})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Record(context.Background(), RecordInput{Action: enums.AuditActionSaleCreate})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing entity type, got %v", err)
	}
}

func TestQueryExpandsInclusiveDates(t *testing.T) {
	repo := &fakeRepo{}
	loc := time.FixedZone("BRT", -3*3600)
	svc := newTestService(t, repo, loc)

	from := time.Date(2026, 8, 1, 15, 30, 0, 0, time.UTC)
	to := time.Date(2026, 8, 3, 2, 0, 0, 0, time.UTC)
	if _, _, err := svc.Query(context.Background(), Filter{From: &from, To: &to}); err != nil {
		t.Fatalf("query: %v", err)
	}

	wantFrom := time.Date(2026, 8, 1, 0, 0, 0, 0, loc)
	// 02:00 UTC on the 3rd is still Aug 2 locally, so the exclusive upper
	// bound is local midnight of Aug 3.
	wantTo := time.Date(2026, 8, 3, 0, 0, 0, 0, loc)
	if !repo.lastParams.From.Equal(wantFrom) {
		t.Fatalf("expected from %v, got %v", wantFrom, repo.lastParams.From)
	}
	if !repo.lastParams.To.Equal(wantTo) {
		t.Fatalf("expected to %v, got %v", wantTo, repo.lastParams.To)
	}
	if repo.lastParams.Timezone != "BRT" {
		t.Fatalf("expected timezone to flow through, got %q", repo.lastParams.Timezone)
	}
}

func TestQueryValidatesHourRange(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, time.UTC)
	six, two := 6, 2

	_, _, err := svc.Query(context.Background(), Filter{HourFrom: &six})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("half-open hour range must fail, got %v", err)
	}

	_, _, err = svc.Query(context.Background(), Filter{HourFrom: &six, HourTo: &two})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("inverted hour range must fail, got %v", err)
	}
}

func TestQueryRejectsMalformedCursorKey(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, time.UTC)

	_, _, err := svc.Query(context.Background(), Filter{
		Cursor: &pagination.Cursor{CreatedAt: time.Now(), Key: "not-a-sequence-id"},
	})
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad cursor key, got %v", err)
	}
}

func TestExportCSVPagesThroughResults(t *testing.T) {
	actorID := uuid.New()
	first := models.AuditEntry{
		ID:          2,
		ActorID:     &actorID,
		Action:      enums.AuditActionProductImport,
		EntityType:  "inventory",
		EntityID:    "batch",
		Detail:      json.RawMessage(`{"mode":"merge"}`),
		SourceAddr:  "10.0.0.1",
		ClientAgent: "importer/1.0",
		RiskTags:    []string{"bulk_delete", "off_hours"},
		CreatedAt:   time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}
	second := models.AuditEntry{
		ID:         1,
		Action:     enums.AuditActionSaleCreate,
		EntityType: "sale",
		EntityID:   "s1",
		Detail:     json.RawMessage(`{"total":"10"}`),
		CreatedAt:  time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC),
	}
	repo := &fakeRepo{
		pages:   [][]models.AuditEntry{{first}, {second}},
		cursors: []*pagination.Cursor{{CreatedAt: first.CreatedAt, Key: "2"}, nil},
	}
	svc := newTestService(t, repo, time.UTC)

	var buf bytes.Buffer
	written, err := svc.ExportCSV(context.Background(), Filter{}, &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if written != 2 {
		t.Fatalf("expected 2 rows, got %d", written)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,timestamp,actor") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], actorID.String()) || !strings.Contains(lines[1], "bulk_delete;off_hours") {
		t.Fatalf("first row missing fields: %s", lines[1])
	}
	if !strings.Contains(lines[2], "SALE_CREATE") {
		t.Fatalf("second row missing action: %s", lines[2])
	}
}
