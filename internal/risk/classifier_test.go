package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/balcaopos/balcao-backend/internal/audit/details"
	"github.com/balcaopos/balcao-backend/pkg/enums"
)

func businessHours() Context {
	return Context{LocalTime: time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)}
}

func hasTag(tags []enums.RiskTag, want enums.RiskTag) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

func TestHighDiscountBoundary(t *testing.T) {
	cases := []struct {
		name     string
		discount string
		want     bool
	}{
		{"well under", "10.00", false},
		{"exactly 15 percent", "15.00", false},
		{"just over", "15.01", true},
		{"far over", "40.00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sale := &details.Sale{
				Subtotal: decimal.NewFromInt(100),
				Discount: decimal.RequireFromString(tc.discount),
			}
			tags := Classify(enums.AuditActionSaleCreate, sale, nil, businessHours())
			if got := hasTag(tags, enums.RiskTagHighDiscount); got != tc.want {
				t.Fatalf("discount %s: expected high_discount=%v, got %v", tc.discount, tc.want, tags)
			}
		})
	}
}

func TestHighDiscountIgnoresZeroSubtotal(t *testing.T) {
	sale := &details.Sale{Subtotal: decimal.Zero, Discount: decimal.NewFromInt(5)}
	if tags := Classify(enums.AuditActionSaleCreate, sale, nil, businessHours()); len(tags) != 0 {
		t.Fatalf("zero subtotal must not flag, got %v", tags)
	}
}

func TestOffHours(t *testing.T) {
	cases := []struct {
		hour int
		want bool
	}{
		{5, true}, {6, false}, {14, false}, {22, false}, {23, true}, {2, true},
	}
	for _, tc := range cases {
		ctx := Context{LocalTime: time.Date(2026, 8, 28, tc.hour, 30, 0, 0, time.UTC)}
		tags := Classify(enums.AuditActionSaleReturn, &details.SaleReturn{}, nil, ctx)
		if got := hasTag(tags, enums.RiskTagOffHours); got != tc.want {
			t.Fatalf("hour %d: expected off_hours=%v, got %v", tc.hour, tc.want, tags)
		}
	}
}

func TestOffHoursOnlyAppliesToSales(t *testing.T) {
	ctx := Context{LocalTime: time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC)}
	tags := Classify(enums.AuditActionUpdateProduct, &details.ProductUpdate{}, nil, ctx)
	if hasTag(tags, enums.RiskTagOffHours) {
		t.Fatalf("product update at night must not flag off_hours, got %v", tags)
	}
}

func TestManyReturnsCountsPriorWindow(t *testing.T) {
	for prior, want := range map[int]bool{0: false, 1: false, 2: true, 7: true} {
		ctx := businessHours()
		ctx.PriorReturns = prior
		tags := Classify(enums.AuditActionSaleReturn, &details.SaleReturn{}, nil, ctx)
		if got := hasTag(tags, enums.RiskTagManyReturns); got != want {
			t.Fatalf("prior=%d: expected many_returns=%v, got %v", prior, want, tags)
		}
	}
}

func TestBulkDeleteFloor(t *testing.T) {
	for _, action := range []enums.AuditAction{enums.AuditActionDeleteProduct, enums.AuditActionUserDelete} {
		for batch, want := range map[int]bool{1: false, 4: false, 5: true, 12: true} {
			ctx := businessHours()
			ctx.BatchSize = batch
			tags := Classify(action, nil, nil, ctx)
			if got := hasTag(tags, enums.RiskTagBulkDelete); got != want {
				t.Fatalf("%s batch=%d: expected bulk_delete=%v, got %v", action, batch, want, tags)
			}
		}
	}
}

func TestPriceDropBoundary(t *testing.T) {
	prior := &details.ProductSnapshot{Price: decimal.NewFromInt(100)}
	cases := []struct {
		name  string
		price string
		want  bool
	}{
		{"small cut", "90.00", false},
		{"exactly 30 percent", "70.00", false},
		{"just past", "69.99", true},
		{"floor", "0.00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price := decimal.RequireFromString(tc.price)
			update := &details.ProductUpdate{Price: &price}
			tags := Classify(enums.AuditActionUpdateProduct, update, prior, businessHours())
			if got := hasTag(tags, enums.RiskTagPriceDrop); got != tc.want {
				t.Fatalf("price %s: expected price_drop=%v, got %v", tc.price, tc.want, tags)
			}
		})
	}
}

func TestPriceDropNeedsSnapshotAndPrice(t *testing.T) {
	price := decimal.NewFromInt(1)
	update := &details.ProductUpdate{Price: &price}
	if tags := Classify(enums.AuditActionUpdateProduct, update, nil, businessHours()); len(tags) != 0 {
		t.Fatalf("missing snapshot must not flag, got %v", tags)
	}

	prior := &details.ProductSnapshot{Price: decimal.NewFromInt(100)}
	if tags := Classify(enums.AuditActionUpdateProduct, &details.ProductUpdate{}, prior, businessHours()); len(tags) != 0 {
		t.Fatalf("update without price change must not flag, got %v", tags)
	}
}

func TestRulesAreAdditive(t *testing.T) {
	ctx := Context{
		LocalTime:    time.Date(2026, 8, 28, 23, 15, 0, 0, time.UTC),
		PriorReturns: 3,
	}
	tags := Classify(enums.AuditActionSaleReturn, &details.SaleReturn{}, nil, ctx)
	if !hasTag(tags, enums.RiskTagOffHours) || !hasTag(tags, enums.RiskTagManyReturns) {
		t.Fatalf("expected both off_hours and many_returns, got %v", tags)
	}
}
