package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/uinakrani/royalsuppliers-sub002/models"
)

func testReconciler(store *fakeOrderStore) *ReconciliationEngine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &ReconciliationEngine{Orders: store, Logger: logger}
}

func TestReconcileSupplierOrdersSweepsOrphans(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "1000")
	order.Payments = []models.PaymentRecord{
		{ID: 1, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(300), LedgerEntryId: 10},
		{ID: 2, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(200), LedgerEntryId: 11},
		{ID: 3, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(100)},
	}
	order.RecomputeStatuses()
	store := newFakeOrderStore(order)
	engine := testReconciler(store)

	// Entry 11 no longer exists; 10 is still live.
	result, err := engine.ReconcileSupplierOrders(context.Background(), "U Kyaw", map[int]bool{10: true})
	if err != nil {
		t.Fatal(err)
	}

	if result.Removed != 1 || result.Changed != 1 {
		t.Fatalf("Removed/Changed = %d/%d, want 1/1", result.Removed, result.Changed)
	}
	if got := len(order.Payments); got != 2 {
		t.Fatalf("order has %d payments, want 2", got)
	}
	for _, p := range order.Payments {
		if p.ID == 2 {
			t.Fatal("orphaned payment survived the sweep")
		}
	}
	// The manual payment (no ledger reference) is never touched.
	if order.Payments[1].ID != 3 {
		t.Fatalf("manual payment missing after sweep: %+v", order.Payments)
	}
	if paid := order.PaidOnSide(models.PaymentSideExpense); !paid.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("paid after sweep = %s, want 400", paid)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "1000")
	order.Payments = []models.PaymentRecord{
		{ID: 1, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(300), LedgerEntryId: 10},
		{ID: 2, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(200), LedgerEntryId: 11},
	}
	store := newFakeOrderStore(order)
	engine := testReconciler(store)
	validIds := map[int]bool{10: true}

	first, err := engine.ReconcileSupplierOrders(context.Background(), "U Kyaw", validIds)
	if err != nil {
		t.Fatal(err)
	}
	if first.Removed != 1 {
		t.Fatalf("first run removed %d, want 1", first.Removed)
	}

	second, err := engine.ReconcileSupplierOrders(context.Background(), "U Kyaw", validIds)
	if err != nil {
		t.Fatal(err)
	}
	if second.Removed != 0 || second.Changed != 0 {
		t.Fatalf("second run Removed/Changed = %d/%d, want 0/0", second.Removed, second.Changed)
	}
}

func TestReconcilePartyOrdersIgnoresExpenseSide(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "1000")
	order.Payments = []models.PaymentRecord{
		{ID: 1, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(300), LedgerEntryId: 50},
		{ID: 2, Side: models.PaymentSideCustomer, Amount: decimal.NewFromInt(200), LedgerEntryId: 50},
	}
	store := newFakeOrderStore(order)
	engine := testReconciler(store)

	// Neither id is valid on the revenue side, but only the customer payment
	// is in scope for a party sweep.
	result, err := engine.ReconcilePartyOrders(context.Background(), "Daw Mya", map[int]bool{})
	if err != nil {
		t.Fatal(err)
	}

	if result.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", result.Removed)
	}
	if got := len(order.Payments); got != 1 {
		t.Fatalf("order has %d payments, want 1", got)
	}
	if order.Payments[0].Side != models.PaymentSideExpense {
		t.Fatal("expense-side payment removed by party sweep")
	}
}

func TestRemovePaymentsByLedgerEntryIdSweepsBothSides(t *testing.T) {
	first := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "1000")
	first.Payments = []models.PaymentRecord{
		{ID: 1, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(300), LedgerEntryId: 7},
		{ID: 2, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(100), LedgerEntryId: 8},
	}
	second := supplierOrder(2, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), "1000")
	second.Payments = []models.PaymentRecord{
		{ID: 3, Side: models.PaymentSideCustomer, Amount: decimal.NewFromInt(500), LedgerEntryId: 7},
	}
	store := newFakeOrderStore(first, second)
	engine := testReconciler(store)

	result, err := engine.RemovePaymentsByLedgerEntryId(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}

	if result.Removed != 2 || result.Changed != 2 {
		t.Fatalf("Removed/Changed = %d/%d, want 2/2", result.Removed, result.Changed)
	}
	if len(first.Payments) != 1 || first.Payments[0].LedgerEntryId != 8 {
		t.Fatalf("first order payments after sweep: %+v", first.Payments)
	}
	if len(second.Payments) != 0 {
		t.Fatalf("second order payments after sweep: %+v", second.Payments)
	}

	// Sweeping the same id again finds nothing.
	again, err := engine.RemovePaymentsByLedgerEntryId(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if again.Removed != 0 {
		t.Fatalf("second sweep removed %d, want 0", again.Removed)
	}
}

func TestReconcileContinuesPastFailedRemoval(t *testing.T) {
	bad := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "1000")
	bad.Payments = []models.PaymentRecord{
		{ID: 1, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(300), LedgerEntryId: 99},
	}
	good := supplierOrder(2, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), "1000")
	good.Payments = []models.PaymentRecord{
		{ID: 2, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(200), LedgerEntryId: 99},
	}
	store := newFakeOrderStore(bad, good)
	store.failOrderIds[1] = true
	engine := testReconciler(store)

	result, err := engine.ReconcileSupplierOrders(context.Background(), "U Kyaw", map[int]bool{})
	if err != nil {
		t.Fatal(err)
	}

	if result.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", result.Failed)
	}
	if result.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", result.Removed)
	}
	if len(good.Payments) != 0 {
		t.Fatal("healthy order still carries the orphaned payment")
	}
}
