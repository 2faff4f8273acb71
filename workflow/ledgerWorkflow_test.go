package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uinakrani/royalsuppliers-sub002/models"
)

type fakeLock struct {
	released bool
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.released = true
	return nil
}

func testLedgerWorkflow(store *fakeOrderStore) (*LedgerWorkflow, *fakeLock) {
	lock := &fakeLock{}
	w := &LedgerWorkflow{
		Distribution:   testEngine(store),
		Reconciliation: testReconciler(store),
		obtainLock: func(ctx context.Context, lockType string, name string) (lockReleaser, error) {
			return lock, nil
		},
	}
	return w, lock
}

func supplierEntry(id int, amount string) *models.LedgerEntry {
	return &models.LedgerEntry{
		ID:           id,
		Direction:    models.LedgerDirectionDebit,
		Amount:       decimal.RequireFromString(amount),
		SupplierName: "U Kyaw",
	}
}

func TestLedgerEntryCreatedDistributesUnderLock(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "800")
	store := newFakeOrderStore(order)
	w, lock := testLedgerWorkflow(store)

	w.HandleLedgerEntryCreated(context.Background(), supplierEntry(7, "500"))

	if paid := order.PaidOnSide(models.PaymentSideExpense); !paid.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("paid = %s, want 500", paid)
	}
	if !lock.released {
		t.Fatal("counterparty lock was not released")
	}
}

func TestLedgerEntryCreatedSkipsWhenLockHeld(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "800")
	store := newFakeOrderStore(order)
	w, _ := testLedgerWorkflow(store)
	w.obtainLock = func(ctx context.Context, lockType string, name string) (lockReleaser, error) {
		return nil, errors.New("not obtained")
	}

	w.HandleLedgerEntryCreated(context.Background(), supplierEntry(7, "500"))

	// A concurrent run owns the counterparty; allocating anyway would let
	// both runs read the same amounts-due.
	if got := len(order.Payments); got != 0 {
		t.Fatalf("order received %d payments while the lock was held, want 0", got)
	}
}

func TestLedgerEntryUpdatedMovesAllocations(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "800")
	order.Payments = []models.PaymentRecord{
		{ID: 50, OrderId: 1, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(300), LedgerEntryId: 7},
	}
	order.RecomputeStatuses()
	store := newFakeOrderStore(order)
	w, _ := testLedgerWorkflow(store)

	// Entry amount drops from 300 to 200; stale allocation is pulled out
	// first, then redistributed at the new amount.
	w.HandleLedgerEntryUpdated(context.Background(), supplierEntry(7, "200"))

	if paid := order.PaidOnSide(models.PaymentSideExpense); !paid.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("paid = %s, want 200", paid)
	}
	if got := len(order.Payments); got != 1 {
		t.Fatalf("order has %d payments, want 1", got)
	}
	if order.Payments[0].LedgerEntryId != 7 {
		t.Fatalf("payment ledger ref = %d, want 7", order.Payments[0].LedgerEntryId)
	}
}

func TestReconcileSupplierReportsBusyWhenLockHeld(t *testing.T) {
	store := newFakeOrderStore()
	w, _ := testLedgerWorkflow(store)
	w.supplierLedgerIds = func(ctx context.Context, supplier string) (map[int]bool, error) {
		return map[int]bool{}, nil
	}
	w.obtainLock = func(ctx context.Context, lockType string, name string) (lockReleaser, error) {
		return nil, errors.New("not obtained")
	}

	_, err := w.ReconcileSupplier(context.Background(), "U Kyaw")
	if !errors.Is(err, ErrCounterpartyBusy) {
		t.Fatalf("err = %v, want ErrCounterpartyBusy", err)
	}
}

func TestReconcileSupplierSweepsUnderLock(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "800")
	order.Payments = []models.PaymentRecord{
		{ID: 9, OrderId: 1, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(100), LedgerEntryId: 99},
	}
	order.RecomputeStatuses()
	store := newFakeOrderStore(order)
	w, lock := testLedgerWorkflow(store)
	w.supplierLedgerIds = func(ctx context.Context, supplier string) (map[int]bool, error) {
		return map[int]bool{}, nil
	}

	result, err := w.ReconcileSupplier(context.Background(), "U Kyaw")
	if err != nil {
		t.Fatal(err)
	}
	if result.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", result.Removed)
	}
	if got := len(order.Payments); got != 0 {
		t.Fatalf("order still has %d payments, want 0", got)
	}
	if !lock.released {
		t.Fatal("counterparty lock was not released")
	}
}
