package workflow

import (
	"context"

	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/models"
)

// lockReleaser is what withLock holds for the duration of a run. Satisfied by
// *redislock.Lock; tests substitute their own.
type lockReleaser interface {
	Release(ctx context.Context) error
}

// LedgerWorkflow reacts to ledger mutations: a tagged entry fans out across
// the counterparty's open orders, and edits or deletions pull stale
// allocations back out. Failures here are logged only; the ledger write that
// triggered the run has already committed and must stay visible.
type LedgerWorkflow struct {
	Distribution   *DistributionEngine
	Reconciliation *ReconciliationEngine

	obtainLock        func(ctx context.Context, lockType string, name string) (lockReleaser, error)
	supplierLedgerIds func(ctx context.Context, supplier string) (map[int]bool, error)
	partyLedgerIds    func(ctx context.Context, party string) (map[int]bool, error)
}

func NewLedgerWorkflow() *LedgerWorkflow {
	return &LedgerWorkflow{
		Distribution:      NewDistributionEngine(),
		Reconciliation:    NewReconciliationEngine(),
		obtainLock:        obtainCounterpartyLock,
		supplierLedgerIds: models.ValidLedgerEntryIDsForSupplier,
		partyLedgerIds:    models.ValidLedgerEntryIDsForParty,
	}
}

func obtainCounterpartyLock(ctx context.Context, lockType string, name string) (lockReleaser, error) {
	lock, err := ObtainCounterpartyLock(ctx, lockType, name)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// HandleLedgerEntryCreated fans a tagged entry out to the counterparty's
// orders. Untagged entries stay ledger-only.
func (w *LedgerWorkflow) HandleLedgerEntryCreated(ctx context.Context, entry *models.LedgerEntry) {
	if entry.SupplierName == "" && entry.PartyName == "" {
		return
	}
	w.withEntryLocks(ctx, entry, func() {
		w.distributeForEntry(ctx, entry)
	})
}

// HandleLedgerEntryUpdated drops the entry's previous allocations everywhere,
// then redistributes under the current tags. Retagging an entry from one
// supplier to another therefore moves its payments in one pass. Both phases
// run under the current tags' locks.
func (w *LedgerWorkflow) HandleLedgerEntryUpdated(ctx context.Context, entry *models.LedgerEntry) {
	logger := config.GetLogger()

	w.withEntryLocks(ctx, entry, func() {
		if _, err := w.Reconciliation.RemovePaymentsByLedgerEntryId(ctx, entry.ID); err != nil {
			config.LogError(logger, "workflow", "HandleLedgerEntryUpdated", "Failed to remove stale allocations", entry.ID, err)
			return
		}
		w.distributeForEntry(ctx, entry)
	})
}

func (w *LedgerWorkflow) HandleLedgerEntryDeleted(ctx context.Context, entry *models.LedgerEntry) {
	logger := config.GetLogger()

	if _, err := w.Reconciliation.RemovePaymentsByLedgerEntryId(ctx, entry.ID); err != nil {
		config.LogError(logger, "workflow", "HandleLedgerEntryDeleted", "Failed to sweep deleted entry payments", entry.ID, err)
	}
}

// ReconcileSupplier refreshes the valid-id set from the ledger and sweeps the
// supplier's orders against it.
func (w *LedgerWorkflow) ReconcileSupplier(ctx context.Context, supplier string) (*ReconcileResult, error) {
	validIds, err := w.supplierLedgerIds(ctx, supplier)
	if err != nil {
		return nil, err
	}

	var result *ReconcileResult
	var sweepErr error
	w.withLock(ctx, lockTypeSupplier, supplier, func() {
		result, sweepErr = w.Reconciliation.ReconcileSupplierOrders(ctx, supplier, validIds)
	})
	if result == nil && sweepErr == nil {
		sweepErr = ErrCounterpartyBusy
	}
	return result, sweepErr
}

func (w *LedgerWorkflow) ReconcileParty(ctx context.Context, party string) (*ReconcileResult, error) {
	validIds, err := w.partyLedgerIds(ctx, party)
	if err != nil {
		return nil, err
	}

	var result *ReconcileResult
	var sweepErr error
	w.withLock(ctx, lockTypeParty, party, func() {
		result, sweepErr = w.Reconciliation.ReconcilePartyOrders(ctx, party, validIds)
	})
	if result == nil && sweepErr == nil {
		sweepErr = ErrCounterpartyBusy
	}
	return result, sweepErr
}

// distributeForEntry fans out to whichever sides the entry is tagged with.
// Callers hold the counterparty locks.
func (w *LedgerWorkflow) distributeForEntry(ctx context.Context, entry *models.LedgerEntry) {
	logger := config.GetLogger()

	if entry.SupplierName != "" {
		_, err := w.Distribution.DistributeToSupplierOrders(ctx, entry.SupplierName, entry.Amount.Abs(), entry.ID, entry.Notes)
		if err != nil {
			config.LogError(logger, "workflow", "distributeForEntry", "Supplier distribution failed", entry.ID, err)
		}
	}
	if entry.PartyName != "" {
		_, err := w.Distribution.DistributeToPartyOrders(ctx, entry.PartyName, entry.Amount.Abs(), entry.ID, entry.Notes)
		if err != nil {
			config.LogError(logger, "workflow", "distributeForEntry", "Party distribution failed", entry.ID, err)
		}
	}
}

// withEntryLocks nests the supplier and party locks around fn, taking only
// the ones the entry is tagged with. Untagged entries run fn directly.
func (w *LedgerWorkflow) withEntryLocks(ctx context.Context, entry *models.LedgerEntry, fn func()) {
	run := fn
	if entry.PartyName != "" {
		inner := run
		run = func() { w.withLock(ctx, lockTypeParty, entry.PartyName, inner) }
	}
	if entry.SupplierName != "" {
		inner := run
		run = func() { w.withLock(ctx, lockTypeSupplier, entry.SupplierName, inner) }
	}
	run()
}

// withLock runs fn while holding the counterparty lock. When the lock cannot
// be obtained the run is skipped: another run for the same counterparty holds
// it, and proceeding unlocked would let both read the same amounts-due and
// over-settle orders.
func (w *LedgerWorkflow) withLock(ctx context.Context, lockType string, name string, fn func()) {
	lock, err := w.obtainLock(ctx, lockType, name)
	if err != nil {
		config.LogError(config.GetLogger(), "workflow", "withLock", "Counterparty lock unavailable; run skipped", name, err)
		return
	}
	defer func() {
		_ = lock.Release(ctx)
	}()
	fn()
}
