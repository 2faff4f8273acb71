package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/models"
)

// ReconciliationEngine removes per-order payment records whose funding ledger
// entry no longer exists or is no longer tagged to the counterparty. Manual
// payments (no ledger reference) are never touched.
//
// Every operation is a full scan over the counterparty's orders. Fine at the
// current scale of hundreds of orders; a ledger-id to order-ids index is the
// upgrade path when that stops being true.
type ReconciliationEngine struct {
	Orders OrderStore
	Logger *logrus.Logger
}

func NewReconciliationEngine() *ReconciliationEngine {
	return &ReconciliationEngine{
		Orders: ModelOrderStore{},
		Logger: config.GetLogger(),
	}
}

// ReconcileResult summarizes one sweep. Re-running against already-consistent
// state reports zero Changed and zero Removed.
type ReconcileResult struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

func (e *ReconciliationEngine) ReconcileSupplierOrders(ctx context.Context, supplier string, validLedgerIds map[int]bool) (*ReconcileResult, error) {
	orders, err := e.Orders.GetOrdersBySupplier(ctx, supplier)
	if err != nil {
		return nil, err
	}
	return e.sweepOrphans(ctx, orders, models.PaymentSideExpense, validLedgerIds), nil
}

func (e *ReconciliationEngine) ReconcilePartyOrders(ctx context.Context, party string, validLedgerIds map[int]bool) (*ReconcileResult, error) {
	orders, err := e.Orders.GetOrdersByParty(ctx, party)
	if err != nil {
		return nil, err
	}
	return e.sweepOrphans(ctx, orders, models.PaymentSideCustomer, validLedgerIds), nil
}

// RemovePaymentsByLedgerEntryId sweeps both sides of every order for payments
// referencing one deleted ledger entry.
func (e *ReconciliationEngine) RemovePaymentsByLedgerEntryId(ctx context.Context, ledgerEntryId int) (*ReconcileResult, error) {
	orders, err := e.Orders.GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{}
	for _, order := range orders {
		result.Scanned++
		removed, failed := 0, 0
		for _, payment := range order.Payments {
			if payment.LedgerEntryId != ledgerEntryId {
				continue
			}
			if err := e.Orders.RemovePayment(ctx, order.ID, payment.ID, payment.Side); err != nil {
				config.LogError(e.Logger, "workflow", "RemovePaymentsByLedgerEntryId", "Failed to remove payment", payment.ID, err)
				failed++
				continue
			}
			removed++
		}
		if removed > 0 {
			result.Changed++
			result.Removed += removed
		}
		if failed > 0 {
			result.Failed++
		}
	}
	return result, nil
}

func (e *ReconciliationEngine) sweepOrphans(ctx context.Context, orders []*models.Order, side models.PaymentSide, validLedgerIds map[int]bool) *ReconcileResult {
	result := &ReconcileResult{}
	for _, order := range orders {
		result.Scanned++
		removed, failed := 0, 0
		for _, payment := range order.Payments {
			if payment.Side != side {
				continue
			}
			if !payment.HasLedgerRef() {
				continue
			}
			if validLedgerIds[payment.LedgerEntryId] {
				continue
			}
			if err := e.Orders.RemovePayment(ctx, order.ID, payment.ID, payment.Side); err != nil {
				config.LogError(e.Logger, "workflow", "sweepOrphans", "Failed to remove orphaned payment", payment.ID, err)
				failed++
				continue
			}
			removed++
		}
		if removed > 0 {
			result.Changed++
			result.Removed += removed
		}
		if failed > 0 {
			result.Failed++
		}
	}
	return result
}
