package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/models"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
)

// DistributionEngine spreads one lump-sum ledger amount across the unsettled
// orders of a single counterparty, oldest obligation first.
type DistributionEngine struct {
	Orders OrderStore
	Logger *logrus.Logger
}

func NewDistributionEngine() *DistributionEngine {
	return &DistributionEngine{
		Orders: ModelOrderStore{},
		Logger: config.GetLogger(),
	}
}

type DistributionAllocation struct {
	OrderId   int             `json:"order_id"`
	PaymentId int             `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// DistributionResult summarizes one run. Partial success is a normal outcome:
// Failed counts orders whose write failed while the walk continued.
type DistributionResult struct {
	Allocated   decimal.Decimal          `json:"allocated"`
	Remainder   decimal.Decimal          `json:"remainder"`
	Succeeded   int                      `json:"succeeded"`
	Failed      int                      `json:"failed"`
	Allocations []DistributionAllocation `json:"allocations"`
}

func (e *DistributionEngine) DistributeToSupplierOrders(ctx context.Context, supplier string, amount decimal.Decimal, ledgerEntryId int, note string) (*DistributionResult, error) {
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}
	orders, err := e.Orders.GetOrdersBySupplier(ctx, supplier)
	if err != nil {
		return nil, err
	}
	return e.distribute(ctx, orders, models.PaymentSideExpense, amount, ledgerEntryId, note), nil
}

func (e *DistributionEngine) DistributeToPartyOrders(ctx context.Context, party string, amount decimal.Decimal, ledgerEntryId int, note string) (*DistributionResult, error) {
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}
	orders, err := e.Orders.GetOrdersByParty(ctx, party)
	if err != nil {
		return nil, err
	}
	return e.distribute(ctx, orders, models.PaymentSideCustomer, amount, ledgerEntryId, note), nil
}

// distribute walks unsettled orders in ascending transaction-date order,
// allocating min(remaining, amountDue) to each. Whatever is left after all
// obligations clear stays at the ledger level; no order carries an unapplied
// credit.
func (e *DistributionEngine) distribute(ctx context.Context, orders []*models.Order, side models.PaymentSide, amount decimal.Decimal, ledgerEntryId int, note string) *DistributionResult {
	var open []*models.Order
	for _, order := range orders {
		if order.SideSettled(side) {
			continue
		}
		if !order.AmountDue(side).IsPositive() {
			continue
		}
		open = append(open, order)
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].TransactionDate.Before(open[j].TransactionDate)
	})

	result := &DistributionResult{Allocated: decimal.Zero, Remainder: amount}
	paymentDate := time.Now().UTC()

	remaining := amount
	for _, order := range open {
		if !remaining.IsPositive() {
			break
		}
		allocation := decimal.Min(remaining, order.AmountDue(side))

		payment, err := e.Orders.AddPayment(ctx, order.ID, &models.NewPaymentRecord{
			Amount:        allocation,
			PaymentDate:   &paymentDate,
			Notes:         note,
			Side:          side,
			LedgerEntryId: ledgerEntryId,
		})
		if err != nil {
			// One bad order must not abort the run.
			config.LogError(e.Logger, "workflow", "distribute", "Failed to allocate payment to order", order.ID, err)
			result.Failed++
			continue
		}

		remaining = remaining.Sub(allocation)
		result.Allocated = result.Allocated.Add(allocation)
		result.Succeeded++
		result.Allocations = append(result.Allocations, DistributionAllocation{
			OrderId:   order.ID,
			PaymentId: payment.ID,
			Amount:    allocation,
		})
	}

	result.Remainder = remaining
	return result
}
