package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
)

// Order is one trade: goods bought from a supplier (cost side) and sold on to
// a party (selling side). Each side carries its own payment records and
// settlement status.
type Order struct {
	ID              int       `gorm:"primary_key" json:"id"`
	TransactionDate time.Time `gorm:"index;not null" json:"transaction_date"`
	PartyName       string    `gorm:"size:255;index;not null" json:"party_name"`
	SupplierName    string    `gorm:"size:255;index;not null" json:"supplier_name"`

	SaleWeight decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_weight"`
	SaleRate   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_rate"`
	SaleTotal  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_total"`

	OriginalWeight decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"original_weight"`
	OriginalRate   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"original_rate"`
	OriginalTotal  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"original_total"`

	AdditionalCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"additional_cost"`
	BaseProfit     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_profit"`

	ExpenseAdjustment decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"expense_adjustment"`
	RevenueAdjustment decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"revenue_adjustment"`
	ManualAdjustment  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"manual_adjustment"`

	ExpenseStatus OrderPaymentStatus `gorm:"size:20;not null;default:'Unpaid'" json:"expense_status"`
	RevenueStatus OrderPaymentStatus `gorm:"size:20;not null;default:'Unpaid'" json:"revenue_status"`

	Payments []PaymentRecord `gorm:"foreignKey:OrderId" json:"payments"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaymentRecord is one payment applied to one side of one order. The order
// owns the record; LedgerEntryId is only a lookup reference to the ledger
// entry that funded it (0 for manual entries). A reference pointing at a
// deleted entry is an orphan until reconciliation sweeps it.
type PaymentRecord struct {
	ID            int             `gorm:"primary_key" json:"id"`
	OrderId       int             `gorm:"index;not null" json:"order_id"`
	Side          PaymentSide     `gorm:"type:enum('Expense','Customer');not null" json:"side"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Notes         string          `gorm:"type:text;default:null" json:"notes"`
	LedgerEntryId int             `gorm:"index;default:null" json:"ledger_entry_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrder struct {
	TransactionDate  time.Time       `json:"transaction_date" binding:"required"`
	PartyName        string          `json:"party_name" binding:"required"`
	SupplierName     string          `json:"supplier_name" binding:"required"`
	SaleWeight       decimal.Decimal `json:"sale_weight"`
	SaleRate         decimal.Decimal `json:"sale_rate"`
	SaleTotal        decimal.Decimal `json:"sale_total"`
	OriginalWeight   decimal.Decimal `json:"original_weight"`
	OriginalRate     decimal.Decimal `json:"original_rate"`
	OriginalTotal    decimal.Decimal `json:"original_total"`
	AdditionalCost   decimal.Decimal `json:"additional_cost"`
	ManualAdjustment decimal.Decimal `json:"manual_adjustment"`
}

type NewPaymentRecord struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate   *time.Time      `json:"payment_date"`
	Notes         string          `json:"notes"`
	Side          PaymentSide     `json:"side" binding:"required"`
	LedgerEntryId int             `json:"ledger_entry_id"`
}

type OrderFilter struct {
	SupplierName string
	PartyName    string
}

func (o Order) GetId() int {
	return o.ID
}

func (p PaymentRecord) GetId() int {
	return p.ID
}

func (p PaymentRecord) HasLedgerRef() bool {
	return p.LedgerEntryId > 0
}

// PartialPayments is the expense-side list (money paid out to the supplier).
func (o *Order) PartialPayments() []PaymentRecord {
	return o.paymentsOnSide(PaymentSideExpense)
}

// CustomerPayments is the selling-side list (money collected from the party).
func (o *Order) CustomerPayments() []PaymentRecord {
	return o.paymentsOnSide(PaymentSideCustomer)
}

func (o *Order) paymentsOnSide(side PaymentSide) []PaymentRecord {
	var result []PaymentRecord
	for _, p := range o.Payments {
		if p.Side == side {
			result = append(result, p)
		}
	}
	return result
}

func (o *Order) PaidOnSide(side PaymentSide) decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Payments {
		if p.Side == side {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// ObligationOnSide: the supplier is owed the cost-side total; the party owes
// the selling-side total. Additional cost is not part of the supplier debt.
func (o *Order) ObligationOnSide(side PaymentSide) decimal.Decimal {
	if side == PaymentSideExpense {
		return o.OriginalTotal
	}
	return o.SaleTotal
}

// AmountDue never goes below zero; overpaid sides owe nothing further.
func (o *Order) AmountDue(side PaymentSide) decimal.Decimal {
	due := o.ObligationOnSide(side).Sub(o.PaidOnSide(side))
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// SideSettled applies the fixed settlement tolerance: a residual at or under
// the tolerance counts as fully paid.
func (o *Order) SideSettled(side PaymentSide) bool {
	return o.PaidOnSide(side).Cmp(o.ObligationOnSide(side).Sub(SettlementTolerance)) >= 0
}

func (o *Order) statusOnSide(side PaymentSide) OrderPaymentStatus {
	paid := o.PaidOnSide(side)
	if o.SideSettled(side) {
		return OrderPaymentStatusPaid
	}
	if paid.IsPositive() {
		return OrderPaymentStatusPartialPaid
	}
	return OrderPaymentStatusUnpaid
}

// RecomputeStatuses refreshes both settlement flags from loaded payments.
// Returns true when either changed; callers persist only on change.
func (o *Order) RecomputeStatuses() bool {
	expense := o.statusOnSide(PaymentSideExpense)
	revenue := o.statusOnSide(PaymentSideCustomer)
	changed := expense != o.ExpenseStatus || revenue != o.RevenueStatus
	o.ExpenseStatus = expense
	o.RevenueStatus = revenue
	return changed
}

func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	order := Order{
		TransactionDate:  normalizeEntryDate(input.TransactionDate),
		PartyName:        input.PartyName,
		SupplierName:     input.SupplierName,
		SaleWeight:       input.SaleWeight,
		SaleRate:         input.SaleRate,
		SaleTotal:        input.SaleTotal,
		OriginalWeight:   input.OriginalWeight,
		OriginalRate:     input.OriginalRate,
		OriginalTotal:    input.OriginalTotal,
		AdditionalCost:   input.AdditionalCost,
		ManualAdjustment: input.ManualAdjustment,
		ExpenseStatus:    OrderPaymentStatusUnpaid,
		RevenueStatus:    OrderPaymentStatusUnpaid,
	}
	order.BaseProfit = input.SaleTotal.Sub(input.OriginalTotal).Sub(input.AdditionalCost)

	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}

	invalidateOutstandingCache(&order)
	EnqueueHistory(ctx, "CREATE", order.ID, "orders", nil, &order, "Order created.")
	return &order, nil
}

func GetOrderById(ctx context.Context, id int) (*Order, error) {
	return utils.FetchModel[Order](ctx, id, "Payments")
}

func GetAllOrders(ctx context.Context, filter *OrderFilter) ([]*Order, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	dbCtx := db.WithContext(ctx).Preload("Payments")
	if filter != nil {
		if filter.SupplierName != "" {
			dbCtx = dbCtx.Where("supplier_name = ?", filter.SupplierName)
		}
		if filter.PartyName != "" {
			dbCtx = dbCtx.Where("party_name = ?", filter.PartyName)
		}
	}

	var results []*Order
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SaveOrder persists scalar fields and statuses. Payments are managed through
// AddOrderPayment/RemoveOrderPayment, never through association saves.
func SaveOrder(ctx context.Context, order *Order) error {
	db := config.GetDB()
	if db == nil {
		return utils.ErrorStorageUnavailable
	}
	return db.WithContext(ctx).Omit("Payments").Save(order).Error
}

// AddOrderPayment records one payment against one side of an order. Unlike raw
// ledger entry creation, the amount here must be strictly positive.
func AddOrderPayment(ctx context.Context, orderId int, input *NewPaymentRecord) (*PaymentRecord, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	if !input.Side.Valid() {
		return nil, utils.NewValidationError("side", "must be Expense or Customer")
	}
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}
	if input.LedgerEntryId > 0 {
		if err := utils.ValidateResourceId[LedgerEntry](ctx, input.LedgerEntryId); err != nil {
			return nil, utils.NewValidationError("ledger_entry_id", "ledger entry not found")
		}
	}

	order, err := GetOrderById(ctx, orderId)
	if err != nil {
		return nil, err
	}

	paymentDate := time.Now().UTC()
	if input.PaymentDate != nil {
		paymentDate = normalizeEntryDate(*input.PaymentDate)
	}

	payment := PaymentRecord{
		OrderId:       order.ID,
		Side:          input.Side,
		Amount:        input.Amount,
		PaymentDate:   paymentDate,
		Notes:         input.Notes,
		LedgerEntryId: input.LedgerEntryId,
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	order.Payments = append(order.Payments, payment)
	order.RecomputeStatuses()
	if err := tx.WithContext(ctx).Omit("Payments").Save(order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	invalidateOutstandingCache(order)
	EnqueueHistory(ctx, "CREATE", payment.ID, "payment_records", nil, &payment, "Payment added to order.")
	return &payment, nil
}

func RemoveOrderPayment(ctx context.Context, orderId int, paymentId int, side PaymentSide) (*PaymentRecord, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	order, err := GetOrderById(ctx, orderId)
	if err != nil {
		return nil, err
	}

	var target *PaymentRecord
	remaining := make([]PaymentRecord, 0, len(order.Payments))
	for i := range order.Payments {
		p := order.Payments[i]
		if p.ID == paymentId && p.Side == side {
			target = &order.Payments[i]
			continue
		}
		remaining = append(remaining, p)
	}
	if target == nil {
		return nil, utils.ErrorRecordNotFound
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(&PaymentRecord{}, target.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	order.Payments = remaining
	order.RecomputeStatuses()
	if err := tx.WithContext(ctx).Omit("Payments").Save(order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	invalidateOutstandingCache(order)
	EnqueueHistory(ctx, "DELETE", target.ID, "payment_records", target, nil, "Payment removed from order.")
	return target, nil
}

// Outstanding summaries are read far more often than orders change; cached
// briefly and invalidated on any payment or order mutation.
const outstandingCacheTTL = 30 * time.Second

func outstandingCacheKey(side PaymentSide, name string) string {
	if side == PaymentSideExpense {
		return "outstanding:supplier:" + name
	}
	return "outstanding:party:" + name
}

func invalidateOutstandingCache(order *Order) {
	_ = config.RemoveRedisKey(
		outstandingCacheKey(PaymentSideExpense, order.SupplierName),
		outstandingCacheKey(PaymentSideCustomer, order.PartyName),
	)
}

// GetSupplierOutstanding sums what the business still owes one supplier
// across all of that supplier's orders.
func GetSupplierOutstanding(ctx context.Context, supplier string) (decimal.Decimal, error) {
	return counterpartyOutstanding(ctx, &OrderFilter{SupplierName: supplier}, PaymentSideExpense)
}

// GetPartyOutstanding sums what one party still owes the business.
func GetPartyOutstanding(ctx context.Context, party string) (decimal.Decimal, error) {
	return counterpartyOutstanding(ctx, &OrderFilter{PartyName: party}, PaymentSideCustomer)
}

func counterpartyOutstanding(ctx context.Context, filter *OrderFilter, side PaymentSide) (decimal.Decimal, error) {
	name := filter.SupplierName
	if side == PaymentSideCustomer {
		name = filter.PartyName
	}
	cacheKey := outstandingCacheKey(side, name)

	var cached decimal.Decimal
	if found, err := config.GetRedisObject(cacheKey, &cached); err == nil && found {
		return cached, nil
	}

	orders, err := GetAllOrders(ctx, filter)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, order := range orders {
		if order.SideSettled(side) {
			continue
		}
		total = total.Add(order.AmountDue(side))
	}

	_ = config.SetRedisObject(cacheKey, total, outstandingCacheTTL)
	return total, nil
}
