package workflow

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/uinakrani/royalsuppliers-sub002/models"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
)

// fakeOrderStore keeps orders in memory so engine behavior can be tested
// without a database.
type fakeOrderStore struct {
	orders        map[int]*models.Order
	nextPaymentId int
	failOrderIds  map[int]bool
}

func newFakeOrderStore(orders ...*models.Order) *fakeOrderStore {
	s := &fakeOrderStore{
		orders:       map[int]*models.Order{},
		failOrderIds: map[int]bool{},
	}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeOrderStore) GetAllOrders(ctx context.Context) ([]*models.Order, error) {
	var result []*models.Order
	for _, o := range s.orders {
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *fakeOrderStore) GetOrdersBySupplier(ctx context.Context, supplier string) ([]*models.Order, error) {
	all, _ := s.GetAllOrders(ctx)
	var result []*models.Order
	for _, o := range all {
		if o.SupplierName == supplier {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) GetOrdersByParty(ctx context.Context, party string) ([]*models.Order, error) {
	all, _ := s.GetAllOrders(ctx)
	var result []*models.Order
	for _, o := range all {
		if o.PartyName == party {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *fakeOrderStore) GetOrderById(ctx context.Context, id int) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return o, nil
}

func (s *fakeOrderStore) AddPayment(ctx context.Context, orderId int, input *models.NewPaymentRecord) (*models.PaymentRecord, error) {
	if s.failOrderIds[orderId] {
		return nil, errors.New("write failed")
	}
	order, ok := s.orders[orderId]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	s.nextPaymentId++
	payment := models.PaymentRecord{
		ID:            s.nextPaymentId,
		OrderId:       orderId,
		Side:          input.Side,
		Amount:        input.Amount,
		Notes:         input.Notes,
		LedgerEntryId: input.LedgerEntryId,
	}
	if input.PaymentDate != nil {
		payment.PaymentDate = *input.PaymentDate
	}
	order.Payments = append(order.Payments, payment)
	order.RecomputeStatuses()
	return &payment, nil
}

func (s *fakeOrderStore) RemovePayment(ctx context.Context, orderId int, paymentId int, side models.PaymentSide) error {
	if s.failOrderIds[orderId] {
		return errors.New("write failed")
	}
	order, ok := s.orders[orderId]
	if !ok {
		return utils.ErrorRecordNotFound
	}
	var remaining []models.PaymentRecord
	found := false
	for _, p := range order.Payments {
		if p.ID == paymentId && p.Side == side {
			found = true
			continue
		}
		remaining = append(remaining, p)
	}
	if !found {
		return utils.ErrorRecordNotFound
	}
	order.Payments = remaining
	order.RecomputeStatuses()
	return nil
}

func testEngine(store *fakeOrderStore) *DistributionEngine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &DistributionEngine{Orders: store, Logger: logger}
}

func supplierOrder(id int, date time.Time, originalTotal string) *models.Order {
	return &models.Order{
		ID:              id,
		TransactionDate: date,
		SupplierName:    "U Kyaw",
		PartyName:       "Daw Mya",
		OriginalTotal:   decimal.RequireFromString(originalTotal),
		SaleTotal:       decimal.RequireFromString(originalTotal),
		ExpenseStatus:   models.OrderPaymentStatusUnpaid,
		RevenueStatus:   models.OrderPaymentStatusUnpaid,
	}
}

func TestDistributeOldestFirst(t *testing.T) {
	older := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "800")
	newer := supplierOrder(2, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), "750")
	store := newFakeOrderStore(newer, older)
	engine := testEngine(store)

	result, err := engine.DistributeToSupplierOrders(context.Background(), "U Kyaw", decimal.NewFromInt(1200), 77, "lump payment")
	if err != nil {
		t.Fatal(err)
	}

	if !result.Allocated.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("Allocated = %s, want 1200", result.Allocated)
	}
	if !result.Remainder.IsZero() {
		t.Fatalf("Remainder = %s, want 0", result.Remainder)
	}
	if result.Succeeded != 2 || result.Failed != 0 {
		t.Fatalf("Succeeded/Failed = %d/%d, want 2/0", result.Succeeded, result.Failed)
	}

	// The older order clears in full before the newer sees anything.
	if paid := older.PaidOnSide(models.PaymentSideExpense); !paid.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("older order paid = %s, want 800", paid)
	}
	if older.ExpenseStatus != models.OrderPaymentStatusPaid {
		t.Fatalf("older order status = %s, want Paid", older.ExpenseStatus)
	}
	if paid := newer.PaidOnSide(models.PaymentSideExpense); !paid.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("newer order paid = %s, want 400", paid)
	}
	if due := newer.AmountDue(models.PaymentSideExpense); !due.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("newer order due = %s, want 350", due)
	}

	for _, allocation := range result.Allocations {
		payment := findPayment(t, store, allocation.PaymentId)
		if payment.LedgerEntryId != 77 {
			t.Fatalf("allocation payment missing ledger reference: %+v", payment)
		}
	}
}

func TestDistributeLeavesRemainderAtLedgerLevel(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "300")
	store := newFakeOrderStore(order)
	engine := testEngine(store)

	result, err := engine.DistributeToSupplierOrders(context.Background(), "U Kyaw", decimal.NewFromInt(500), 5, "")
	if err != nil {
		t.Fatal(err)
	}

	if !result.Allocated.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("Allocated = %s, want 300", result.Allocated)
	}
	if !result.Remainder.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("Remainder = %s, want 200", result.Remainder)
	}
	// No order-level record for the leftover.
	if got := len(order.Payments); got != 1 {
		t.Fatalf("order has %d payments, want 1", got)
	}
	if !order.Payments[0].Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("payment amount = %s, want exactly the amount due", order.Payments[0].Amount)
	}
}

func TestDistributeSkipsSettledOrders(t *testing.T) {
	// Settled within tolerance: 800 obligation, 600 paid, tolerance 250.
	settled := supplierOrder(1, time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC), "800")
	settled.Payments = []models.PaymentRecord{{ID: 99, Side: models.PaymentSideExpense, Amount: decimal.NewFromInt(600)}}
	settled.RecomputeStatuses()
	open := supplierOrder(2, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "500")
	store := newFakeOrderStore(settled, open)
	store.nextPaymentId = 99
	engine := testEngine(store)

	result, err := engine.DistributeToSupplierOrders(context.Background(), "U Kyaw", decimal.NewFromInt(400), 8, "")
	if err != nil {
		t.Fatal(err)
	}

	if result.Succeeded != 1 {
		t.Fatalf("Succeeded = %d, want 1", result.Succeeded)
	}
	if got := len(settled.Payments); got != 1 {
		t.Fatal("settled order received an allocation")
	}
	if paid := open.PaidOnSide(models.PaymentSideExpense); !paid.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("open order paid = %s, want 400", paid)
	}
}

func TestDistributeContinuesPastFailedOrder(t *testing.T) {
	// Obligations must clear the 250 settlement tolerance or the orders
	// would already count as settled and never receive an allocation.
	first := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "400")
	second := supplierOrder(2, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), "400")
	third := supplierOrder(3, time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC), "400")
	store := newFakeOrderStore(first, second, third)
	store.failOrderIds[2] = true
	engine := testEngine(store)

	result, err := engine.DistributeToSupplierOrders(context.Background(), "U Kyaw", decimal.NewFromInt(1200), 4, "")
	if err != nil {
		t.Fatal(err)
	}

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("Succeeded/Failed = %d/%d, want 2/1", result.Succeeded, result.Failed)
	}
	// The failed order's share stays unallocated.
	if !result.Allocated.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("Allocated = %s, want 800", result.Allocated)
	}
	if !result.Remainder.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("Remainder = %s, want 400", result.Remainder)
	}
	if len(second.Payments) != 0 {
		t.Fatal("failed order ended up with a payment")
	}
	if paid := third.PaidOnSide(models.PaymentSideExpense); !paid.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("third order paid = %s, want 400", paid)
	}
}

func TestDistributeToPartyOrdersUsesSellingSide(t *testing.T) {
	order := supplierOrder(1, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "1000")
	order.SaleTotal = decimal.NewFromInt(1500)
	store := newFakeOrderStore(order)
	engine := testEngine(store)

	result, err := engine.DistributeToPartyOrders(context.Background(), "Daw Mya", decimal.NewFromInt(900), 3, "")
	if err != nil {
		t.Fatal(err)
	}

	if !result.Allocated.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("Allocated = %s, want 900", result.Allocated)
	}
	if paid := order.PaidOnSide(models.PaymentSideCustomer); !paid.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("customer side paid = %s, want 900", paid)
	}
	if paid := order.PaidOnSide(models.PaymentSideExpense); !paid.IsZero() {
		t.Fatalf("expense side paid = %s, want 0", paid)
	}
}

func TestDistributeRejectsNonPositiveAmount(t *testing.T) {
	engine := testEngine(newFakeOrderStore())
	_, err := engine.DistributeToSupplierOrders(context.Background(), "U Kyaw", decimal.Zero, 1, "")
	if !utils.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func findPayment(t *testing.T, store *fakeOrderStore, paymentId int) models.PaymentRecord {
	t.Helper()
	for _, order := range store.orders {
		for _, p := range order.Payments {
			if p.ID == paymentId {
				return p
			}
		}
	}
	t.Fatalf("payment %d not found", paymentId)
	return models.PaymentRecord{}
}
