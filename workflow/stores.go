package workflow

import (
	"context"

	"github.com/uinakrani/royalsuppliers-sub002/models"
)

// OrderStore is the order collaborator the engines run against. Production
// code uses the database-backed implementation below; tests substitute an
// in-memory one.
type OrderStore interface {
	GetAllOrders(ctx context.Context) ([]*models.Order, error)
	GetOrdersBySupplier(ctx context.Context, supplier string) ([]*models.Order, error)
	GetOrdersByParty(ctx context.Context, party string) ([]*models.Order, error)
	GetOrderById(ctx context.Context, id int) (*models.Order, error)
	AddPayment(ctx context.Context, orderId int, input *models.NewPaymentRecord) (*models.PaymentRecord, error)
	RemovePayment(ctx context.Context, orderId int, paymentId int, side models.PaymentSide) error
}

type ModelOrderStore struct{}

func (ModelOrderStore) GetAllOrders(ctx context.Context) ([]*models.Order, error) {
	return models.GetAllOrders(ctx, nil)
}

func (ModelOrderStore) GetOrdersBySupplier(ctx context.Context, supplier string) ([]*models.Order, error) {
	return models.GetAllOrders(ctx, &models.OrderFilter{SupplierName: supplier})
}

func (ModelOrderStore) GetOrdersByParty(ctx context.Context, party string) ([]*models.Order, error) {
	return models.GetAllOrders(ctx, &models.OrderFilter{PartyName: party})
}

func (ModelOrderStore) GetOrderById(ctx context.Context, id int) (*models.Order, error) {
	return models.GetOrderById(ctx, id)
}

func (ModelOrderStore) AddPayment(ctx context.Context, orderId int, input *models.NewPaymentRecord) (*models.PaymentRecord, error) {
	return models.AddOrderPayment(ctx, orderId, input)
}

func (ModelOrderStore) RemovePayment(ctx context.Context, orderId int, paymentId int, side models.PaymentSide) error {
	_, err := models.RemoveOrderPayment(ctx, orderId, paymentId, side)
	return err
}
