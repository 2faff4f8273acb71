package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
)

type Invoice struct {
	ID              int              `gorm:"primary_key" json:"id"`
	InvoiceNumber   string           `gorm:"size:100;uniqueIndex;not null" json:"invoice_number"`
	PartyName       string           `gorm:"size:255;index;not null" json:"party_name"`
	TotalAmount     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	TransactionDate time.Time        `gorm:"index;not null" json:"transaction_date"`
	Notes           string           `gorm:"type:text;default:null" json:"notes"`
	Payments        []InvoicePayment `gorm:"foreignKey:InvoiceId" json:"payments"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvoicePayment is a partial collection against one invoice. These surface in
// the timeline as incoming cash even though no ledger entry backs them.
type InvoicePayment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   int             `gorm:"index;not null" json:"invoice_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	Notes       string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoice struct {
	InvoiceNumber   string          `json:"invoice_number" binding:"required"`
	PartyName       string          `json:"party_name" binding:"required"`
	TotalAmount     decimal.Decimal `json:"total_amount" binding:"required"`
	TransactionDate time.Time       `json:"transaction_date" binding:"required"`
	Notes           string          `json:"notes"`
}

type NewInvoicePayment struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate *time.Time      `json:"payment_date"`
	Notes       string          `json:"notes"`
}

func (i Invoice) GetId() int {
	return i.ID
}

func (p InvoicePayment) GetId() int {
	return p.ID
}

func (i *Invoice) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range i.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	invoice := Invoice{
		InvoiceNumber:   input.InvoiceNumber,
		PartyName:       input.PartyName,
		TotalAmount:     input.TotalAmount,
		TransactionDate: normalizeEntryDate(input.TransactionDate),
		Notes:           input.Notes,
	}
	if err := db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}

	EnqueueHistory(ctx, "CREATE", invoice.ID, "invoices", nil, &invoice, "Invoice created.")
	return &invoice, nil
}

func GetInvoiceById(ctx context.Context, id int) (*Invoice, error) {
	return utils.FetchModel[Invoice](ctx, id, "Payments")
}

func GetInvoices(ctx context.Context, partyName string) ([]*Invoice, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	dbCtx := db.WithContext(ctx).Preload("Payments")
	if partyName != "" {
		dbCtx = dbCtx.Where("party_name = ?", partyName)
	}

	var results []*Invoice
	if err := dbCtx.Order("transaction_date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func AddInvoicePayment(ctx context.Context, invoiceId int, input *NewInvoicePayment) (*InvoicePayment, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}
	if err := utils.ValidateResourceId[Invoice](ctx, invoiceId); err != nil {
		return nil, err
	}

	paymentDate := time.Now().UTC()
	if input.PaymentDate != nil {
		paymentDate = normalizeEntryDate(*input.PaymentDate)
	}

	payment := InvoicePayment{
		InvoiceId:   invoiceId,
		Amount:      input.Amount,
		PaymentDate: paymentDate,
		Notes:       input.Notes,
	}
	if err := db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}

	EnqueueHistory(ctx, "CREATE", payment.ID, "invoice_payments", nil, &payment, "Invoice payment recorded.")
	return &payment, nil
}

// GetAllInvoicePayments feeds the timeline; no per-invoice filter.
func GetAllInvoicePayments(ctx context.Context) ([]*InvoicePayment, error) {
	return utils.FetchAllModels[InvoicePayment](ctx)
}
