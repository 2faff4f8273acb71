package models

import "github.com/shopspring/decimal"

type LedgerDirection string

const (
	LedgerDirectionCredit LedgerDirection = "Credit"
	LedgerDirectionDebit  LedgerDirection = "Debit"
)

func (d LedgerDirection) Valid() bool {
	return d == LedgerDirectionCredit || d == LedgerDirectionDebit
}

// LedgerSource tags where an entry came from so the timeline and the
// distribution trigger can tell operator entries apart from generated ones.
type LedgerSource string

const (
	LedgerSourceManual         LedgerSource = "Manual"
	LedgerSourcePartyPayment   LedgerSource = "PartyPayment"
	LedgerSourceInvoicePayment LedgerSource = "InvoicePayment"
	LedgerSourceOrderExpense   LedgerSource = "OrderExpense"
	LedgerSourceInvestment     LedgerSource = "Investment"
)

func (s LedgerSource) Valid() bool {
	switch s {
	case LedgerSourceManual, LedgerSourcePartyPayment, LedgerSourceInvoicePayment,
		LedgerSourceOrderExpense, LedgerSourceInvestment:
		return true
	}
	return false
}

type PaymentSide string

const (
	PaymentSideExpense  PaymentSide = "Expense"
	PaymentSideCustomer PaymentSide = "Customer"
)

func (s PaymentSide) Valid() bool {
	return s == PaymentSideExpense || s == PaymentSideCustomer
}

type OrderPaymentStatus string

const (
	OrderPaymentStatusUnpaid      OrderPaymentStatus = "Unpaid"
	OrderPaymentStatusPartialPaid OrderPaymentStatus = "PartialPaid"
	OrderPaymentStatusPaid        OrderPaymentStatus = "Paid"
)

type InvestmentActivityType string

const (
	InvestmentActivityTypeCapitalIn  InvestmentActivityType = "CapitalIn"
	InvestmentActivityTypeCapitalOut InvestmentActivityType = "CapitalOut"
)

func (t InvestmentActivityType) Valid() bool {
	return t == InvestmentActivityTypeCapitalIn || t == InvestmentActivityTypeCapitalOut
}

type LedgerEventAction string

const (
	LedgerEventActionCreate LedgerEventAction = "C"
	LedgerEventActionUpdate LedgerEventAction = "U"
	LedgerEventActionDelete LedgerEventAction = "D"
)

// SettlementTolerance is the residual under which an order side counts as
// fully paid. Fixed at 250 currency units regardless of order size; it is a
// data-entry rounding allowance, deliberately not proportional.
var SettlementTolerance = decimal.NewFromInt(250)
