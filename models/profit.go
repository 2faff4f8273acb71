package models

import "github.com/shopspring/decimal"

// Deltas smaller than this are treated as rounding noise, not real variance.
var profitNoiseThreshold = decimal.New(1, -2)

// AdjustedProfit is the order's base profit corrected by all three adjustment
// fields. Pure; reads only the order struct.
func AdjustedProfit(order *Order) decimal.Decimal {
	return order.BaseProfit.
		Add(order.ExpenseAdjustment).
		Add(order.RevenueAdjustment).
		Add(order.ManualAdjustment)
}

func HasAdjustments(order *Order) bool {
	return !order.ExpenseAdjustment.IsZero() ||
		!order.RevenueAdjustment.IsZero() ||
		!order.ManualAdjustment.IsZero()
}

// RevenueAdjustment is the selling-side variance: what the party actually paid
// minus what the order expected. Underpayment comes out negative.
func RevenueAdjustment(expectedTotal decimal.Decimal, payments []PaymentRecord) decimal.Decimal {
	return paymentVariance(expectedTotal, payments)
}

// ExpenseAdjustment is the cost-side variance with the sign flipped: paying
// the supplier more than expected reduces profit.
func ExpenseAdjustment(expectedTotal decimal.Decimal, payments []PaymentRecord) decimal.Decimal {
	return paymentVariance(expectedTotal, payments).Neg()
}

func paymentVariance(expectedTotal decimal.Decimal, payments []PaymentRecord) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	delta := paid.Sub(expectedTotal)
	if delta.Abs().LessThan(profitNoiseThreshold) {
		return decimal.Zero
	}
	return delta.Round(2)
}
