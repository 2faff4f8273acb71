package models

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
)

type TimelineKind string

const (
	TimelineKindLedger         TimelineKind = "Ledger"
	TimelineKindInvestment     TimelineKind = "Investment"
	TimelineKindInvoicePayment TimelineKind = "InvoicePayment"
	TimelineKindOrderPayment   TimelineKind = "OrderPayment"
)

// TimelineItem is one cash movement from any source, normalized to a signed
// amount. RunningBalance is filled in during aggregation.
type TimelineItem struct {
	Kind            TimelineKind    `json:"kind"`
	ReferenceId     int             `json:"reference_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	TransactionDate time.Time       `json:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at"`
	RunningBalance  decimal.Decimal `json:"running_balance"`
}

type TimelineDay struct {
	Date           time.Time       `json:"date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	NetChange      decimal.Decimal `json:"net_change"`
	Items          []TimelineItem  `json:"items"`
}

// Backdated records carry a fresh creation timestamp, so ordering by creation
// time keeps them where the operator entered them.
func (i *TimelineItem) sortTime() time.Time {
	if !i.CreatedAt.IsZero() {
		return i.CreatedAt
	}
	return i.TransactionDate
}

// BuildTimeline turns a flat item list into day buckets with running balances.
// Pure; callers load the items.
//
// Items are accumulated in ascending entry order, then regrouped with days
// descending. Within a day, entries sort descending by time except investment
// movements, which always render at the bottom of the day as its baseline.
func BuildTimeline(items []TimelineItem) []TimelineDay {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].sortTime().Before(items[j].sortTime())
	})

	running := decimal.Zero
	for i := range items {
		running = running.Add(items[i].Amount)
		items[i].RunningBalance = running
	}

	// Keyed by formatted date, not time.Time: equal instants in different
	// location pointers would otherwise land in separate buckets.
	var days []TimelineDay
	dayIndex := map[string]int{}
	for _, item := range items {
		day := utils.ConvertToDate(item.sortTime(), utils.DefaultTimezone)
		key := day.Format("2006-01-02")
		idx, ok := dayIndex[key]
		if !ok {
			idx = len(days)
			dayIndex[key] = idx
			days = append(days, TimelineDay{Date: day})
		}
		days[idx].Items = append(days[idx].Items, item)
		days[idx].NetChange = days[idx].NetChange.Add(item.Amount)
		days[idx].ClosingBalance = item.RunningBalance
	}

	for i := range days {
		days[i].OpeningBalance = days[i].ClosingBalance.Sub(days[i].NetChange)
		orderWithinDay(days[i].Items)
	}

	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	return days
}

func orderWithinDay(items []TimelineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		iInvest := items[i].Kind == TimelineKindInvestment
		jInvest := items[j].Kind == TimelineKindInvestment
		if iInvest != jInvest {
			return jInvest
		}
		return items[i].sortTime().After(items[j].sortTime())
	})
}

// GetTimeline loads all four sources and merges them. Order payments that
// carry a ledger reference are skipped; their ledger entry already represents
// them and counting both would double the movement.
func GetTimeline(ctx context.Context) ([]TimelineDay, error) {
	entries, err := GetLedgerEntries(ctx, nil)
	if err != nil {
		return nil, err
	}
	activities, err := GetInvestmentActivities(ctx)
	if err != nil {
		return nil, err
	}
	invoicePayments, err := GetAllInvoicePayments(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := GetAllOrders(ctx, nil)
	if err != nil {
		return nil, err
	}

	var items []TimelineItem
	for _, entry := range entries {
		items = append(items, TimelineItem{
			Kind:            TimelineKindLedger,
			ReferenceId:     entry.ID,
			Amount:          entry.SignedAmount(),
			Description:     entry.Notes,
			TransactionDate: entry.TransactionDate,
			CreatedAt:       entry.CreatedAt,
		})
	}
	for _, activity := range activities {
		items = append(items, TimelineItem{
			Kind:            TimelineKindInvestment,
			ReferenceId:     activity.ID,
			Amount:          activity.SignedAmount(),
			Description:     activity.Notes,
			TransactionDate: activity.TransactionDate,
			CreatedAt:       activity.CreatedAt,
		})
	}
	for _, payment := range invoicePayments {
		items = append(items, TimelineItem{
			Kind:            TimelineKindInvoicePayment,
			ReferenceId:     payment.ID,
			Amount:          payment.Amount,
			Description:     payment.Notes,
			TransactionDate: payment.PaymentDate,
			CreatedAt:       payment.CreatedAt,
		})
	}
	for _, order := range orders {
		for _, payment := range order.Payments {
			if payment.HasLedgerRef() {
				continue
			}
			amount := payment.Amount
			if payment.Side == PaymentSideExpense {
				amount = amount.Neg()
			}
			items = append(items, TimelineItem{
				Kind:            TimelineKindOrderPayment,
				ReferenceId:     payment.ID,
				Amount:          amount,
				Description:     payment.Notes,
				TransactionDate: payment.PaymentDate,
				CreatedAt:       payment.CreatedAt,
			})
		}
	}

	return BuildTimeline(items), nil
}
