package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func timelineItem(kind TimelineKind, amount string, createdAt time.Time) TimelineItem {
	return TimelineItem{
		Kind:            kind,
		Amount:          decimal.RequireFromString(amount),
		TransactionDate: createdAt,
		CreatedAt:       createdAt,
	}
}

func TestBuildTimelineRunningBalances(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 5, 0, 0, 0, time.UTC)

	// Deliberately out of entry order; aggregation must sort first.
	items := []TimelineItem{
		timelineItem(TimelineKindLedger, "-200", day1.Add(2*time.Hour)),
		timelineItem(TimelineKindLedger, "1000", day1),
		timelineItem(TimelineKindLedger, "300", day2),
		timelineItem(TimelineKindInvestment, "500", day1.Add(time.Hour)),
	}

	days := BuildTimeline(items)
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2", len(days))
	}

	// Days come out newest first.
	latest := days[0]
	if !latest.ClosingBalance.Equal(decimal.NewFromInt(1600)) {
		t.Fatalf("latest day closing balance = %s, want 1600", latest.ClosingBalance)
	}
	if !latest.OpeningBalance.Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("latest day opening balance = %s, want 1300", latest.OpeningBalance)
	}
	if !latest.NetChange.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("latest day net change = %s, want 300", latest.NetChange)
	}

	earliest := days[1]
	if !earliest.OpeningBalance.IsZero() {
		t.Fatalf("earliest day opening balance = %s, want 0", earliest.OpeningBalance)
	}
	if !earliest.ClosingBalance.Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("earliest day closing balance = %s, want 1300", earliest.ClosingBalance)
	}
}

func TestBuildTimelineInvestmentsSinkToDayBottom(t *testing.T) {
	base := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)

	items := []TimelineItem{
		timelineItem(TimelineKindLedger, "100", base),
		timelineItem(TimelineKindInvestment, "500", base.Add(time.Hour)),
		timelineItem(TimelineKindLedger, "-50", base.Add(2*time.Hour)),
	}

	days := BuildTimeline(items)
	if len(days) != 1 {
		t.Fatalf("got %d days, want 1", len(days))
	}

	got := days[0].Items
	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
	// Non-investment entries descend by time; the investment entry renders
	// last even though it happened in the middle.
	if got[0].Amount.String() != "-50" {
		t.Fatalf("first item amount = %s, want -50", got[0].Amount)
	}
	if got[1].Amount.String() != "100" {
		t.Fatalf("second item amount = %s, want 100", got[1].Amount)
	}
	if got[2].Kind != TimelineKindInvestment {
		t.Fatalf("last item kind = %s, want Investment", got[2].Kind)
	}
}

func TestBuildTimelineFallsBackToTransactionDate(t *testing.T) {
	early := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	late := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	// No creation timestamp on the first item; its transaction date orders it.
	items := []TimelineItem{
		{Kind: TimelineKindLedger, Amount: decimal.NewFromInt(100), TransactionDate: late},
		timelineItem(TimelineKindLedger, "40", early),
	}

	days := BuildTimeline(items)
	if len(days) != 1 {
		t.Fatalf("got %d days, want 1", len(days))
	}
	items = days[0].Items
	if !items[0].RunningBalance.Equal(decimal.NewFromInt(140)) {
		t.Fatalf("newest item running balance = %s, want 140", items[0].RunningBalance)
	}
	if !items[1].RunningBalance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("oldest item running balance = %s, want 40", items[1].RunningBalance)
	}
}

func TestBuildTimelineGroupsSameDayIntoOneBucket(t *testing.T) {
	base := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

	var items []TimelineItem
	for i := 0; i < 6; i++ {
		items = append(items, timelineItem(TimelineKindLedger, "10", base.Add(time.Duration(i)*time.Minute)))
	}

	days := BuildTimeline(items)
	if len(days) != 1 {
		t.Fatalf("got %d days for one calendar day, want 1", len(days))
	}
	if len(days[0].Items) != 6 {
		t.Fatalf("got %d items in the day, want 6", len(days[0].Items))
	}
	if !days[0].NetChange.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("day net change = %s, want 60", days[0].NetChange)
	}
}

func TestBuildTimelineEmpty(t *testing.T) {
	if days := BuildTimeline(nil); len(days) != 0 {
		t.Fatalf("BuildTimeline(nil) produced %d days, want 0", len(days))
	}
}
