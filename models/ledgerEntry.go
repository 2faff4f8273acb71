package models

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
)

// LedgerEntry is one atomic credit/debit in the cash book. Identity is
// immutable; amount/date/notes/counterparty tags may change after the fact and
// every change lands in the audit trail.
type LedgerEntry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Direction       LedgerDirection `gorm:"type:enum('Credit','Debit');not null" json:"direction" binding:"required"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount" binding:"required"`
	TransactionDate time.Time       `gorm:"index;not null" json:"transaction_date"`
	Source          LedgerSource    `gorm:"size:20;not null" json:"source" binding:"required"`
	SupplierName    string          `gorm:"size:255;index;default:null" json:"supplier_name"`
	PartyName       string          `gorm:"size:255;index;default:null" json:"party_name"`
	Notes           string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLedgerEntry struct {
	Direction       LedgerDirection  `json:"direction" binding:"required"`
	Amount          decimal.Decimal  `json:"amount" binding:"required"`
	TransactionDate *time.Time       `json:"transaction_date"`
	Source          LedgerSource     `json:"source" binding:"required"`
	SupplierName    string           `json:"supplier_name"`
	PartyName       string           `json:"party_name"`
	Notes           string           `json:"notes"`
}

// UpdateLedgerEntryInput carries per-field update intent. Pointer fields left
// nil stay unchanged; OptionalString fields distinguish clear from unchanged.
type UpdateLedgerEntryInput struct {
	Amount          *decimal.Decimal `json:"amount"`
	TransactionDate *time.Time       `json:"transaction_date"`
	SupplierName    OptionalString   `json:"supplier_name"`
	PartyName       OptionalString   `json:"party_name"`
	Notes           OptionalString   `json:"notes"`
}

type LedgerEntryFilter struct {
	SupplierName string
	PartyName    string
	Source       LedgerSource
}

func (e LedgerEntry) GetId() int {
	return e.ID
}

// SignedAmount is the entry's contribution to the running cash balance.
func (e LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Direction == LedgerDirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// entrySortTime prefers the creation timestamp so backdated entries still
// surface in most-recently-entered order; transaction date is the fallback for
// rows migrated in without one.
func (e LedgerEntry) entrySortTime() time.Time {
	if !e.CreatedAt.IsZero() {
		return e.CreatedAt
	}
	return e.TransactionDate
}

func (input *NewLedgerEntry) validate() error {
	if !input.Direction.Valid() {
		return utils.NewValidationError("direction", "must be Credit or Debit")
	}
	if !input.Source.Valid() {
		return utils.NewValidationError("source", "unknown source tag")
	}
	// Amount is only required non-zero here. Negative-looking corrective
	// entries are accepted at the raw ledger level; the stricter > 0 check
	// lives on order payment addition.
	if input.Amount.IsZero() {
		return utils.NewValidationError("amount", "must not be zero")
	}
	return nil
}

// normalizeEntryDate pins a bare calendar date (midnight clock) to a fixed
// local time-of-day so the stored UTC instant cannot drift across a day
// boundary when rendered in the business timezone.
func normalizeEntryDate(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return utils.NormalizeTransactionDate(t, utils.DefaultTimezone)
	}
	return t.UTC()
}

func CreateLedgerEntry(ctx context.Context, input *NewLedgerEntry) (*LedgerEntry, error) {

	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	if err := input.validate(); err != nil {
		return nil, err
	}

	transactionDate := time.Now().UTC()
	if input.TransactionDate != nil {
		transactionDate = normalizeEntryDate(*input.TransactionDate)
	}

	entry := LedgerEntry{
		Direction:       input.Direction,
		Amount:          input.Amount,
		TransactionDate: transactionDate,
		Source:          input.Source,
		SupplierName:    input.SupplierName,
		PartyName:       input.PartyName,
		Notes:           input.Notes,
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := RecordLedgerEvent(ctx, tx, entry.TransactionDate, entry.ID, LedgerEventActionCreate, &entry, nil); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// Audit + live feed are best-effort and never gate the write.
	EnqueueHistory(ctx, "CREATE", entry.ID, "ledger_entries", nil, &entry, "Ledger entry created.")
	publishLedgerFeed(ctx, LedgerEventActionCreate, &entry)

	return &entry, nil
}

func UpdateLedgerEntry(ctx context.Context, id int, input *UpdateLedgerEntryInput) (*LedgerEntry, error) {

	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	// Fetch prior values for the audit record.
	oldEntry, err := utils.FetchModel[LedgerEntry](ctx, id)
	if err != nil {
		return nil, err
	}

	var entry = *oldEntry

	if input.Amount != nil {
		if input.Amount.IsZero() {
			return nil, utils.NewValidationError("amount", "must not be zero")
		}
		entry.Amount = *input.Amount
	}
	if input.TransactionDate != nil {
		entry.TransactionDate = normalizeEntryDate(*input.TransactionDate)
	}
	// Present-but-empty clears the stored value rather than leaving it.
	entry.SupplierName = input.SupplierName.Apply(entry.SupplierName)
	entry.PartyName = input.PartyName.Apply(entry.PartyName)
	entry.Notes = input.Notes.Apply(entry.Notes)

	tx := db.Begin()
	if err := tx.WithContext(ctx).Save(&entry).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := RecordLedgerEvent(ctx, tx, entry.TransactionDate, entry.ID, LedgerEventActionUpdate, &entry, oldEntry); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	EnqueueHistory(ctx, "UPDATE", entry.ID, "ledger_entries", oldEntry, &entry, "Ledger entry updated.")
	publishLedgerFeed(ctx, LedgerEventActionUpdate, &entry)

	return &entry, nil
}

func DeleteLedgerEntry(ctx context.Context, id int) (*LedgerEntry, error) {

	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	result, err := utils.FetchModel[LedgerEntry](ctx, id)
	if err != nil {
		return nil, err
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := RecordLedgerEvent(ctx, tx, result.TransactionDate, result.ID, LedgerEventActionDelete, nil, result); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	EnqueueHistory(ctx, "DELETE", result.ID, "ledger_entries", result, nil, "Deleted ledger entry.")
	publishLedgerFeed(ctx, LedgerEventActionDelete, result)

	return result, nil
}

func GetLedgerEntry(ctx context.Context, id int) (*LedgerEntry, error) {
	return utils.FetchModel[LedgerEntry](ctx, id)
}

// GetLedgerEntries returns entries newest-entered first: creation timestamp
// descending with transaction date as the fallback key.
func GetLedgerEntries(ctx context.Context, filter *LedgerEntryFilter) ([]*LedgerEntry, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	dbCtx := db.WithContext(ctx)
	if filter != nil {
		if filter.SupplierName != "" {
			dbCtx = dbCtx.Where("supplier_name = ?", filter.SupplierName)
		}
		if filter.PartyName != "" {
			dbCtx = dbCtx.Where("party_name = ?", filter.PartyName)
		}
		if filter.Source != "" {
			dbCtx = dbCtx.Where("source = ?", filter.Source)
		}
	}

	var results []*LedgerEntry
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].entrySortTime().After(results[j].entrySortTime())
	})
	return results, nil
}

// GetLedgerBalance folds the whole book: sum of credits minus sum of debits.
func GetLedgerBalance(ctx context.Context) (decimal.Decimal, error) {
	db := config.GetDB()
	if db == nil {
		return decimal.Zero, utils.ErrorStorageUnavailable
	}

	var balance decimal.Decimal
	err := db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(CASE WHEN direction = 'Credit' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
	`).Scan(&balance).Error
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// ValidLedgerEntryIDsForSupplier returns the live set of entry ids tagged to a
// supplier; reconciliation treats any payment reference outside this set as
// orphaned.
func ValidLedgerEntryIDsForSupplier(ctx context.Context, supplier string) (map[int]bool, error) {
	return validLedgerEntryIDs(ctx, "supplier_name", supplier)
}

func ValidLedgerEntryIDsForParty(ctx context.Context, party string) (map[int]bool, error) {
	return validLedgerEntryIDs(ctx, "party_name", party)
}

func validLedgerEntryIDs(ctx context.Context, column string, name string) (map[int]bool, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	var ids []int
	if err := db.WithContext(ctx).Model(&LedgerEntry{}).
		Where(column+" = ?", name).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	valid := make(map[int]bool, len(ids))
	for _, id := range ids {
		valid[id] = true
	}
	return valid, nil
}

func LedgerEntryExists(ctx context.Context, id int) (bool, error) {
	err := utils.ValidateResourceId[LedgerEntry](ctx, id)
	if err == nil {
		return true, nil
	}
	if utils.IsNotFound(err) {
		return false, nil
	}
	return false, err
}
