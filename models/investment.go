package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
)

type InvestmentAccount struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	Notes     string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvestmentActivity is one capital movement on an account. CapitalIn raises
// the running cash position, CapitalOut lowers it.
type InvestmentActivity struct {
	ID              int                    `gorm:"primary_key" json:"id"`
	AccountId       int                    `gorm:"index;not null" json:"account_id"`
	Type            InvestmentActivityType `gorm:"type:enum('CapitalIn','CapitalOut');not null" json:"type"`
	Amount          decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"amount"`
	TransactionDate time.Time              `gorm:"index;not null" json:"transaction_date"`
	Notes           string                 `gorm:"type:text;default:null" json:"notes"`
	CreatedAt       time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvestmentActivity struct {
	AccountId       int                    `json:"account_id" binding:"required"`
	Type            InvestmentActivityType `json:"type" binding:"required"`
	Amount          decimal.Decimal        `json:"amount" binding:"required"`
	TransactionDate *time.Time             `json:"transaction_date"`
	Notes           string                 `json:"notes"`
}

func (a InvestmentAccount) GetId() int {
	return a.ID
}

func (a InvestmentActivity) GetId() int {
	return a.ID
}

// SignedAmount maps the activity onto the cash timeline: inflows positive,
// outflows negative.
func (a *InvestmentActivity) SignedAmount() decimal.Decimal {
	if a.Type == InvestmentActivityTypeCapitalOut {
		return a.Amount.Neg()
	}
	return a.Amount
}

func CreateInvestmentAccount(ctx context.Context, name string, notes string) (*InvestmentAccount, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}
	if name == "" {
		return nil, utils.NewValidationError("name", "must not be empty")
	}

	account := InvestmentAccount{Name: name, Notes: notes}
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}

	EnqueueHistory(ctx, "CREATE", account.ID, "investment_accounts", nil, &account, "Investment account created.")
	return &account, nil
}

func GetInvestmentAccounts(ctx context.Context) ([]*InvestmentAccount, error) {
	return utils.FetchAllModels[InvestmentAccount](ctx)
}

// RecordInvestmentActivity writes the activity and moves the account balance
// in one transaction.
func RecordInvestmentActivity(ctx context.Context, input *NewInvestmentActivity) (*InvestmentActivity, error) {
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}

	if !input.Type.Valid() {
		return nil, utils.NewValidationError("type", "must be CapitalIn or CapitalOut")
	}
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}

	account, err := utils.FetchModel[InvestmentAccount](ctx, input.AccountId)
	if err != nil {
		return nil, err
	}

	transactionDate := time.Now().UTC()
	if input.TransactionDate != nil {
		transactionDate = normalizeEntryDate(*input.TransactionDate)
	}

	activity := InvestmentActivity{
		AccountId:       account.ID,
		Type:            input.Type,
		Amount:          input.Amount,
		TransactionDate: transactionDate,
		Notes:           input.Notes,
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&activity).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	account.Balance = account.Balance.Add(activity.SignedAmount())
	if err := tx.WithContext(ctx).Save(account).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	EnqueueHistory(ctx, "CREATE", activity.ID, "investment_activities", nil, &activity, "Investment activity recorded.")
	return &activity, nil
}

func GetInvestmentActivities(ctx context.Context) ([]*InvestmentActivity, error) {
	return utils.FetchAllModels[InvestmentActivity](ctx)
}
