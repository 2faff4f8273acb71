package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
	"gorm.io/gorm"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// LedgerEventRecord is the outbox row for one ledger mutation. It is written
// inside the same transaction as the mutation itself; the dispatcher publishes
// it after commit.
type LedgerEventRecord struct {
	ID                  int               `gorm:"primary_key;index:idx_outbox_dispatch,priority:2" json:"id"`
	TransactionDateTime time.Time         `gorm:"index;not null" json:"transaction_date_time"`
	ReferenceId         int               `gorm:"index" json:"reference_id"`
	ReferenceType       string            `gorm:"size:50;not null" json:"reference_type"`
	Action              LedgerEventAction `gorm:"type:enum('C','U','D')" json:"action"`
	OldObj              []byte            `gorm:"type:blob" json:"old_obj"`
	NewObj              []byte            `gorm:"type:blob" json:"new_obj"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:64" json:"pub_sub_message_id"`
	NextAttemptAt    *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecordLedgerEvent writes the outbox row inside the caller's transaction. It
// never publishes; that is the dispatcher's job after commit.
func RecordLedgerEvent(ctx context.Context, tx *gorm.DB, transactionDate time.Time, refId int, action LedgerEventAction, newObj interface{}, oldObj interface{}) error {
	var newInByte []byte
	var oldInByte []byte
	var err error

	if action == LedgerEventActionCreate || action == LedgerEventActionUpdate {
		newInByte, err = json.Marshal(newObj)
		if err != nil {
			return err
		}
	}
	if action == LedgerEventActionUpdate || action == LedgerEventActionDelete {
		oldInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := LedgerEventRecord{
		TransactionDateTime: transactionDate,
		ReferenceId:         refId,
		ReferenceType:       "ledger_entries",
		Action:              action,
		NewObj:              newInByte,
		OldObj:              oldInByte,
		PublishStatus:       OutboxPublishStatusPending,
		CorrelationId:       correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func ConvertToPubSubMessage(record LedgerEventRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:                  record.ID,
		TransactionDateTime: record.TransactionDateTime,
		ReferenceId:         record.ReferenceId,
		ReferenceType:       record.ReferenceType,
		Action:              string(record.Action),
		OldObj:              record.OldObj,
		NewObj:              record.NewObj,
		CorrelationId:       record.CorrelationId,
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
