package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
)

// History is the audit trail: one row per mutation with prior and new values.
// Writes are fire-and-forget; a failed audit write is logged and dropped, it
// never participates in the outcome of the mutation it describes.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255;index" json:"reference_type"`
	UserId        int       `gorm:"index" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (h History) GetId() int {
	return h.ID
}

// auditQueue buffers audit rows for the background writer. A full queue drops
// the record (logged) rather than block the caller.
var auditQueue = make(chan History, 256)

// EnqueueHistory queues an audit record for the background writer.
func EnqueueHistory(ctx context.Context, actionType string, referenceId int, referenceType string, before interface{}, after interface{}, description string) {

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		userName = "System"
	}

	record := History{
		ActionType:    actionType,
		Before:        string(b),
		After:         string(a),
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		UserId:        userId,
		UserName:      userName,
	}

	select {
	case auditQueue <- record:
	default:
		logger := config.GetLogger()
		config.LogError(logger, "history.go", "EnqueueHistory", "audit queue full; record dropped", referenceId, utils.ErrorStorageUnavailable)
	}
}

// RunAuditWriter drains the audit queue until ctx is cancelled. Start once
// from main(). Write failures are logged and swallowed.
func RunAuditWriter(ctx context.Context) {
	logger := config.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-auditQueue:
			db := config.GetDB()
			if db == nil {
				config.LogError(logger, "history.go", "RunAuditWriter", "db not ready; audit record dropped", record.ReferenceID, utils.ErrorStorageUnavailable)
				continue
			}
			if err := db.Create(&record).Error; err != nil {
				config.LogError(logger, "history.go", "RunAuditWriter", "create history", record.ReferenceID, err)
			}
		}
	}
}

// FlushAuditQueue synchronously drains whatever is queued. Tests and shutdown
// paths use it; normal operation relies on RunAuditWriter.
func FlushAuditQueue() {
	logger := config.GetLogger()
	for {
		select {
		case record := <-auditQueue:
			db := config.GetDB()
			if db == nil {
				return
			}
			if err := db.Create(&record).Error; err != nil {
				config.LogError(logger, "history.go", "FlushAuditQueue", "create history", record.ReferenceID, err)
			}
		default:
			return
		}
	}
}

func GetHistory(ctx context.Context, id int) (*History, error) {
	return utils.FetchModel[History](ctx, id)
}

func GetHistories(ctx context.Context, referenceId *int, referenceType *string, userId *int) ([]*History, error) {

	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorStorageUnavailable
	}
	var results []*History

	dbCtx := db.WithContext(ctx)
	if referenceId != nil && *referenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", referenceId)
	}
	if referenceType != nil && len(*referenceType) > 0 {
		dbCtx = dbCtx.Where("reference_type = ?", referenceType)
	}
	if userId != nil && *userId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", userId)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
