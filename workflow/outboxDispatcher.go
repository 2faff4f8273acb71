package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher polls the ledger event outbox and publishes committed rows
// to Pub/Sub. Rows are written inside the mutation's own transaction, so a
// row existing means its ledger change committed. Multiple dispatchers can
// run concurrently; SKIP LOCKED keeps their claim batches disjoint, and a
// PROCESSING row whose LockedAt is older than LockTimeout is treated as
// abandoned and reclaimed.
type OutboxDispatcher struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		batch := d.claimBatch(ctx)
		d.publishBatch(ctx, batch)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// claimBatch moves a batch of eligible rows to PROCESSING inside one
// transaction and returns them. Rows already past MaxAttempts are parked as
// DEAD during the same pass instead of being claimed again.
func (d *OutboxDispatcher) claimBatch(ctx context.Context) []models.LedgerEventRecord {
	if d.DB == nil {
		return nil
	}
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var batch []models.LedgerEventRecord
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eligible := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := eligible.Find(&batch).Error; err != nil {
			return err
		}

		for i := range batch {
			rec := &batch[i]
			if d.exhausted(rec.PublishAttempts) {
				rec.PublishStatus = models.OutboxPublishStatusDead
				if err := d.setStatus(tx, rec.ID, deadUpdates(fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts))); err != nil {
					return err
				}
				continue
			}
			rec.PublishStatus = models.OutboxPublishStatusProcessing
			rec.PublishAttempts++
			if err := d.setStatus(tx, rec.ID, map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return batch
}

func (d *OutboxDispatcher) publishBatch(ctx context.Context, batch []models.LedgerEventRecord) {
	if len(batch) == 0 {
		return
	}
	pubsubReady := config.PubSubConfigured()
	for _, rec := range batch {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		// Without Pub/Sub config, drain rows locally so the outbox table
		// does not grow without bound in single-node deployments.
		if !pubsubReady {
			d.markSent(ctx, rec.ID, "local")
			continue
		}
		pubID, err := config.PublishLedgerEvent(ctx, models.ConvertToPubSubMessage(rec))
		if err != nil {
			d.markFailed(ctx, rec.ID, err, rec.PublishAttempts)
			continue
		}
		d.markSent(ctx, rec.ID, pubID)
	}
}

func (d *OutboxDispatcher) markSent(ctx context.Context, recordID int, pubsubMsgID string) {
	now := time.Now().UTC()
	_ = d.setStatus(d.DB.WithContext(ctx), recordID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusSent,
		"published_at":       &now,
		"pub_sub_message_id": &pubsubMsgID,
		"locked_at":          nil,
		"next_attempt_at":    nil,
	})
}

func (d *OutboxDispatcher) markFailed(ctx context.Context, recordID int, pubErr error, attempt int) {
	db := d.DB.WithContext(ctx)

	if d.exhausted(attempt) {
		_ = d.setStatus(db, recordID, deadUpdates(pubErr.Error()))
		d.logPublishError(recordID, attempt, "outbox publish moved to DEAD after max attempts", pubErr)
		return
	}

	next := time.Now().UTC().Add(d.retryBackoff(attempt))
	_ = d.setStatus(db, recordID, map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusFailed,
		"last_publish_error": pubErr.Error(),
		"next_attempt_at":    &next,
		"locked_at":          nil,
	})
	d.logPublishError(recordID, attempt, "outbox publish failed", pubErr)
}

func (d *OutboxDispatcher) exhausted(attempts int) bool {
	return d.MaxAttempts > 0 && attempts >= d.MaxAttempts
}

// retryBackoff doubles per attempt from InitialBackoff, capped at ten minutes.
func (d *OutboxDispatcher) retryBackoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return backoff
}

func (d *OutboxDispatcher) setStatus(db *gorm.DB, recordID int, updates map[string]interface{}) error {
	return db.Model(&models.LedgerEventRecord{}).Where("id = ?", recordID).Updates(updates).Error
}

func deadUpdates(reason string) map[string]interface{} {
	return map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusDead,
		"last_publish_error": reason,
		"next_attempt_at":    nil,
		"locked_at":          nil,
	}
}

func (d *OutboxDispatcher) logPublishError(recordID int, attempt int, msg string, err error) {
	if d.Logger == nil {
		return
	}
	d.Logger.WithFields(logrus.Fields{
		"field":     "OutboxDispatcher",
		"record_id": recordID,
		"attempt":   attempt,
	}).Error(msg + ": " + err.Error())
}
