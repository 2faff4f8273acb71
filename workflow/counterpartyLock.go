package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/uinakrani/royalsuppliers-sub002/config"
)

const (
	lockTypeSupplier = "counterparty-lock:supplier"
	lockTypeParty    = "counterparty-lock:party"
)

// ErrCounterpartyBusy reports that another run holds the counterparty lock
// and the operation was skipped rather than raced.
var ErrCounterpartyBusy = errors.New("another run for this counterparty is in progress")

// ObtainCounterpartyLock serializes the read-allocate-write sequence per
// counterparty name. Two concurrent distributions against the same supplier
// would otherwise both read the same amounts-due and double-allocate.
// Callers must Release the returned lock.
func ObtainCounterpartyLock(ctx context.Context, lockType string, name string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		config.LogError(logger, "workflow", "ObtainCounterpartyLock", "Redis lock not initialized", name, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}

	lockKey := fmt.Sprintf("%s:%s", lockType, name)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 50),
	})
	if err == redislock.ErrNotObtained {
		config.LogError(logger, "workflow", "ObtainCounterpartyLock", "Could not obtain counterparty lock", lockKey, err)
		return nil, errors.New("could not obtain counterparty lock")
	} else if err != nil {
		config.LogError(logger, "workflow", "ObtainCounterpartyLock", "Error obtaining counterparty lock", lockKey, err)
		return nil, err
	}
	return lock, nil
}
