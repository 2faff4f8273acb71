package models

import (
	"context"
	"encoding/json"

	"github.com/uinakrani/royalsuppliers-sub002/config"
)

const ledgerFeedChannel = "ledger:feed"

// LedgerFeedEvent is one mutation pushed to live subscribers. Delivery is
// best-effort over redis pub/sub; readers needing a consistent view should
// re-list instead of replaying the feed.
type LedgerFeedEvent struct {
	Action LedgerEventAction `json:"action"`
	Entry  *LedgerEntry      `json:"entry"`
}

func publishLedgerFeed(ctx context.Context, action LedgerEventAction, entry *LedgerEntry) {
	logger := config.GetLogger()
	event := LedgerFeedEvent{Action: action, Entry: entry}
	if err := config.PublishRedis(ctx, ledgerFeedChannel, event); err != nil {
		config.LogError(logger, "ledgerFeed.go", "publishLedgerFeed", "PublishRedis", entry.ID, err)
	}
}

// SubscribeLedger streams mutation events until ctx is cancelled. The returned
// channel is closed on cancellation or when redis is unavailable.
func SubscribeLedger(ctx context.Context) <-chan LedgerFeedEvent {
	out := make(chan LedgerFeedEvent)

	sub := config.SubscribeRedis(ctx, ledgerFeedChannel)
	if sub == nil {
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event LedgerFeedEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
