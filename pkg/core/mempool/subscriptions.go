package mempool

import (
	"github.com/H01mes/qoober-node-1/pkg/core/transaction"
)

// EventType represents mempool event type.
type EventType byte

const (
	// TransactionAdded marks transaction addition mempool event.
	TransactionAdded EventType = 0x01
	// TransactionRemoved marks transaction removal mempool event.
	TransactionRemoved EventType = 0x02
)

// Event represents one of mempool events: a transaction was added to or
// removed from the pool.
type Event struct {
	Type EventType
	Tx   *transaction.Transaction
}

// RunSubscriptions runs the subscriptions goroutine. You should manually
// free the resources by calling StopSubscriptions on mempool shutdown.
func (mp *Pool) RunSubscriptions() {
	if !mp.subscriptionsOn.Load() {
		mp.subscriptionsOn.Store(true)
		go mp.notificationDispatcher()
	}
}

// StopSubscriptions stops the mempool events loop.
func (mp *Pool) StopSubscriptions() {
	if mp.subscriptionsOn.Load() {
		mp.subscriptionsOn.Store(false)
		close(mp.stopCh)
	}
}

// SubscribeForTransactions adds the given channel to new mempool event
// broadcasting: when a transaction is added to or removed from the pool
// you'll receive it via this channel.
func (mp *Pool) SubscribeForTransactions(ch chan<- Event) {
	if mp.subscriptionsOn.Load() {
		mp.subCh <- ch
	}
}

// UnsubscribeFromTransactions unsubscribes the given channel from new
// mempool notifications, you can close it afterwards. Passing a
// non-subscribed channel is a no-op.
func (mp *Pool) UnsubscribeFromTransactions(ch chan<- Event) {
	if mp.subscriptionsOn.Load() {
		mp.unsubCh <- ch
	}
}

// notify is a no-op when the events loop is not running.
func (mp *Pool) notify(event Event) {
	if !mp.subscriptionsOn.Load() {
		return
	}
	select {
	case mp.events <- event:
	case <-mp.stopCh:
	}
}

// notificationDispatcher manages subscriptions to events and broadcasts new
// events.
func (mp *Pool) notificationDispatcher() {
	txFeed := make(map[chan<- Event]bool)
	for {
		select {
		case <-mp.stopCh:
			return
		case sub := <-mp.subCh:
			txFeed[sub] = true
		case unsub := <-mp.unsubCh:
			delete(txFeed, unsub)
		case event := <-mp.events:
			for ch := range txFeed {
				ch <- event
			}
		}
	}
}
