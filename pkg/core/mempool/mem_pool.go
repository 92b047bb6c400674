// Package mempool contains the unconfirmed transaction pool.
package mempool

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/H01mes/qoober-node-1/pkg/core/transaction"
)

var (
	// ErrDup is returned when the transaction being added is already present
	// in the memory pool.
	ErrDup = errors.New("already in the memory pool")
	// ErrOOM is returned when the transaction just doesn't fit in the memory
	// pool because of its capacity constraints.
	ErrOOM = errors.New("out of memory")
	// ErrDoubleSpend is returned when the sender cannot cover the
	// transaction with its unconfirmed balance.
	ErrDoubleSpend = errors.New("insufficient unconfirmed balance")
	// ErrUnconfirmedDuplicate is returned when the transaction exhausts a
	// per-pool duplicate budget of its type.
	ErrUnconfirmedDuplicate = errors.New("duplicate in the memory pool")
)

// item represents a transaction in the the memory pool.
type item struct {
	txn        *transaction.Transaction
	id         uint64
	feePerByte int64
}

// items is a slice of an item, ordered by fee per byte ascending.
type items []item

func (p items) Len() int           { return len(p) }
func (p items) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p items) Less(i, j int) bool { return p[i].CompareTo(p[j]) < 0 }

// CompareTo returns the difference between two items.
// difference < 0 implies p < otherP.
// difference = 0 implies p = otherP.
// difference > 0 implies p > otherP.
func (p item) CompareTo(otherP item) int {
	if ret := p.feePerByte - otherP.feePerByte; ret != 0 {
		if ret < 0 {
			return -1
		}
		return 1
	}
	// Earlier arrivals win ties.
	if ret := otherP.txn.Timestamp() - p.txn.Timestamp(); ret != 0 {
		return int(ret)
	}
	if p.id == otherP.id {
		return 0
	}
	if p.id < otherP.id {
		return 1
	}
	return -1
}

// Pool stores the unconfirmed transactions. Admission reserves sender
// balances through the transaction lifecycle hooks; eviction and removal
// release them.
type Pool struct {
	lock         sync.RWMutex
	verifiedMap  map[uint64]*transaction.Transaction
	verifiedTxes items
	duplicates   transaction.Duplicates

	capacity int
	log      *zap.Logger

	// subscriptions for mempool events
	subscriptionsOn atomic.Bool
	stopCh          chan struct{}
	events          chan Event
	subCh           chan chan<- Event
	unsubCh         chan chan<- Event
}

// New returns a new Pool struct.
func New(capacity int, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		verifiedMap:  make(map[uint64]*transaction.Transaction, capacity),
		verifiedTxes: make(items, 0, capacity),
		duplicates:   make(transaction.Duplicates),
		capacity:     capacity,
		log:          log,
		stopCh:       make(chan struct{}),
		events:       make(chan Event),
		subCh:        make(chan chan<- Event),
		unsubCh:      make(chan chan<- Event),
	}
}

// Count returns the total number of unconfirmed transactions.
func (mp *Pool) Count() int {
	mp.lock.RLock()
	defer mp.lock.RUnlock()
	return len(mp.verifiedTxes)
}

// ContainsKey checks if the transaction id is in the Pool.
func (mp *Pool) ContainsKey(id uint64) bool {
	mp.lock.RLock()
	defer mp.lock.RUnlock()
	return mp.containsKey(id)
}

func (mp *Pool) containsKey(id uint64) bool {
	_, ok := mp.verifiedMap[id]
	return ok
}

// TryGetValue returns a transaction and its presence in the memory pool.
func (mp *Pool) TryGetValue(id uint64) (*transaction.Transaction, bool) {
	mp.lock.RLock()
	defer mp.lock.RUnlock()
	txn, ok := mp.verifiedMap[id]
	return txn, ok
}

// GetVerifiedTransactions returns a slice of the pooled transactions, most
// valuable first.
func (mp *Pool) GetVerifiedTransactions() []*transaction.Transaction {
	mp.lock.RLock()
	defer mp.lock.RUnlock()
	result := make([]*transaction.Transaction, len(mp.verifiedTxes))
	for i := range mp.verifiedTxes {
		result[len(result)-1-i] = mp.verifiedTxes[i].txn
	}
	return result
}

// Add tries to add the given transaction to the Pool. The transaction must
// be signed and validated by the caller; Add reserves the sender balance
// and may evict the cheapest pooled transaction to make room.
func (mp *Pool) Add(t *transaction.Transaction) error {
	id, err := t.ID()
	if err != nil {
		return err
	}
	pItem := item{txn: t, id: id, feePerByte: t.FeeNQT() / int64(t.Size())}

	mp.lock.Lock()
	if mp.containsKey(id) {
		mp.lock.Unlock()
		return ErrDup
	}
	if t.IsUnconfirmedDuplicate(mp.duplicates) {
		mp.lock.Unlock()
		return ErrUnconfirmedDuplicate
	}
	var evicted *transaction.Transaction
	if len(mp.verifiedTxes) >= mp.capacity {
		cheapest := mp.verifiedTxes[0]
		if pItem.CompareTo(cheapest) <= 0 {
			mp.lock.Unlock()
			return ErrOOM
		}
		evicted = cheapest.txn
		delete(mp.verifiedMap, cheapest.id)
		mp.verifiedTxes = mp.verifiedTxes[1:]
		evicted.UndoUnconfirmed()
	}
	if !t.ApplyUnconfirmed() {
		mp.lock.Unlock()
		return ErrDoubleSpend
	}
	mp.verifiedMap[id] = t
	n := sort.Search(len(mp.verifiedTxes), func(n int) bool {
		return pItem.CompareTo(mp.verifiedTxes[n]) < 0
	})
	mp.verifiedTxes = append(mp.verifiedTxes, item{})
	copy(mp.verifiedTxes[n+1:], mp.verifiedTxes[n:])
	mp.verifiedTxes[n] = pItem
	updatePoolSizeMetric(len(mp.verifiedTxes))
	mp.lock.Unlock()

	if evicted != nil {
		mp.log.Debug("unconfirmed transaction evicted",
			zap.String("evicted", unsignedString(evicted)),
			zap.String("by", unsignedString(t)))
		mp.notify(Event{Type: TransactionRemoved, Tx: evicted})
	}
	mp.notify(Event{Type: TransactionAdded, Tx: t})
	return nil
}

// Remove removes an item from the mempool releasing the sender balance
// reservation. Use RemoveIncluded for transactions leaving the pool into a
// block.
func (mp *Pool) Remove(id uint64) {
	mp.removeInternal(id, true)
}

// RemoveIncluded removes an item that has been included in a block; the
// balance reservation is consumed by the confirmed application, not
// released.
func (mp *Pool) RemoveIncluded(id uint64) {
	mp.removeInternal(id, false)
}

func (mp *Pool) removeInternal(id uint64, undo bool) {
	mp.lock.Lock()
	txn, ok := mp.verifiedMap[id]
	if ok {
		delete(mp.verifiedMap, id)
		for i := range mp.verifiedTxes {
			if mp.verifiedTxes[i].id == id {
				mp.verifiedTxes = append(mp.verifiedTxes[:i], mp.verifiedTxes[i+1:]...)
				break
			}
		}
		if undo {
			txn.UndoUnconfirmed()
		}
	}
	updatePoolSizeMetric(len(mp.verifiedTxes))
	mp.lock.Unlock()
	if ok {
		mp.notify(Event{Type: TransactionRemoved, Tx: txn})
	}
}

// RemoveStale drops all transactions for which the given filter returns
// false, releasing their reservations.
func (mp *Pool) RemoveStale(isOK func(*transaction.Transaction) bool) {
	mp.lock.Lock()
	var removed []*transaction.Transaction
	newVerifiedTxes := mp.verifiedTxes[:0]
	for _, itm := range mp.verifiedTxes {
		if isOK(itm.txn) {
			newVerifiedTxes = append(newVerifiedTxes, itm)
		} else {
			delete(mp.verifiedMap, itm.id)
			itm.txn.UndoUnconfirmed()
			removed = append(removed, itm.txn)
		}
	}
	mp.verifiedTxes = newVerifiedTxes
	mp.duplicates = make(transaction.Duplicates)
	updatePoolSizeMetric(len(mp.verifiedTxes))
	mp.lock.Unlock()
	for _, txn := range removed {
		mp.notify(Event{Type: TransactionRemoved, Tx: txn})
	}
}

func unsignedString(t *transaction.Transaction) string {
	s, _ := t.StringID()
	return s
}
