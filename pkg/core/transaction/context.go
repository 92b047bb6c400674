package transaction

import (
	"math"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/crypto"
)

// LedgerEvent tags balance mutations with the operation that caused them.
type LedgerEvent byte

// Ledger events produced by the registered transaction types.
const (
	LedgerEventTransactionFee LedgerEvent = iota + 1
	LedgerEventOrdinaryPayment
	LedgerEventArbitraryMessage
	LedgerEventAccountInfo
)

// Clock supplies the current protocol time in seconds since the epoch.
type Clock interface {
	Time() int32
}

// Blockchain is the read-only chain facade the engine consumes.
type Blockchain interface {
	// Height returns the current blockchain height.
	Height() int32
	// ECBlock resolves the economic cluster block for the given timestamp.
	ECBlock(timestamp int32) (height int32, id uint64)
}

// BlockDb resolves block ids by height.
type BlockDb interface {
	FindBlockIDAtHeight(height int32) uint64
}

// Account is a single account as seen by the engine. All balance mutations
// go through it; the ledger owns synchronization.
type Account interface {
	ID() uint64
	UnconfirmedBalanceNQT() int64
	ApplyPublicKey(publicKey []byte)
	SetAccountInfo(name, description string)
	AddToBalanceNQT(event LedgerEvent, eventID uint64, amountNQT, feeNQT int64)
	AddToUnconfirmedBalanceNQT(event LedgerEvent, eventID uint64, amountNQT, feeNQT int64)
	AddToBalanceAndUnconfirmedBalanceNQT(event LedgerEvent, eventID uint64, amountNQT int64)
}

// AccountLedger is the account registry facade.
type AccountLedger interface {
	// PublicKey returns the known public key of the account or nil.
	PublicKey(id uint64) []byte
	// SetOrVerify binds the key to the account on first sight, or checks
	// equality against the already bound key.
	SetOrVerify(id uint64, publicKey []byte) bool
	// Account returns the account or nil when it does not exist.
	Account(id uint64) Account
	// AddOrGetAccount returns the account, creating it when missing.
	AddOrGetAccount(id uint64) Account
}

// PhasingPolls is the phased-execution registry facade.
type PhasingPolls interface {
	// Exists reports whether a poll has been created for the transaction id.
	Exists(txID uint64) bool
	// Add creates the poll for a phased transaction at apply time.
	Add(tx *Transaction, phasing *Phasing)
}

// AccountRestrictions is the external account-control policy.
type AccountRestrictions interface {
	// CheckTransaction returns nil or an ErrNotCurrentlyValid-wrapped error.
	CheckTransaction(tx *Transaction) error
	// IsBlockDuplicate lets the policy claim per-block duplicate slots.
	IsBlockDuplicate(tx *Transaction, duplicates Duplicates) bool
}

// PrunableStore rehydrates pruned appendage payloads from archival storage.
type PrunableStore interface {
	PlainMessage(txID uint64, includeExpired bool) (message []byte, isText bool, ok bool)
	EncryptedMessage(txID uint64, includeExpired bool) (data crypto.EncryptedData, isText bool, ok bool)
}

// Context carries the protocol configuration and the external facades the
// engine calls into. A single Context is shared by every builder and
// transaction of a node; all facades must be safe for concurrent use.
type Context struct {
	Config       config.ProtocolConfiguration
	Chain        Blockchain
	BlockDb      BlockDb
	Ledger       AccountLedger
	Polls        PhasingPolls
	Restrictions AccountRestrictions
	Prunables    PrunableStore
	Clock        Clock
}

func (c *Context) height() int32 {
	if c.Chain == nil {
		return 0
	}
	return c.Chain.Height()
}

func (c *Context) time() int32 {
	if c.Clock == nil {
		return 0
	}
	return c.Clock.Time()
}

func (c *Context) pollExists(txID uint64) bool {
	return c.Polls != nil && c.Polls.Exists(txID)
}

func (c *Context) checkRestrictions(tx *Transaction) error {
	if c.Restrictions == nil {
		return nil
	}
	return c.Restrictions.CheckTransaction(tx)
}

// noFeeChangeHeight marks fee schedules that never change.
const noFeeChangeHeight = int32(math.MaxInt32)
