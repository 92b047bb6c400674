package transaction

import (
	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/io"
)

// Type and subtype codes of the registered transaction types.
const (
	TypePayment   = byte(0)
	TypeMessaging = byte(1)

	SubtypePaymentOrdinary      = byte(0)
	SubtypeMessagingArbitrary   = byte(0)
	SubtypeMessagingAccountInfo = byte(5)
)

// TxType is a transaction type handler: it supplies the attachment codec,
// fee schedule, recipient rules, duplicate policy and the state hooks of one
// (type, subtype) pair.
type TxType interface {
	Type() byte
	Subtype() byte
	Name() string
	CanHaveRecipient() bool
	MustHaveRecipient() bool
	LedgerEvent() LedgerEvent
	// BaselineFee is the fee schedule of the attachment.
	BaselineFee(tx *Transaction) Fee
	// BackFees describes how the fee is shared backwards with previous
	// block generators; empty means no sharing.
	BackFees(tx *Transaction) []int64

	parseAttachment(r *io.BinReader) (Attachment, error)
	parseAttachmentJSON(data map[string]any) (Attachment, error)
	validateAttachment(tx *Transaction) error
	applyAttachmentUnconfirmed(tx *Transaction, sender Account) bool
	undoAttachmentUnconfirmed(tx *Transaction, sender Account)
	applyAttachment(tx *Transaction, sender, recipient Account)
	isBlockDuplicate(tx *Transaction, duplicates Duplicates) bool
	isDuplicate(tx *Transaction, duplicates Duplicates) bool
	isUnconfirmedDuplicate(tx *Transaction, duplicates Duplicates) bool
}

// Duplicates tracks per-block duplicate budgets, keyed by the transaction
// type owning the budget and a type-specific string key.
type Duplicates map[TxType]map[string]int

// IsDuplicateKey claims one slot of the budget for the given key and reports
// whether the budget was already exhausted. The budget value is owned by the
// type handler.
func IsDuplicateKey(uniqueType TxType, key string, duplicates Duplicates, maxCount int) bool {
	typeDuplicates := duplicates[uniqueType]
	if typeDuplicates == nil {
		typeDuplicates = make(map[string]int)
		duplicates[uniqueType] = typeDuplicates
	}
	count, seen := typeDuplicates[key]
	if !seen {
		typeDuplicates[key] = 0
		return false
	}
	if count < maxCount {
		typeDuplicates[key] = count + 1
		return false
	}
	return true
}

// baseTxType provides the defaults shared by all type handlers.
type baseTxType struct{}

func (baseTxType) BaselineFee(*Transaction) Fee {
	return ConstantFee(config.OneQBR)
}

func (baseTxType) BackFees(*Transaction) []int64 {
	return nil
}

func (baseTxType) applyAttachmentUnconfirmed(*Transaction, Account) bool {
	return true
}

func (baseTxType) undoAttachmentUnconfirmed(*Transaction, Account) {}

func (baseTxType) isBlockDuplicate(*Transaction, Duplicates) bool {
	return false
}

func (baseTxType) isDuplicate(*Transaction, Duplicates) bool {
	return false
}

func (baseTxType) isUnconfirmedDuplicate(*Transaction, Duplicates) bool {
	return false
}

var registeredTypes = map[[2]byte]TxType{}

func registerType(t TxType) TxType {
	registeredTypes[[2]byte{t.Type(), t.Subtype()}] = t
	return t
}

// FindType resolves a type handler by its wire codes; nil when unknown.
func FindType(typ, subtype byte) TxType {
	return registeredTypes[[2]byte{typ, subtype}]
}

// Registered transaction types.
var (
	OrdinaryPayment  = registerType(&ordinaryPayment{})
	ArbitraryMessage = registerType(&arbitraryMessage{})
	AccountInfo      = registerType(&accountInfo{})
)

// ordinaryPayment is the plain value transfer (0, 0).
type ordinaryPayment struct {
	baseTxType
}

func (t *ordinaryPayment) Type() byte               { return TypePayment }
func (t *ordinaryPayment) Subtype() byte            { return SubtypePaymentOrdinary }
func (t *ordinaryPayment) Name() string             { return "OrdinaryPayment" }
func (t *ordinaryPayment) CanHaveRecipient() bool   { return true }
func (t *ordinaryPayment) MustHaveRecipient() bool  { return true }
func (t *ordinaryPayment) LedgerEvent() LedgerEvent { return LedgerEventOrdinaryPayment }

func (t *ordinaryPayment) parseAttachment(*io.BinReader) (Attachment, error) {
	return newEmptyAttachment(t), nil
}

func (t *ordinaryPayment) parseAttachmentJSON(map[string]any) (Attachment, error) {
	return newEmptyAttachment(t), nil
}

func (t *ordinaryPayment) validateAttachment(tx *Transaction) error {
	if tx.amountNQT <= 0 || tx.amountNQT >= config.MaxBalanceQNT {
		return notValidf("invalid ordinary payment amount %d", tx.amountNQT)
	}
	return nil
}

func (t *ordinaryPayment) applyAttachment(*Transaction, Account, Account) {}

// arbitraryMessage carries no value, only message appendages (1, 0).
type arbitraryMessage struct {
	baseTxType
}

func (t *arbitraryMessage) Type() byte               { return TypeMessaging }
func (t *arbitraryMessage) Subtype() byte            { return SubtypeMessagingArbitrary }
func (t *arbitraryMessage) Name() string             { return "ArbitraryMessage" }
func (t *arbitraryMessage) CanHaveRecipient() bool   { return true }
func (t *arbitraryMessage) MustHaveRecipient() bool  { return false }
func (t *arbitraryMessage) LedgerEvent() LedgerEvent { return LedgerEventArbitraryMessage }

func (t *arbitraryMessage) parseAttachment(*io.BinReader) (Attachment, error) {
	return newEmptyAttachment(t), nil
}

func (t *arbitraryMessage) parseAttachmentJSON(map[string]any) (Attachment, error) {
	return newEmptyAttachment(t), nil
}

func (t *arbitraryMessage) validateAttachment(tx *Transaction) error {
	if tx.amountNQT != 0 {
		return notValidf("invalid arbitrary message: amount %d is not zero", tx.amountNQT)
	}
	if tx.message == nil && tx.encryptedMessage == nil &&
		tx.prunablePlainMessage == nil && tx.prunableEncryptedMessage == nil {
		return notValidf("arbitrary message transaction carries no message")
	}
	return nil
}

func (t *arbitraryMessage) applyAttachment(*Transaction, Account, Account) {}
