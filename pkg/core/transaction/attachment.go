package transaction

import (
	ojson "github.com/nspcc-dev/go-ordered-json"

	"github.com/H01mes/qoober-node-1/pkg/io"
)

// Attachment is the mandatory type-specific payload of a transaction. It is
// always the first appendage on the wire.
type Attachment interface {
	Appendix
	TransactionType() TxType
}

// baseAttachment routes the envelope-level behavior of an attachment to its
// transaction type handler.
type baseAttachment struct {
	baseAppendix
	txType TxType
}

func (a baseAttachment) TransactionType() TxType {
	return a.txType
}

func (a baseAttachment) Name() string {
	return a.txType.Name()
}

func (a baseAttachment) isPhasable() bool {
	return true
}

func (a baseAttachment) baselineFee(tx *Transaction) Fee {
	return a.txType.BaselineFee(tx)
}

func (a baseAttachment) nextFee(tx *Transaction) Fee {
	return a.txType.BaselineFee(tx)
}

func (a baseAttachment) validate(tx *Transaction) error {
	return a.txType.validateAttachment(tx)
}

func (a baseAttachment) apply(tx *Transaction, sender, recipient Account) {
	// Balance movement of the envelope happens here; fee handling for
	// phased transactions is done by Transaction.Apply before this point.
	amount := tx.amountNQT
	fee := tx.feeNQT
	if tx.attachmentIsPhased() {
		fee = 0
	}
	id, _ := tx.ID()
	sender.AddToBalanceNQT(a.txType.LedgerEvent(), id, -amount, -fee)
	if recipient != nil {
		recipient.AddToBalanceAndUnconfirmedBalanceNQT(a.txType.LedgerEvent(), id, amount)
	}
	a.txType.applyAttachment(tx, sender, recipient)
}

// EmptyAttachment is the zero-size attachment of transaction types whose
// whole payload is the envelope itself.
type EmptyAttachment struct {
	baseAttachment
}

func newEmptyAttachment(t TxType) *EmptyAttachment {
	return &EmptyAttachment{baseAttachment{txType: t}}
}

// NewOrdinaryPaymentAttachment returns the attachment of a plain value
// transfer.
func NewOrdinaryPaymentAttachment() *EmptyAttachment {
	return newEmptyAttachment(OrdinaryPayment)
}

// NewArbitraryMessageAttachment returns the attachment of a message-only
// transaction; the payload travels in the message appendages.
func NewArbitraryMessageAttachment() *EmptyAttachment {
	return newEmptyAttachment(ArbitraryMessage)
}

// Size implements the Appendix interface. An empty attachment writes no
// bytes at all, version included.
func (a *EmptyAttachment) Size(byte) int {
	return 0
}

// FullSize implements the Appendix interface.
func (a *EmptyAttachment) FullSize(*Transaction) int {
	return 0
}

func (a *EmptyAttachment) putBytes(*io.BinWriter, byte) {}

func (a *EmptyAttachment) putJSON(*Transaction, *ojson.OrderedObject) {}

func (a *EmptyAttachment) verifyVersion(byte) bool {
	return a.version == 0
}
