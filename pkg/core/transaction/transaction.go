package transaction

import (
	uatomic "go.uber.org/atomic"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/crypto"
)

// Transaction is a sealed value transfer. Instances are immutable after
// build and freely shareable across goroutines: the only mutable fields are
// the block-attachment ones, touched by the single block-applier goroutine,
// and the lazily derived identity fields, which are published atomically and
// tolerate racing first-callers computing identical values.
type Transaction struct {
	ctx *Context

	version                       byte
	txType                        TxType
	timestamp                     int32
	deadline                      int16
	recipientID                   uint64
	amountNQT                     int64
	feeNQT                        int64
	referencedTransactionFullHash []byte
	signature                     []byte
	ecBlockHeight                 int32
	ecBlockID                     uint64

	attachment               Attachment
	message                  *Message
	encryptedMessage         *EncryptedMessage
	publicKeyAnnouncement    *PublicKeyAnnouncement
	encryptToSelfMessage     *EncryptToSelfMessage
	phasing                  *Phasing
	prunablePlainMessage     *PrunablePlainMessage
	prunableEncryptedMessage *PrunableEncryptedMessage

	appendages     []Appendix
	appendagesSize int

	// Block attachment state.
	height         uatomic.Int32
	blockID        uatomic.Uint64
	blockTimestamp uatomic.Int32
	index          uatomic.Int32

	// Lazily derived, memoized.
	senderPublicKey   uatomic.Value
	senderID          uatomic.Uint64
	id                uatomic.Uint64
	stringID          uatomic.String
	fullHash          uatomic.Value
	wire              uatomic.Value
	hasValidSignature uatomic.Bool
}

// Version returns the transaction version.
func (t *Transaction) Version() byte {
	return t.version
}

// Type returns the transaction type handler.
func (t *Transaction) Type() TxType {
	return t.txType
}

// Timestamp returns the creation time in seconds since the protocol epoch.
func (t *Transaction) Timestamp() int32 {
	return t.timestamp
}

// Deadline returns the validity window in minutes.
func (t *Transaction) Deadline() int16 {
	return t.deadline
}

// Expiration returns the time the transaction expires at.
func (t *Transaction) Expiration() int32 {
	return t.timestamp + int32(t.deadline)*60
}

// SenderPublicKey returns the sender's public key, fetching it from the
// account ledger for transactions loaded without one.
func (t *Transaction) SenderPublicKey() []byte {
	if pk, ok := t.senderPublicKey.Load().([]byte); ok && pk != nil {
		return pk
	}
	if t.ctx.Ledger == nil {
		return nil
	}
	pk := t.ctx.Ledger.PublicKey(t.senderID.Load())
	if pk != nil {
		t.senderPublicKey.Store(pk)
	}
	return pk
}

// SenderID returns the sender account id.
func (t *Transaction) SenderID() uint64 {
	if id := t.senderID.Load(); id != 0 {
		return id
	}
	id := crypto.AccountID(t.SenderPublicKey())
	t.senderID.Store(id)
	return id
}

// SenderStringID returns the sender account id as an unsigned decimal
// string.
func (t *Transaction) SenderStringID() string {
	return unsignedDecimal(t.SenderID())
}

// RecipientID returns the recipient account id, zero when the type has no
// recipient.
func (t *Transaction) RecipientID() uint64 {
	return t.recipientID
}

// AmountNQT returns the transferred amount in NQT.
func (t *Transaction) AmountNQT() int64 {
	return t.amountNQT
}

// FeeNQT returns the fee in NQT.
func (t *Transaction) FeeNQT() int64 {
	return t.feeNQT
}

// ReferencedTransactionFullHash returns the referenced transaction hash or
// nil.
func (t *Transaction) ReferencedTransactionFullHash() []byte {
	return t.referencedTransactionFullHash
}

// Signature returns the 64-byte signature or nil for an unsigned
// transaction.
func (t *Transaction) Signature() []byte {
	return t.signature
}

// ECBlockHeight returns the economic cluster block height.
func (t *Transaction) ECBlockHeight() int32 {
	return t.ecBlockHeight
}

// ECBlockID returns the economic cluster block id.
func (t *Transaction) ECBlockID() uint64 {
	return t.ecBlockID
}

// Attachment returns the type-specific payload.
func (t *Transaction) Attachment() Attachment {
	return t.attachment
}

// Appendages returns the attachment and every appendage in canonical order,
// rehydrating prunable payloads first.
func (t *Transaction) Appendages() []Appendix {
	return t.AppendagesExpired(false)
}

// AppendagesExpired is Appendages with control over rehydration of payloads
// whose retention period has passed.
func (t *Transaction) AppendagesExpired(includeExpiredPrunable bool) []Appendix {
	for _, a := range t.appendages {
		if p, ok := a.(Prunable); ok {
			p.loadPrunable(t, includeExpiredPrunable)
		}
	}
	return t.appendages
}

// AppendagesWhere returns the appendages accepted by the filter, loading
// prunable payloads of the accepted ones.
func (t *Transaction) AppendagesWhere(filter func(Appendix) bool, includeExpiredPrunable bool) []Appendix {
	var result []Appendix
	for _, a := range t.appendages {
		if filter(a) {
			if p, ok := a.(Prunable); ok {
				p.loadPrunable(t, includeExpiredPrunable)
			}
			result = append(result, a)
		}
	}
	return result
}

// Message returns the plain message appendage or nil.
func (t *Transaction) Message() *Message {
	return t.message
}

// EncryptedMessage returns the encrypted message appendage or nil.
func (t *Transaction) EncryptedMessage() *EncryptedMessage {
	return t.encryptedMessage
}

// EncryptToSelfMessage returns the encrypt-to-self appendage or nil.
func (t *Transaction) EncryptToSelfMessage() *EncryptToSelfMessage {
	return t.encryptToSelfMessage
}

// PublicKeyAnnouncement returns the key announcement appendage or nil.
func (t *Transaction) PublicKeyAnnouncement() *PublicKeyAnnouncement {
	return t.publicKeyAnnouncement
}

// Phasing returns the phasing appendage or nil.
func (t *Transaction) Phasing() *Phasing {
	return t.phasing
}

// PrunablePlainMessage returns the prunable plain message appendage or nil,
// rehydrating its payload when possible.
func (t *Transaction) PrunablePlainMessage() *PrunablePlainMessage {
	if t.prunablePlainMessage != nil {
		t.prunablePlainMessage.loadPrunable(t, false)
	}
	return t.prunablePlainMessage
}

// PrunableEncryptedMessage returns the prunable encrypted message appendage
// or nil, rehydrating its payload when possible.
func (t *Transaction) PrunableEncryptedMessage() *PrunableEncryptedMessage {
	if t.prunableEncryptedMessage != nil {
		t.prunableEncryptedMessage.loadPrunable(t, false)
	}
	return t.prunableEncryptedMessage
}

// HasPrunablePlainMessage reports appendage presence without rehydration.
func (t *Transaction) HasPrunablePlainMessage() bool {
	return t.prunablePlainMessage != nil
}

// HasPrunableEncryptedMessage reports appendage presence without
// rehydration.
func (t *Transaction) HasPrunableEncryptedMessage() bool {
	return t.prunableEncryptedMessage != nil
}

// ID returns the transaction id: the leading 8 bytes of the full hash.
// It fails with ErrNotSigned on an unsigned transaction.
func (t *Transaction) ID() (uint64, error) {
	if id := t.id.Load(); id != 0 {
		return id, nil
	}
	id, _, err := t.deriveIdentity()
	return id, err
}

// deriveIdentity computes and publishes the full hash and id of a signed
// transaction. Racing callers compute identical values.
func (t *Transaction) deriveIdentity() (uint64, []byte, error) {
	if t.signature == nil {
		return 0, nil, ErrNotSigned
	}
	data, err := t.UnsignedBytes()
	if err != nil {
		return 0, nil, err
	}
	signatureHash := crypto.Sha256(t.signature)
	digest := crypto.NewSha256()
	digest.Write(data)
	digest.Write(signatureHash)
	fullHash := digest.Sum(nil)
	idValue := leU64(fullHash[:8])
	t.fullHash.Store(fullHash)
	t.stringID.Store(unsignedDecimal(idValue))
	t.id.Store(idValue)
	return idValue, fullHash, nil
}

// StringID returns the id as an unsigned decimal string.
func (t *Transaction) StringID() (string, error) {
	if s := t.stringID.Load(); s != "" {
		return s, nil
	}
	id, err := t.ID()
	if err != nil {
		return "", err
	}
	s := t.stringID.Load()
	if s == "" {
		s = unsignedDecimal(id)
		t.stringID.Store(s)
	}
	return s, nil
}

// FullHash returns the 32-byte hash uniquely identifying the signed
// transaction. It fails with ErrNotSigned on an unsigned transaction.
func (t *Transaction) FullHash() ([]byte, error) {
	if h, ok := t.fullHash.Load().([]byte); ok {
		return h, nil
	}
	_, fullHash, err := t.deriveIdentity()
	return fullHash, err
}

// Height returns the inclusion height; math.MaxInt32 when unconfirmed.
func (t *Transaction) Height() int32 {
	return t.height.Load()
}

// BlockID returns the including block id or zero.
func (t *Transaction) BlockID() uint64 {
	return t.blockID.Load()
}

// BlockTimestamp returns the including block timestamp or -1.
func (t *Transaction) BlockTimestamp() int32 {
	return t.blockTimestamp.Load()
}

// Index returns the position within the including block. It fails with
// ErrIndexNotSet when the transaction is not in a block.
func (t *Transaction) Index() (int16, error) {
	i := t.index.Load()
	if i == -1 {
		return 0, ErrIndexNotSet
	}
	return int16(i), nil
}

// SetIndex records the position within the including block.
func (t *Transaction) SetIndex(index int) {
	t.index.Store(int32(int16(index)))
}

// SetBlock attaches the transaction to a block.
func (t *Transaction) SetBlock(blockID uint64, height, blockTimestamp int32) {
	t.blockID.Store(blockID)
	t.height.Store(height)
	t.blockTimestamp.Store(blockTimestamp)
}

// UnsetBlock detaches the transaction on reorg. The height is kept: popped
// transactions get priority when sorted for reinclusion.
func (t *Transaction) UnsetBlock() {
	t.blockID.Store(0)
	t.blockTimestamp.Store(-1)
	t.index.Store(-1)
}

// Equal reports whether both transactions have the same id. Unsigned
// transactions are never equal to anything.
func (t *Transaction) Equal(other *Transaction) bool {
	if other == nil {
		return false
	}
	a, err1 := t.ID()
	b, err2 := other.ID()
	return err1 == nil && err2 == nil && a == b
}

// Size returns the wire size in bytes.
func (t *Transaction) Size() int {
	return headerSize(t.version) + t.appendagesSize
}

// FullSize returns the wire size plus out-of-band prunable payloads.
func (t *Transaction) FullSize() int {
	fullSize := t.Size() - t.appendagesSize
	for _, appendage := range t.Appendages() {
		fullSize += appendage.FullSize(t)
	}
	return fullSize
}

// BackFees returns the fee shares owed to previous block generators.
func (t *Transaction) BackFees() []int64 {
	return t.txType.BackFees(t)
}

func (t *Transaction) attachmentIsPhased() bool {
	return t.phasing != nil
}

// VerifySignature checks the Curve25519 signature over the zeroed-signature
// bytes and binds the sender public key to the sender account.
func (t *Transaction) VerifySignature() bool {
	return t.checkSignature() && t.ctx.Ledger.SetOrVerify(t.SenderID(), t.SenderPublicKey())
}

func (t *Transaction) checkSignature() bool {
	if t.hasValidSignature.Load() {
		return true
	}
	if t.signature == nil {
		return false
	}
	unsigned, err := t.UnsignedBytes()
	if err != nil {
		return false
	}
	ok := crypto.Verify(t.signature, unsigned, t.SenderPublicKey())
	if ok {
		t.hasValidSignature.Store(true)
	}
	return ok
}

// Validate checks the transaction against the protocol rules. It returns
// nil, or an error wrapping ErrNotValid (permanent) or ErrNotCurrentlyValid
// (recoverable). When the transaction is phased, signed and its poll
// already exists, appendage validation runs in at-finish mode and the
// chain-state checks are skipped.
func (t *Transaction) Validate() error {
	if t.timestamp == 0 {
		if t.deadline != 0 || t.feeNQT != 0 {
			return notValidf("invalid genesis parameters: deadline %d, fee %d", t.deadline, t.feeNQT)
		}
	} else {
		if t.deadline < 1 {
			return notValidf("invalid deadline %d", t.deadline)
		}
		if t.feeNQT <= 0 {
			return notValidf("invalid fee %d", t.feeNQT)
		}
	}
	if t.feeNQT > config.MaxBalanceQNT {
		return notValidf("fee %d exceeds maximum balance", t.feeNQT)
	}
	if t.amountNQT < 0 || t.amountNQT > config.MaxBalanceQNT {
		return notValidf("invalid amount %d", t.amountNQT)
	}
	if t.referencedTransactionFullHash != nil && len(t.referencedTransactionFullHash) != 32 {
		return notValidf("invalid referenced transaction full hash length %d", len(t.referencedTransactionFullHash))
	}
	if t.attachment == nil || t.attachment.TransactionType() != t.txType {
		return notValidf("invalid attachment for transaction of type %s", t.txType.Name())
	}
	if !t.txType.CanHaveRecipient() && (t.recipientID != 0 || t.amountNQT != 0) {
		return notValidf("transactions of this type must have recipient == 0, amount == 0")
	}
	if t.txType.MustHaveRecipient() && t.recipientID == 0 {
		return notValidf("transactions of this type must have a valid recipient")
	}

	validatingAtFinish := t.phasing != nil && t.signature != nil && func() bool {
		id, err := t.ID()
		return err == nil && t.ctx.pollExists(id)
	}()
	for _, appendage := range t.appendages {
		if p, ok := appendage.(Prunable); ok {
			p.loadPrunable(t, false)
		}
		if !appendage.verifyVersion(t.version) {
			return notValidf("invalid %s version %d", appendage.Name(), appendage.Version())
		}
		var err error
		if validatingAtFinish {
			err = appendage.validateAtFinish(t)
		} else {
			err = appendage.validate(t)
		}
		if err != nil {
			return err
		}
	}

	if fullSize := t.FullSize(); fullSize > config.MaxPayloadLength {
		return notValidf("transaction size %d exceeds maximum payload size", fullSize)
	}
	if validatingAtFinish {
		return nil
	}

	blockchainHeight := t.ctx.height()
	if minimumFeeNQT := t.minimumFeeNQT(blockchainHeight); t.feeNQT < minimumFeeNQT {
		return notCurrentlyValidf("transaction fee %d less than minimum fee %d at height %d",
			t.feeNQT, minimumFeeNQT, blockchainHeight)
	}
	if t.ecBlockID != 0 {
		if blockchainHeight < t.ecBlockHeight {
			return notCurrentlyValidf("ecBlockHeight %d exceeds blockchain height %d", t.ecBlockHeight, blockchainHeight)
		}
		if t.ctx.BlockDb == nil || t.ctx.BlockDb.FindBlockIDAtHeight(t.ecBlockHeight) != t.ecBlockID {
			return notCurrentlyValidf("ecBlockHeight %d does not match ecBlockId %s, transaction was generated on a fork",
				t.ecBlockHeight, unsignedDecimal(t.ecBlockID))
		}
	}
	return t.ctx.checkRestrictions(t)
}

func (t *Transaction) minimumFeeNQT(blockchainHeight int32) int64 {
	totalFee := int64(0)
	for _, appendage := range t.appendages {
		if p, ok := appendage.(Prunable); ok {
			p.loadPrunable(t, false)
		}
		if blockchainHeight < appendage.baselineFeeHeight() {
			// Minimum fees cannot be computed before the baseline block of
			// any one appendage.
			return 0
		}
		var fee Fee
		if blockchainHeight >= appendage.nextFeeHeight() {
			fee = appendage.nextFee(t)
		} else {
			fee = appendage.baselineFee(t)
		}
		totalFee += fee.Fee(t, appendage)
	}
	if t.referencedTransactionFullHash != nil {
		totalFee += config.OneQBR
	}
	return totalFee
}

// ApplyUnconfirmed reserves the sender balance for the transaction. It
// returns false on a double spend or an unknown sender account.
func (t *Transaction) ApplyUnconfirmed() bool {
	sender := t.ctx.Ledger.Account(t.SenderID())
	if sender == nil {
		return false
	}
	id, err := t.ID()
	if err != nil {
		return false
	}
	amount := t.amountNQT
	fee := t.feeNQT
	if t.referencedTransactionFullHash != nil {
		fee += config.UnconfirmedPoolDepositQNT
	}
	if sender.UnconfirmedBalanceNQT() < amount+fee {
		return false
	}
	event := t.txType.LedgerEvent()
	sender.AddToUnconfirmedBalanceNQT(event, id, -amount, -fee)
	if !t.txType.applyAttachmentUnconfirmed(t, sender) {
		sender.AddToUnconfirmedBalanceNQT(event, id, amount, fee)
		return false
	}
	return true
}

// UndoUnconfirmed releases the reservation made by ApplyUnconfirmed.
func (t *Transaction) UndoUnconfirmed() {
	sender := t.ctx.Ledger.Account(t.SenderID())
	if sender == nil {
		return
	}
	id, _ := t.ID()
	t.txType.undoAttachmentUnconfirmed(t, sender)
	fee := t.feeNQT
	if t.referencedTransactionFullHash != nil {
		fee += config.UnconfirmedPoolDepositQNT
	}
	sender.AddToUnconfirmedBalanceNQT(t.txType.LedgerEvent(), id, t.amountNQT, fee)
}

// Apply performs the confirmed state mutation at block inclusion. For a
// phased transaction only the fee is charged; attachment effects wait for
// the poll resolution.
func (t *Transaction) Apply() {
	sender := t.ctx.Ledger.Account(t.SenderID())
	sender.ApplyPublicKey(t.SenderPublicKey())
	var recipient Account
	if t.recipientID != 0 {
		recipient = t.ctx.Ledger.Account(t.recipientID)
		if recipient == nil {
			recipient = t.ctx.Ledger.AddOrGetAccount(t.recipientID)
		}
	}
	id, _ := t.ID()
	if t.referencedTransactionFullHash != nil {
		sender.AddToUnconfirmedBalanceNQT(t.txType.LedgerEvent(), id, 0, config.UnconfirmedPoolDepositQNT)
	}
	if t.attachmentIsPhased() {
		sender.AddToBalanceNQT(t.txType.LedgerEvent(), id, 0, -t.feeNQT)
	}
	for _, appendage := range t.appendages {
		if !isPhased(appendage, t) {
			if p, ok := appendage.(Prunable); ok {
				p.loadPrunable(t, false)
			}
			appendage.apply(t, sender, recipient)
		}
	}
}

// ApplyAtFinish applies the deferred appendages of a phased transaction
// once its poll has resolved in approval.
func (t *Transaction) ApplyAtFinish() {
	sender := t.ctx.Ledger.Account(t.SenderID())
	var recipient Account
	if t.recipientID != 0 {
		recipient = t.ctx.Ledger.AddOrGetAccount(t.recipientID)
	}
	for _, appendage := range t.appendages {
		if isPhased(appendage, t) {
			if p, ok := appendage.(Prunable); ok {
				p.loadPrunable(t, false)
			}
			appendage.apply(t, sender, recipient)
		}
	}
}

// AttachmentIsDuplicate claims the transaction's duplicate budget slots. At
// acceptance height all transactions claim block-duplicate slots; phased
// transactions claim their execution slots at finish height instead.
func (t *Transaction) AttachmentIsDuplicate(duplicates Duplicates, atAcceptanceHeight bool) bool {
	if !t.attachmentIsPhased() && !atAcceptanceHeight {
		// A transaction without phasing claims no slots after its
		// acceptance height.
		return false
	}
	if atAcceptanceHeight {
		if t.ctx.Restrictions != nil && t.ctx.Restrictions.IsBlockDuplicate(t, duplicates) {
			return true
		}
		if t.txType.isBlockDuplicate(t, duplicates) {
			return true
		}
		if t.attachmentIsPhased() {
			return false
		}
	}
	return t.txType.isDuplicate(t, duplicates)
}

// IsUnconfirmedDuplicate claims the unconfirmed-pool duplicate budget.
func (t *Transaction) IsUnconfirmedDuplicate(duplicates Duplicates) bool {
	return t.txType.isUnconfirmedDuplicate(t, duplicates)
}

func headerSize(version byte) int {
	if version > 0 {
		return config.MinTransactionSize
	}
	return config.MinTransactionSize - 16
}
