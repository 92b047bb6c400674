package transaction

import (
	"bytes"
	"math"

	"github.com/H01mes/qoober-node-1/pkg/crypto"
)

// Builder accumulates transaction fields and produces an immutable
// Transaction. It is not safe for concurrent use; the built transaction is.
type Builder struct {
	ctx *Context

	version         byte
	deadline        int16
	senderPublicKey []byte
	amountNQT       int64
	feeNQT          int64
	txType          TxType
	attachment      Attachment

	recipientID                   uint64
	referencedTransactionFullHash []byte
	signature                     []byte
	message                       *Message
	encryptedMessage              *EncryptedMessage
	encryptToSelfMessage          *EncryptToSelfMessage
	publicKeyAnnouncement         *PublicKeyAnnouncement
	phasing                       *Phasing
	prunablePlainMessage          *PrunablePlainMessage
	prunableEncryptedMessage      *PrunableEncryptedMessage

	blockID        uint64
	height         int32
	id             uint64
	senderID       uint64
	timestamp      int32
	blockTimestamp int32
	fullHash       []byte
	ecBlockSet     bool
	ecBlockHeight  int32
	ecBlockID      uint64
	index          int32
	genesis        bool
}

// NewBuilder starts a transaction of the attachment's type. Timestamp and
// economic cluster block default to the current chain state at build time.
func (c *Context) NewBuilder(version byte, senderPublicKey []byte, amountNQT, feeNQT int64,
	deadline int16, attachment Attachment) *Builder {
	return &Builder{
		ctx:             c,
		version:         version,
		deadline:        deadline,
		senderPublicKey: senderPublicKey,
		amountNQT:       amountNQT,
		feeNQT:          feeNQT,
		attachment:      attachment,
		txType:          attachment.TransactionType(),
		timestamp:       math.MaxInt32,
		height:          math.MaxInt32,
		blockTimestamp:  -1,
		index:           -1,
	}
}

// RecipientID sets the recipient account.
func (b *Builder) RecipientID(recipientID uint64) *Builder {
	b.recipientID = recipientID
	return b
}

// ReferencedTransactionFullHash chains the transaction to an earlier one.
func (b *Builder) ReferencedTransactionFullHash(fullHash []byte) *Builder {
	b.referencedTransactionFullHash = fullHash
	return b
}

// Message attaches a plain message appendage.
func (b *Builder) Message(m *Message) *Builder {
	b.message = m
	return b
}

// EncryptedMessage attaches an encrypted message appendage.
func (b *Builder) EncryptedMessage(m *EncryptedMessage) *Builder {
	b.encryptedMessage = m
	return b
}

// EncryptToSelfMessage attaches an encrypt-to-self appendage.
func (b *Builder) EncryptToSelfMessage(m *EncryptToSelfMessage) *Builder {
	b.encryptToSelfMessage = m
	return b
}

// PublicKeyAnnouncement attaches a key announcement appendage.
func (b *Builder) PublicKeyAnnouncement(a *PublicKeyAnnouncement) *Builder {
	b.publicKeyAnnouncement = a
	return b
}

// Phasing attaches a phasing appendage, making the transaction
// conditionally executed.
func (b *Builder) Phasing(p *Phasing) *Builder {
	b.phasing = p
	return b
}

// PrunablePlainMessage attaches a prunable plain message appendage.
func (b *Builder) PrunablePlainMessage(m *PrunablePlainMessage) *Builder {
	b.prunablePlainMessage = m
	return b
}

// PrunableEncryptedMessage attaches a prunable encrypted message appendage.
func (b *Builder) PrunableEncryptedMessage(m *PrunableEncryptedMessage) *Builder {
	b.prunableEncryptedMessage = m
	return b
}

// Timestamp overrides the creation time.
func (b *Builder) Timestamp(timestamp int32) *Builder {
	b.timestamp = timestamp
	return b
}

// ECBlockHeight pins the economic cluster block height.
func (b *Builder) ECBlockHeight(height int32) *Builder {
	b.ecBlockHeight = height
	b.ecBlockSet = true
	return b
}

// ECBlockID pins the economic cluster block id.
func (b *Builder) ECBlockID(blockID uint64) *Builder {
	b.ecBlockID = blockID
	b.ecBlockSet = true
	return b
}

// Genesis marks the transaction as part of the genesis block: the fee is
// taken verbatim.
func (b *Builder) Genesis() *Builder {
	b.genesis = true
	return b
}

func (b *Builder) withSignature(signature []byte) *Builder {
	b.signature = signature
	return b
}

func (b *Builder) withSenderID(senderID uint64) *Builder {
	b.senderID = senderID
	return b
}

func (b *Builder) withBlock(blockID uint64, height, blockTimestamp int32) *Builder {
	b.blockID = blockID
	b.height = height
	b.blockTimestamp = blockTimestamp
	return b
}

func (b *Builder) withID(id uint64, fullHash []byte) *Builder {
	b.id = id
	b.fullHash = fullHash
	return b
}

func (b *Builder) withIndex(index int16) *Builder {
	b.index = int32(index)
	return b
}

// Build produces the transaction without signing it. A signature supplied
// during decoding is adopted as is.
func (b *Builder) Build() (*Transaction, error) {
	return b.build("", false)
}

// Sign produces the transaction sealed with the given secret phrase.
// Signing an already signed transaction fails with ErrNotValid.
func (b *Builder) Sign(secretPhrase string) (*Transaction, error) {
	return b.build(secretPhrase, true)
}

func (b *Builder) build(secretPhrase string, signing bool) (*Transaction, error) {
	if b.timestamp == math.MaxInt32 {
		b.timestamp = b.ctx.time()
	}
	if !b.ecBlockSet && b.ctx.Chain != nil {
		b.ecBlockHeight, b.ecBlockID = b.ctx.Chain.ECBlock(b.timestamp)
		b.ecBlockSet = true
	}

	t := &Transaction{
		ctx:                           b.ctx,
		version:                       b.version,
		txType:                        b.txType,
		timestamp:                     b.timestamp,
		deadline:                      b.deadline,
		recipientID:                   b.recipientID,
		amountNQT:                     b.amountNQT,
		referencedTransactionFullHash: b.referencedTransactionFullHash,
		ecBlockHeight:                 b.ecBlockHeight,
		ecBlockID:                     b.ecBlockID,
		attachment:                    b.attachment,
		message:                       b.message,
		encryptedMessage:              b.encryptedMessage,
		publicKeyAnnouncement:         b.publicKeyAnnouncement,
		encryptToSelfMessage:          b.encryptToSelfMessage,
		phasing:                       b.phasing,
		prunablePlainMessage:          b.prunablePlainMessage,
		prunableEncryptedMessage:      b.prunableEncryptedMessage,
	}
	t.height.Store(b.height)
	t.blockID.Store(b.blockID)
	t.blockTimestamp.Store(b.blockTimestamp)
	t.index.Store(b.index)
	t.senderID.Store(b.senderID)
	if b.senderPublicKey != nil {
		t.senderPublicKey.Store(b.senderPublicKey)
	}
	if b.id != 0 {
		t.id.Store(b.id)
		t.stringID.Store(unsignedDecimal(b.id))
	}
	if b.fullHash != nil {
		t.fullHash.Store(b.fullHash)
	}

	if t.attachment != nil {
		t.appendages = append(t.appendages, t.attachment)
	}
	for _, a := range []Appendix{wrapNil(t.message), wrapNil(t.encryptedMessage),
		wrapNil(t.publicKeyAnnouncement), wrapNil(t.encryptToSelfMessage), wrapNil(t.phasing),
		wrapNil(t.prunablePlainMessage), wrapNil(t.prunableEncryptedMessage)} {
		if a != nil {
			t.appendages = append(t.appendages, a)
		}
	}
	for _, appendage := range t.appendages {
		if e, ok := appendage.(Encryptable); ok && signing {
			if err := e.Encrypt(secretPhrase); err != nil {
				return nil, err
			}
		}
		t.appendagesSize += appendage.Size(t.version)
	}

	switch {
	case b.genesis:
		t.feeNQT = b.feeNQT
	case b.feeNQT <= 0 || (b.ctx.Config.CorrectInvalidFees && b.signature == nil):
		effectiveHeight := b.height
		if effectiveHeight == math.MaxInt32 {
			effectiveHeight = b.ctx.height()
		}
		minFee := t.minimumFeeNQT(effectiveHeight)
		t.feeNQT = minFee
		if b.feeNQT > minFee {
			t.feeNQT = b.feeNQT
		}
	default:
		t.feeNQT = b.feeNQT
	}

	switch {
	case b.signature != nil && signing:
		return nil, notValidf("transaction is already signed")
	case b.signature != nil:
		t.signature = b.signature
	case signing:
		publicKey := crypto.PublicKey(secretPhrase)
		if b.senderPublicKey != nil && !bytes.Equal(b.senderPublicKey, publicKey) {
			return nil, notValidf("secret phrase doesn't match transaction sender public key")
		}
		if b.senderPublicKey == nil {
			t.senderPublicKey.Store(publicKey)
		}
		unsigned, err := encodeBytes(t)
		if err != nil {
			return nil, err
		}
		t.signature = crypto.Sign(unsigned, secretPhrase)
	}
	return t, nil
}

// wrapNil turns a typed nil appendage pointer into an untyped nil.
func wrapNil[T any, PT interface {
	*T
	Appendix
}](p PT) Appendix {
	if p == nil {
		return nil
	}
	return p
}
