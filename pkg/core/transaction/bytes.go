package transaction

import (
	"bytes"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/io"
)

// signatureOffset is the position of the signature in the wire format.
const signatureOffset = 1 + 1 + 4 + 2 + 32 + 8 + 8 + 8 + 32

var (
	zeroHash           [32]byte
	zeroSignatureBytes [64]byte
)

// Bytes returns a copy of the canonical wire bytes.
func (t *Transaction) Bytes() ([]byte, error) {
	b, err := t.bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// UnsignedBytes returns the wire bytes with the signature field zeroed.
// Signing and id derivation both consume them.
func (t *Transaction) UnsignedBytes() ([]byte, error) {
	b, err := t.bytes()
	if err != nil {
		return nil, err
	}
	return zeroSignature(b), nil
}

func (t *Transaction) bytes() ([]byte, error) {
	if b, ok := t.wire.Load().([]byte); ok {
		return b, nil
	}
	b, err := encodeBytes(t)
	if err != nil {
		return nil, err
	}
	t.wire.Store(b)
	return b, nil
}

// zeroSignature returns a copy of data with the signature span zeroed.
func zeroSignature(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	copy(out[signatureOffset:signatureOffset+64], zeroSignatureBytes[:])
	return out
}

func (t *Transaction) flags() uint32 {
	var flags uint32
	if t.message != nil {
		flags |= flagMessage
	}
	if t.encryptedMessage != nil {
		flags |= flagEncryptedMessage
	}
	if t.publicKeyAnnouncement != nil {
		flags |= flagPublicKeyAnnouncement
	}
	if t.encryptToSelfMessage != nil {
		flags |= flagEncryptToSelfMessage
	}
	if t.phasing != nil {
		flags |= flagPhasing
	}
	if t.prunablePlainMessage != nil {
		flags |= flagPrunablePlainMessage
	}
	if t.prunableEncryptedMessage != nil {
		flags |= flagPrunableEncryptedMessage
	}
	return flags
}

func encodeBytes(t *Transaction) ([]byte, error) {
	senderPublicKey := t.SenderPublicKey()
	if len(senderPublicKey) != 32 {
		return nil, notValidf("missing or malformed sender public key")
	}
	w := io.NewBufBinWriter()
	w.WriteB(t.txType.Type())
	w.WriteB((t.version << 4) | t.txType.Subtype())
	w.WriteU32LE(uint32(t.timestamp))
	w.WriteU16LE(uint16(t.deadline))
	w.WriteBytes(senderPublicKey)
	if t.txType.CanHaveRecipient() {
		w.WriteU64LE(t.recipientID)
	} else {
		w.WriteU64LE(config.CreatorID)
	}
	w.WriteU64LE(uint64(t.amountNQT))
	w.WriteU64LE(uint64(t.feeNQT))
	if t.referencedTransactionFullHash != nil {
		w.WriteBytes(t.referencedTransactionFullHash)
	} else {
		w.WriteBytes(zeroHash[:])
	}
	if t.signature != nil {
		w.WriteBytes(t.signature)
	} else {
		w.WriteBytes(zeroSignatureBytes[:])
	}
	if t.version > 0 {
		w.WriteU32LE(t.flags())
		w.WriteU32LE(uint32(t.ecBlockHeight))
		w.WriteU64LE(t.ecBlockID)
	}
	for _, appendage := range t.appendages {
		appendage.putBytes(w.BinWriter, t.version)
	}
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// NewBuilderFromBytes parses the canonical wire format into a builder.
// Malformed input fails with ErrNotValid.
func (c *Context) NewBuilderFromBytes(data []byte) (*Builder, error) {
	rd := bytes.NewReader(data)
	r := io.NewBinReaderFromIO(rd)
	typ := r.ReadB()
	packed := r.ReadB()
	version := (packed & 0xF0) >> 4
	subtype := packed & 0x0F
	timestamp := int32(r.ReadU32LE())
	deadline := int16(r.ReadU16LE())
	senderPublicKey := make([]byte, 32)
	r.ReadBytes(senderPublicKey)
	recipientID := r.ReadU64LE()
	amountNQT := int64(r.ReadU64LE())
	feeNQT := int64(r.ReadU64LE())
	referencedTransactionFullHash := make([]byte, 32)
	r.ReadBytes(referencedTransactionFullHash)
	signature := make([]byte, 64)
	r.ReadBytes(signature)
	var flags uint32
	var ecBlockHeight int32
	var ecBlockID uint64
	if version > 0 {
		flags = r.ReadU32LE()
		ecBlockHeight = int32(r.ReadU32LE())
		ecBlockID = r.ReadU64LE()
	}
	if r.Err != nil {
		return nil, notValidf("cannot parse transaction bytes: %v", r.Err)
	}
	txType := FindType(typ, subtype)
	if txType == nil {
		return nil, notValidf("invalid transaction type: %d, %d", typ, subtype)
	}
	attachment, err := txType.parseAttachment(r)
	if err != nil {
		return nil, err
	}
	builder := c.NewBuilder(version, senderPublicKey, amountNQT, feeNQT, deadline, attachment).
		Timestamp(timestamp).
		ReferencedTransactionFullHash(nonZeroOrNil(referencedTransactionFullHash)).
		ECBlockHeight(ecBlockHeight).
		ECBlockID(ecBlockID).
		withSignature(nonZeroOrNil(signature))
	if txType.CanHaveRecipient() {
		builder.RecipientID(recipientID)
	}

	if flags&flagMessage != 0 || (version == 0 && txType == ArbitraryMessage) {
		m, err := parseMessage(r, version)
		if err != nil {
			return nil, err
		}
		builder.Message(m)
	}
	if flags&flagEncryptedMessage != 0 {
		m, err := parseEncryptedMessage(r, version)
		if err != nil {
			return nil, err
		}
		builder.EncryptedMessage(m)
	}
	if flags&flagPublicKeyAnnouncement != 0 {
		a, err := parsePublicKeyAnnouncement(r, version)
		if err != nil {
			return nil, err
		}
		builder.PublicKeyAnnouncement(a)
	}
	if flags&flagEncryptToSelfMessage != 0 {
		m, err := parseEncryptToSelfMessage(r, version)
		if err != nil {
			return nil, err
		}
		builder.EncryptToSelfMessage(m)
	}
	if flags&flagPhasing != 0 {
		p, err := parsePhasing(r, version)
		if err != nil {
			return nil, err
		}
		builder.Phasing(p)
	}
	if flags&flagPrunablePlainMessage != 0 {
		m, err := parsePrunablePlainMessage(r, version)
		if err != nil {
			return nil, err
		}
		builder.PrunablePlainMessage(m)
	}
	if flags&flagPrunableEncryptedMessage != 0 {
		m, err := parsePrunableEncryptedMessage(r, version)
		if err != nil {
			return nil, err
		}
		builder.PrunableEncryptedMessage(m)
	}
	if rd.Len() > 0 {
		return nil, notValidf("transaction bytes too long, %d extra bytes", rd.Len())
	}
	return builder, nil
}

// NewBuilderFromBytesAndPrunable parses wire bytes and rehydrates prunable
// appendage payloads from their side-channel JSON bag.
func (c *Context) NewBuilderFromBytesAndPrunable(data []byte, prunableAttachments map[string]any) (*Builder, error) {
	builder, err := c.NewBuilderFromBytes(data)
	if err != nil {
		return nil, err
	}
	if prunableAttachments != nil {
		prunablePlainMessage, err := parsePrunablePlainMessageJSON(prunableAttachments)
		if err != nil {
			return nil, err
		}
		if prunablePlainMessage != nil {
			builder.PrunablePlainMessage(prunablePlainMessage)
		}
		prunableEncryptedMessage, err := parsePrunableEncryptedMessageJSON(prunableAttachments)
		if err != nil {
			return nil, err
		}
		if prunableEncryptedMessage != nil {
			builder.PrunableEncryptedMessage(prunableEncryptedMessage)
		}
	}
	return builder, nil
}

// nonZeroOrNil treats an all-zero buffer as absent.
func nonZeroOrNil(b []byte) []byte {
	for _, v := range b {
		if v != 0 {
			return b
		}
	}
	return nil
}
