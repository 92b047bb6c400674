package transaction

import (
	"bytes"
	"encoding/hex"

	ojson "github.com/nspcc-dev/go-ordered-json"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/crypto"
	"github.com/H01mes/qoober-node-1/pkg/io"
)

// hashLength is the wire footprint of a prunable appendage, not counting the
// version byte of v1+ transactions.
const hashLength = 32

// PrunablePlainMessage carries a plain message out of band; only its hash
// is part of the signed bytes.
type PrunablePlainMessage struct {
	baseAppendix
	hash    []byte
	message []byte
	isText  bool
}

// NewPrunablePlainMessage creates the appendage with the payload present.
func NewPrunablePlainMessage(message []byte, isText bool) *PrunablePlainMessage {
	return &PrunablePlainMessage{baseAppendix: baseAppendix{version: 1}, message: message, isText: isText}
}

func parsePrunablePlainMessage(r *io.BinReader, txVersion byte) (*PrunablePlainMessage, error) {
	m := &PrunablePlainMessage{}
	m.version = parseAppendixVersion(r, txVersion)
	m.hash = make([]byte, hashLength)
	r.ReadBytes(m.hash)
	if r.Err != nil {
		return nil, notValidf("cannot parse prunable message appendix: %v", r.Err)
	}
	return m, nil
}

func parsePrunablePlainMessageJSON(data map[string]any) (*PrunablePlainMessage, error) {
	_, hasMessage := data["message"].(string)
	_, hasHash := data["messageHash"].(string)
	if !hasKey(data, "version.PrunablePlainMessage") || (!hasMessage && !hasHash) {
		return nil, nil
	}
	m := &PrunablePlainMessage{}
	m.version = jsonByte(data, "version.PrunablePlainMessage")
	if raw, ok := data["messageHash"].(string); ok {
		hash, err := hex.DecodeString(raw)
		if err != nil {
			return nil, notValidf("invalid message hash: %v", err)
		}
		m.hash = hash
	}
	if raw, ok := data["message"].(string); ok {
		m.isText = jsonBool(data, "messageIsText")
		if m.isText {
			m.message = []byte(raw)
		} else {
			message, err := hex.DecodeString(raw)
			if err != nil {
				return nil, notValidf("invalid message bytes: %v", err)
			}
			m.message = message
		}
	}
	return m, nil
}

// Name implements the Appendix interface.
func (m *PrunablePlainMessage) Name() string {
	return "PrunablePlainMessage"
}

// MessageBytes returns the payload or nil when pruned.
func (m *PrunablePlainMessage) MessageBytes() []byte {
	return m.message
}

// IsText reports whether the payload is UTF-8 text.
func (m *PrunablePlainMessage) IsText() bool {
	return m.isText
}

// HasPayload implements the Prunable interface.
func (m *PrunablePlainMessage) HasPayload() bool {
	return m.message != nil
}

// Hash returns the consensus hash of the payload.
func (m *PrunablePlainMessage) Hash() []byte {
	if m.hash != nil {
		return m.hash
	}
	digest := crypto.NewSha256()
	if m.isText {
		digest.Write([]byte{1})
	} else {
		digest.Write([]byte{0})
	}
	digest.Write(m.message)
	return digest.Sum(nil)
}

// Size implements the Appendix interface.
func (m *PrunablePlainMessage) Size(txVersion byte) int {
	return m.sizeWithVersion(txVersion, hashLength)
}

// FullSize implements the Appendix interface. The out-of-band payload
// counts towards the payload limit even though it is not in the signed
// bytes.
func (m *PrunablePlainMessage) FullSize(tx *Transaction) int {
	return m.Size(tx.version) + len(m.message)
}

func (m *PrunablePlainMessage) putBytes(w *io.BinWriter, txVersion byte) {
	m.putVersion(w, txVersion)
	w.WriteBytes(m.Hash())
}

func (m *PrunablePlainMessage) putJSON(_ *Transaction, obj *ojson.OrderedObject) {
	putVersionJSON(m, obj)
	if m.message != nil {
		value := hex.EncodeToString(m.message)
		if m.isText {
			value = string(m.message)
		}
		*obj = append(*obj,
			ojson.Member{Key: "message", Value: value},
			ojson.Member{Key: "messageIsText", Value: m.isText})
	}
	*obj = append(*obj, ojson.Member{Key: "messageHash", Value: hex.EncodeToString(m.Hash())})
}

func (m *PrunablePlainMessage) validate(tx *Transaction) error {
	if tx.message != nil {
		return notValidf("cannot attach both a plain and a prunable plain message")
	}
	if m.message != nil {
		if len(m.message) > config.MaxPrunableMessageLength {
			return notValidf("invalid prunable message length: %d", len(m.message))
		}
		if m.hash != nil && !bytes.Equal(m.hash, (&PrunablePlainMessage{message: m.message, isText: m.isText}).Hash()) {
			return notValidf("prunable message hash does not match message")
		}
	} else if len(m.hash) != hashLength {
		return notValidf("invalid prunable message hash length: %d", len(m.hash))
	}
	return nil
}

func (m *PrunablePlainMessage) loadPrunable(tx *Transaction, includeExpired bool) {
	if m.message != nil || tx.ctx.Prunables == nil || tx.signature == nil {
		return
	}
	id, err := tx.ID()
	if err != nil {
		return
	}
	if message, isText, ok := tx.ctx.Prunables.PlainMessage(id, includeExpired); ok {
		m.message = message
		m.isText = isText
	}
}

func (m *PrunablePlainMessage) apply(*Transaction, Account, Account) {}

func (m *PrunablePlainMessage) isPhasable() bool {
	return false
}

func (m *PrunablePlainMessage) baselineFee(*Transaction) Fee {
	return SizeBasedFee{Constant: config.OneQBR / 10, FeePerSize: config.OneQBR / 10, UnitSize: 32}
}

func (m *PrunablePlainMessage) nextFee(tx *Transaction) Fee {
	return m.baselineFee(tx)
}

// PrunableEncryptedMessage carries an encrypted message out of band; only
// its hash is part of the signed bytes.
type PrunableEncryptedMessage struct {
	baseAppendix
	hash      []byte
	encrypted crypto.EncryptedData
	isText    bool
}

// NewPrunableEncryptedMessage creates the appendage from sealed data.
func NewPrunableEncryptedMessage(data crypto.EncryptedData, isText bool) *PrunableEncryptedMessage {
	return &PrunableEncryptedMessage{baseAppendix: baseAppendix{version: 1}, encrypted: data, isText: isText}
}

func parsePrunableEncryptedMessage(r *io.BinReader, txVersion byte) (*PrunableEncryptedMessage, error) {
	m := &PrunableEncryptedMessage{}
	m.version = parseAppendixVersion(r, txVersion)
	m.hash = make([]byte, hashLength)
	r.ReadBytes(m.hash)
	if r.Err != nil {
		return nil, notValidf("cannot parse prunable encrypted message appendix: %v", r.Err)
	}
	return m, nil
}

func parsePrunableEncryptedMessageJSON(data map[string]any) (*PrunableEncryptedMessage, error) {
	nested, hasNested := data["prunableEncryptedMessage"].(map[string]any)
	_, hasHash := data["encryptedMessageHash"].(string)
	if !hasKey(data, "version.PrunableEncryptedMessage") || (!hasNested && !hasHash) {
		return nil, nil
	}
	m := &PrunableEncryptedMessage{}
	m.version = jsonByte(data, "version.PrunableEncryptedMessage")
	if raw, ok := data["encryptedMessageHash"].(string); ok {
		hash, err := hex.DecodeString(raw)
		if err != nil {
			return nil, notValidf("invalid encrypted message hash: %v", err)
		}
		m.hash = hash
	}
	if hasNested {
		var err error
		if m.encrypted.Data, err = hex.DecodeString(jsonString(nested, "data")); err != nil {
			return nil, notValidf("invalid prunable encrypted message data: %v", err)
		}
		if m.encrypted.Nonce, err = hex.DecodeString(jsonString(nested, "nonce")); err != nil {
			return nil, notValidf("invalid prunable encrypted message nonce: %v", err)
		}
		m.isText = jsonBool(nested, "isText")
	}
	return m, nil
}

// Name implements the Appendix interface.
func (m *PrunableEncryptedMessage) Name() string {
	return "PrunableEncryptedMessage"
}

// EncryptedData returns the sealed payload; its data is nil when pruned.
func (m *PrunableEncryptedMessage) EncryptedData() crypto.EncryptedData {
	return m.encrypted
}

// IsText reports whether the sealed plaintext is UTF-8 text.
func (m *PrunableEncryptedMessage) IsText() bool {
	return m.isText
}

// HasPayload implements the Prunable interface.
func (m *PrunableEncryptedMessage) HasPayload() bool {
	return m.encrypted.Data != nil
}

// Hash returns the consensus hash of the payload.
func (m *PrunableEncryptedMessage) Hash() []byte {
	if m.hash != nil {
		return m.hash
	}
	digest := crypto.NewSha256()
	if m.isText {
		digest.Write([]byte{1})
	} else {
		digest.Write([]byte{0})
	}
	digest.Write(m.encrypted.Data)
	digest.Write(m.encrypted.Nonce)
	return digest.Sum(nil)
}

// Size implements the Appendix interface.
func (m *PrunableEncryptedMessage) Size(txVersion byte) int {
	return m.sizeWithVersion(txVersion, hashLength)
}

// FullSize implements the Appendix interface.
func (m *PrunableEncryptedMessage) FullSize(tx *Transaction) int {
	if !m.HasPayload() {
		return m.Size(tx.version)
	}
	return m.Size(tx.version) + len(m.encrypted.Data) + crypto.NonceLength
}

func (m *PrunableEncryptedMessage) putBytes(w *io.BinWriter, txVersion byte) {
	m.putVersion(w, txVersion)
	w.WriteBytes(m.Hash())
}

func (m *PrunableEncryptedMessage) putJSON(_ *Transaction, obj *ojson.OrderedObject) {
	putVersionJSON(m, obj)
	if m.HasPayload() {
		*obj = append(*obj, ojson.Member{Key: "prunableEncryptedMessage", Value: ojson.OrderedObject{
			{Key: "data", Value: hex.EncodeToString(m.encrypted.Data)},
			{Key: "nonce", Value: hex.EncodeToString(m.encrypted.Nonce)},
			{Key: "isText", Value: m.isText},
		}})
	}
	*obj = append(*obj, ojson.Member{Key: "encryptedMessageHash", Value: hex.EncodeToString(m.Hash())})
}

func (m *PrunableEncryptedMessage) validate(tx *Transaction) error {
	if tx.encryptedMessage != nil {
		return notValidf("cannot attach both an encrypted and a prunable encrypted message")
	}
	if m.HasPayload() {
		if len(m.encrypted.Data) > config.MaxPrunableMessageLength {
			return notValidf("invalid prunable encrypted message length: %d", len(m.encrypted.Data))
		}
		if len(m.encrypted.Nonce) != crypto.NonceLength {
			return notValidf("invalid nonce length: %d", len(m.encrypted.Nonce))
		}
		if m.hash != nil && !bytes.Equal(m.hash, (&PrunableEncryptedMessage{encrypted: m.encrypted, isText: m.isText}).Hash()) {
			return notValidf("prunable encrypted message hash does not match data")
		}
	} else if len(m.hash) != hashLength {
		return notValidf("invalid prunable encrypted message hash length: %d", len(m.hash))
	}
	return nil
}

func (m *PrunableEncryptedMessage) loadPrunable(tx *Transaction, includeExpired bool) {
	if m.HasPayload() || tx.ctx.Prunables == nil || tx.signature == nil {
		return
	}
	id, err := tx.ID()
	if err != nil {
		return
	}
	if data, isText, ok := tx.ctx.Prunables.EncryptedMessage(id, includeExpired); ok {
		m.encrypted = data
		m.isText = isText
	}
}

func (m *PrunableEncryptedMessage) apply(*Transaction, Account, Account) {}

func (m *PrunableEncryptedMessage) isPhasable() bool {
	return false
}

func (m *PrunableEncryptedMessage) baselineFee(*Transaction) Fee {
	return SizeBasedFee{Constant: config.OneQBR / 10, FeePerSize: config.OneQBR / 10, UnitSize: 32}
}

func (m *PrunableEncryptedMessage) nextFee(tx *Transaction) Fee {
	return m.baselineFee(tx)
}
