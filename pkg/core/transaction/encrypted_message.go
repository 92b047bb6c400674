package transaction

import (
	"encoding/hex"

	ojson "github.com/nspcc-dev/go-ordered-json"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/crypto"
	"github.com/H01mes/qoober-node-1/pkg/io"
)

// encryptedPayload is the shared core of the two encrypted message
// appendages. Until Encrypt is called it may hold a pending plaintext
// instead of ciphertext; such an appendage cannot be serialized yet.
type encryptedPayload struct {
	baseAppendix
	encrypted crypto.EncryptedData
	isText    bool

	// Builder-side state, cleared by Encrypt.
	plaintext          []byte
	recipientPublicKey []byte
}

func (e *encryptedPayload) isEncrypted() bool {
	return e.plaintext == nil
}

// EncryptedData returns the sealed payload.
func (e *encryptedPayload) EncryptedData() crypto.EncryptedData {
	return e.encrypted
}

// IsText reports whether the sealed plaintext is UTF-8 text.
func (e *encryptedPayload) IsText() bool {
	return e.isText
}

func (e *encryptedPayload) dataSize() int {
	if !e.isEncrypted() {
		return crypto.EncryptedSize(len(e.plaintext))
	}
	return len(e.encrypted.Data)
}

func (e *encryptedPayload) mySize() int {
	return 4 + e.dataSize() + crypto.NonceLength
}

func (e *encryptedPayload) putPayload(w *io.BinWriter, txVersion byte) {
	if !e.isEncrypted() {
		w.Err = notValidf("message has not been encrypted yet")
		return
	}
	e.putVersion(w, txVersion)
	length := uint32(len(e.encrypted.Data))
	if e.isText {
		length |= textFlag
	}
	w.WriteU32LE(length)
	w.WriteBytes(e.encrypted.Data)
	w.WriteBytes(e.encrypted.Nonce)
}

func (e *encryptedPayload) parsePayload(r *io.BinReader, txVersion byte) error {
	e.version = parseAppendixVersion(r, txVersion)
	length := r.ReadU32LE()
	e.isText = length&textFlag != 0
	length &^= textFlag
	if length > config.MaxEncryptedMessageLength {
		return notValidf("invalid encrypted message length: %d", length)
	}
	e.encrypted.Data = make([]byte, length)
	r.ReadBytes(e.encrypted.Data)
	e.encrypted.Nonce = make([]byte, crypto.NonceLength)
	r.ReadBytes(e.encrypted.Nonce)
	if r.Err != nil {
		return notValidf("cannot parse encrypted message appendix: %v", r.Err)
	}
	return nil
}

func (e *encryptedPayload) payloadJSON() ojson.OrderedObject {
	return ojson.OrderedObject{
		{Key: "data", Value: hex.EncodeToString(e.encrypted.Data)},
		{Key: "nonce", Value: hex.EncodeToString(e.encrypted.Nonce)},
		{Key: "isText", Value: e.isText},
	}
}

func (e *encryptedPayload) parsePayloadJSON(data map[string]any) error {
	var err error
	if e.encrypted.Data, err = hex.DecodeString(jsonString(data, "data")); err != nil {
		return notValidf("invalid encrypted message data: %v", err)
	}
	if e.encrypted.Nonce, err = hex.DecodeString(jsonString(data, "nonce")); err != nil {
		return notValidf("invalid encrypted message nonce: %v", err)
	}
	e.isText = jsonBool(data, "isText")
	return nil
}

func (e *encryptedPayload) validatePayload() error {
	if !e.isEncrypted() {
		return notValidf("message has not been encrypted yet")
	}
	if len(e.encrypted.Data) > config.MaxEncryptedMessageLength {
		return notValidf("invalid encrypted message length: %d", len(e.encrypted.Data))
	}
	if len(e.encrypted.Nonce) != crypto.NonceLength {
		return notValidf("invalid nonce length: %d", len(e.encrypted.Nonce))
	}
	return nil
}

// Encrypt implements the Encryptable interface.
func (e *encryptedPayload) Encrypt(secretPhrase string) error {
	if e.isEncrypted() {
		return nil
	}
	sealed, err := crypto.EncryptTo(e.recipientPublicKey, e.plaintext, secretPhrase)
	if err != nil {
		return notValidf("cannot encrypt message: %v", err)
	}
	e.encrypted = sealed
	e.plaintext = nil
	e.recipientPublicKey = nil
	return nil
}

func (e *encryptedPayload) apply(*Transaction, Account, Account) {}

func (e *encryptedPayload) isPhasable() bool {
	return false
}

func (e *encryptedPayload) baselineFee(*Transaction) Fee {
	return SizeBasedFee{Constant: config.OneQBR, FeePerSize: config.OneQBR, UnitSize: 32}
}

func (e *encryptedPayload) nextFee(tx *Transaction) Fee {
	return e.baselineFee(tx)
}

// EncryptedMessage is a message readable only by the transaction recipient.
type EncryptedMessage struct {
	encryptedPayload
}

// NewEncryptedMessage creates an appendage holding a plaintext to be sealed
// for the recipient's public key when the transaction is built with a
// secret phrase.
func NewEncryptedMessage(plaintext []byte, isText bool, recipientPublicKey []byte) *EncryptedMessage {
	m := &EncryptedMessage{}
	m.version = 1
	m.isText = isText
	m.plaintext = plaintext
	m.recipientPublicKey = recipientPublicKey
	return m
}

// NewSealedEncryptedMessage creates an appendage from already encrypted data.
func NewSealedEncryptedMessage(data crypto.EncryptedData, isText bool) *EncryptedMessage {
	m := &EncryptedMessage{}
	m.version = 1
	m.isText = isText
	m.encrypted = data
	return m
}

func parseEncryptedMessage(r *io.BinReader, txVersion byte) (*EncryptedMessage, error) {
	m := &EncryptedMessage{}
	if err := m.parsePayload(r, txVersion); err != nil {
		return nil, err
	}
	return m, nil
}

func parseEncryptedMessageJSON(data map[string]any) (*EncryptedMessage, error) {
	nested, ok := data["encryptedMessage"].(map[string]any)
	if !ok || !hasKey(data, "version.EncryptedMessage") {
		return nil, nil
	}
	m := &EncryptedMessage{}
	m.version = jsonByte(data, "version.EncryptedMessage")
	if err := m.parsePayloadJSON(nested); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements the Appendix interface.
func (m *EncryptedMessage) Name() string {
	return "EncryptedMessage"
}

// Size implements the Appendix interface.
func (m *EncryptedMessage) Size(txVersion byte) int {
	return m.sizeWithVersion(txVersion, m.mySize())
}

// FullSize implements the Appendix interface.
func (m *EncryptedMessage) FullSize(tx *Transaction) int {
	return m.Size(tx.version)
}

func (m *EncryptedMessage) putBytes(w *io.BinWriter, txVersion byte) {
	m.putPayload(w, txVersion)
}

func (m *EncryptedMessage) putJSON(_ *Transaction, obj *ojson.OrderedObject) {
	putVersionJSON(m, obj)
	*obj = append(*obj, ojson.Member{Key: "encryptedMessage", Value: m.payloadJSON()})
}

func (m *EncryptedMessage) validate(tx *Transaction) error {
	if tx.recipientID == 0 {
		return notValidf("encrypted message requires a recipient")
	}
	return m.validatePayload()
}

// EncryptToSelfMessage is a note the sender seals for their own key.
type EncryptToSelfMessage struct {
	encryptedPayload
}

// NewEncryptToSelfMessage creates an appendage holding a plaintext to be
// sealed for the sender's own public key at build time.
func NewEncryptToSelfMessage(plaintext []byte, isText bool, senderPublicKey []byte) *EncryptToSelfMessage {
	m := &EncryptToSelfMessage{}
	m.version = 1
	m.isText = isText
	m.plaintext = plaintext
	m.recipientPublicKey = senderPublicKey
	return m
}

// NewSealedEncryptToSelfMessage creates an appendage from already encrypted
// data.
func NewSealedEncryptToSelfMessage(data crypto.EncryptedData, isText bool) *EncryptToSelfMessage {
	m := &EncryptToSelfMessage{}
	m.version = 1
	m.isText = isText
	m.encrypted = data
	return m
}

func parseEncryptToSelfMessage(r *io.BinReader, txVersion byte) (*EncryptToSelfMessage, error) {
	m := &EncryptToSelfMessage{}
	if err := m.parsePayload(r, txVersion); err != nil {
		return nil, err
	}
	return m, nil
}

func parseEncryptToSelfMessageJSON(data map[string]any) (*EncryptToSelfMessage, error) {
	nested, ok := data["encryptToSelfMessage"].(map[string]any)
	if !ok || !hasKey(data, "version.EncryptToSelfMessage") {
		return nil, nil
	}
	m := &EncryptToSelfMessage{}
	m.version = jsonByte(data, "version.EncryptToSelfMessage")
	if err := m.parsePayloadJSON(nested); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements the Appendix interface.
func (m *EncryptToSelfMessage) Name() string {
	return "EncryptToSelfMessage"
}

// Size implements the Appendix interface.
func (m *EncryptToSelfMessage) Size(txVersion byte) int {
	return m.sizeWithVersion(txVersion, m.mySize())
}

// FullSize implements the Appendix interface.
func (m *EncryptToSelfMessage) FullSize(tx *Transaction) int {
	return m.Size(tx.version)
}

func (m *EncryptToSelfMessage) putBytes(w *io.BinWriter, txVersion byte) {
	m.putPayload(w, txVersion)
}

func (m *EncryptToSelfMessage) putJSON(_ *Transaction, obj *ojson.OrderedObject) {
	putVersionJSON(m, obj)
	*obj = append(*obj, ojson.Member{Key: "encryptToSelfMessage", Value: m.payloadJSON()})
}

func (m *EncryptToSelfMessage) validate(*Transaction) error {
	return m.validatePayload()
}
