package transaction

import (
	"encoding/hex"

	ojson "github.com/nspcc-dev/go-ordered-json"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/io"
)

// textFlag is ORed into the appendage length word when the payload is UTF-8
// text rather than binary data.
const textFlag = uint32(0x80000000)

// Message is the plain (unencrypted) message appendage.
type Message struct {
	baseAppendix
	message []byte
	isText  bool
}

// NewMessage creates a binary message appendage.
func NewMessage(message []byte) *Message {
	return &Message{baseAppendix{version: 1}, message, false}
}

// NewTextMessage creates a UTF-8 text message appendage.
func NewTextMessage(message string) *Message {
	return &Message{baseAppendix{version: 1}, []byte(message), true}
}

func parseMessage(r *io.BinReader, txVersion byte) (*Message, error) {
	m := &Message{}
	m.version = parseAppendixVersion(r, txVersion)
	length := r.ReadU32LE()
	m.isText = length&textFlag != 0
	length &^= textFlag
	if length > config.MaxArbitraryMessageLength {
		return nil, notValidf("invalid arbitrary message length: %d", length)
	}
	m.message = make([]byte, length)
	r.ReadBytes(m.message)
	if r.Err != nil {
		return nil, notValidf("cannot parse message appendix: %v", r.Err)
	}
	return m, nil
}

func parseMessageJSON(data map[string]any) (*Message, error) {
	raw, ok := data["message"].(string)
	if !ok || !hasKey(data, "version.Message") {
		return nil, nil
	}
	version := jsonByte(data, "version.Message")
	m := &Message{baseAppendix{version: version}, nil, jsonBool(data, "messageIsText")}
	if m.isText {
		m.message = []byte(raw)
	} else {
		message, err := hex.DecodeString(raw)
		if err != nil {
			return nil, notValidf("invalid message bytes: %v", err)
		}
		m.message = message
	}
	return m, nil
}

// Name implements the Appendix interface.
func (m *Message) Name() string {
	return "Message"
}

// MessageBytes returns the raw payload.
func (m *Message) MessageBytes() []byte {
	return m.message
}

// IsText reports whether the payload is UTF-8 text.
func (m *Message) IsText() bool {
	return m.isText
}

// Size implements the Appendix interface.
func (m *Message) Size(txVersion byte) int {
	return m.sizeWithVersion(txVersion, 4+len(m.message))
}

// FullSize implements the Appendix interface.
func (m *Message) FullSize(tx *Transaction) int {
	return m.Size(tx.version)
}

func (m *Message) putBytes(w *io.BinWriter, txVersion byte) {
	m.putVersion(w, txVersion)
	length := uint32(len(m.message))
	if m.isText {
		length |= textFlag
	}
	w.WriteU32LE(length)
	w.WriteBytes(m.message)
}

func (m *Message) putJSON(_ *Transaction, obj *ojson.OrderedObject) {
	putVersionJSON(m, obj)
	value := hex.EncodeToString(m.message)
	if m.isText {
		value = string(m.message)
	}
	*obj = append(*obj,
		ojson.Member{Key: "message", Value: value},
		ojson.Member{Key: "messageIsText", Value: m.isText})
}

func (m *Message) validate(tx *Transaction) error {
	if tx.version == 0 && tx.txType != ArbitraryMessage {
		return notValidf("message appendix not enabled for v0 transaction type %s", tx.txType.Name())
	}
	if len(m.message) > config.MaxArbitraryMessageLength {
		return notValidf("invalid arbitrary message length: %d", len(m.message))
	}
	return nil
}

func (m *Message) apply(*Transaction, Account, Account) {}

func (m *Message) isPhasable() bool {
	return false
}

func (m *Message) baselineFee(*Transaction) Fee {
	return SizeBasedFee{Constant: config.OneQBR, FeePerSize: config.OneQBR, UnitSize: 32}
}

func (m *Message) nextFee(tx *Transaction) Fee {
	return m.baselineFee(tx)
}
