package transaction

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	ojson "github.com/nspcc-dev/go-ordered-json"
)

// JSONObject returns the canonical JSON mirror of the transaction. Field
// order is part of the API surface; unsigned 64-bit ids are emitted as
// decimal strings to avoid precision loss.
func (t *Transaction) JSONObject() ojson.OrderedObject {
	obj := ojson.OrderedObject{
		{Key: "type", Value: int64(t.txType.Type())},
		{Key: "subtype", Value: int64(t.txType.Subtype())},
		{Key: "timestamp", Value: int64(t.timestamp)},
		{Key: "deadline", Value: int64(t.deadline)},
		{Key: "senderPublicKey", Value: hex.EncodeToString(t.SenderPublicKey())},
	}
	if t.txType.CanHaveRecipient() {
		obj = append(obj, ojson.Member{Key: "recipient", Value: unsignedDecimal(t.recipientID)})
	}
	obj = append(obj,
		ojson.Member{Key: "amountNQT", Value: t.amountNQT},
		ojson.Member{Key: "feeNQT", Value: t.feeNQT})
	if t.referencedTransactionFullHash != nil {
		obj = append(obj, ojson.Member{Key: "referencedTransactionFullHash",
			Value: hex.EncodeToString(t.referencedTransactionFullHash)})
	}
	obj = append(obj,
		ojson.Member{Key: "ecBlockHeight", Value: int64(t.ecBlockHeight)},
		ojson.Member{Key: "ecBlockId", Value: unsignedDecimal(t.ecBlockID)})
	if t.signature != nil {
		obj = append(obj, ojson.Member{Key: "signature", Value: hex.EncodeToString(t.signature)})
	}
	attachmentJSON := ojson.OrderedObject{}
	for _, appendage := range t.Appendages() {
		appendage.putJSON(t, &attachmentJSON)
	}
	if len(attachmentJSON) > 0 {
		obj = append(obj, ojson.Member{Key: "attachment", Value: attachmentJSON})
	}
	return append(obj, ojson.Member{Key: "version", Value: int64(t.version)})
}

// MarshalJSON implements the json.Marshaler interface.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	return ojson.Marshal(t.JSONObject())
}

// PrunableAttachmentJSON returns the side-channel JSON bag carrying the
// payloads of prunable appendages, or nil when the transaction has none.
func (t *Transaction) PrunableAttachmentJSON() ojson.OrderedObject {
	var prunableJSON ojson.OrderedObject
	for _, appendage := range t.appendages {
		if p, ok := appendage.(Prunable); ok {
			p.loadPrunable(t, false)
			appendage.putJSON(t, &prunableJSON)
		}
	}
	return prunableJSON
}

// NewBuilderFromJSON parses the canonical JSON form into a builder.
// Malformed input fails with ErrNotValid.
func (c *Context) NewBuilderFromJSON(data []byte) (*Builder, error) {
	dec := ojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, notValidf("cannot parse transaction JSON: %v", err)
	}
	return c.NewBuilderFromJSONMap(m)
}

// NewBuilderFromJSONMap parses an already decoded JSON object.
func (c *Context) NewBuilderFromJSONMap(m map[string]any) (*Builder, error) {
	typ := jsonByte(m, "type")
	subtype := jsonByte(m, "subtype")
	version := jsonByte(m, "version")
	timestamp := int32(jsonInt64(m, "timestamp"))
	deadline := int16(jsonInt64(m, "deadline"))
	senderPublicKey, err := jsonHexBytes(m, "senderPublicKey")
	if err != nil {
		return nil, err
	}
	amountNQT := jsonInt64(m, "amountNQT")
	feeNQT := jsonInt64(m, "feeNQT")
	referencedTransactionFullHash, err := jsonHexBytes(m, "referencedTransactionFullHash")
	if err != nil {
		return nil, err
	}
	signature, err := jsonHexBytes(m, "signature")
	if err != nil {
		return nil, err
	}
	var ecBlockHeight int32
	var ecBlockID uint64
	if version > 0 {
		ecBlockHeight = int32(jsonInt64(m, "ecBlockHeight"))
		ecBlockID = jsonUint64String(m, "ecBlockId")
	}
	txType := FindType(typ, subtype)
	if txType == nil {
		return nil, notValidf("invalid transaction type: %d, %d", typ, subtype)
	}
	attachmentData, _ := m["attachment"].(map[string]any)
	attachment, err := txType.parseAttachmentJSON(attachmentData)
	if err != nil {
		return nil, err
	}
	builder := c.NewBuilder(version, senderPublicKey, amountNQT, feeNQT, deadline, attachment).
		Timestamp(timestamp).
		ReferencedTransactionFullHash(referencedTransactionFullHash).
		ECBlockHeight(ecBlockHeight).
		ECBlockID(ecBlockID).
		withSignature(signature)
	if txType.CanHaveRecipient() {
		builder.RecipientID(jsonUint64String(m, "recipient"))
	}
	if attachmentData == nil {
		return builder, nil
	}

	message, err := parseMessageJSON(attachmentData)
	if err != nil {
		return nil, err
	}
	if message != nil {
		builder.Message(message)
	}
	encryptedMessage, err := parseEncryptedMessageJSON(attachmentData)
	if err != nil {
		return nil, err
	}
	if encryptedMessage != nil {
		builder.EncryptedMessage(encryptedMessage)
	}
	publicKeyAnnouncement, err := parsePublicKeyAnnouncementJSON(attachmentData)
	if err != nil {
		return nil, err
	}
	if publicKeyAnnouncement != nil {
		builder.PublicKeyAnnouncement(publicKeyAnnouncement)
	}
	encryptToSelfMessage, err := parseEncryptToSelfMessageJSON(attachmentData)
	if err != nil {
		return nil, err
	}
	if encryptToSelfMessage != nil {
		builder.EncryptToSelfMessage(encryptToSelfMessage)
	}
	phasing, err := parsePhasingJSON(attachmentData)
	if err != nil {
		return nil, err
	}
	if phasing != nil {
		builder.Phasing(phasing)
	}
	prunablePlainMessage, err := parsePrunablePlainMessageJSON(attachmentData)
	if err != nil {
		return nil, err
	}
	if prunablePlainMessage != nil {
		builder.PrunablePlainMessage(prunablePlainMessage)
	}
	prunableEncryptedMessage, err := parsePrunableEncryptedMessageJSON(attachmentData)
	if err != nil {
		return nil, err
	}
	if prunableEncryptedMessage != nil {
		builder.PrunableEncryptedMessage(prunableEncryptedMessage)
	}
	return builder, nil
}

// ParseTransaction builds a transaction from its JSON form and, when a
// signature is present, checks it. A bad signature fails with ErrNotValid.
func (c *Context) ParseTransaction(data []byte) (*Transaction, error) {
	builder, err := c.NewBuilderFromJSON(data)
	if err != nil {
		return nil, err
	}
	tx, err := builder.Build()
	if err != nil {
		return nil, err
	}
	if tx.Signature() != nil && !tx.checkSignature() {
		return nil, notValidf("invalid transaction signature")
	}
	return tx, nil
}

func unsignedDecimal(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUnsignedDecimal(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func leU64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func jsonString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func jsonBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func jsonInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case ojson.Number:
		n, _ := v.Int64()
		return n
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func jsonByte(m map[string]any, key string) byte {
	return byte(jsonInt64(m, key))
}

func jsonUint64String(m map[string]any, key string) uint64 {
	s, ok := m[key].(string)
	if !ok {
		return 0
	}
	v, err := parseUnsignedDecimal(s)
	if err != nil {
		return 0
	}
	return v
}

func jsonHexBytes(m map[string]any, key string) ([]byte, error) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, notValidf("invalid %s: %v", key, err)
	}
	return b, nil
}
