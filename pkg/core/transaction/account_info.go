package transaction

import (
	ojson "github.com/nspcc-dev/go-ordered-json"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/io"
)

// accountInfo updates the sender's name and description (1, 5). It has no
// recipient: the wire recipient field carries the creator id.
type accountInfo struct {
	baseTxType
}

func (t *accountInfo) Type() byte               { return TypeMessaging }
func (t *accountInfo) Subtype() byte            { return SubtypeMessagingAccountInfo }
func (t *accountInfo) Name() string             { return "AccountInfo" }
func (t *accountInfo) CanHaveRecipient() bool   { return false }
func (t *accountInfo) MustHaveRecipient() bool  { return false }
func (t *accountInfo) LedgerEvent() LedgerEvent { return LedgerEventAccountInfo }

func (t *accountInfo) parseAttachment(r *io.BinReader) (Attachment, error) {
	a := &AccountInfoAttachment{}
	a.txType = t
	a.version = r.ReadB()
	nameLen := int(r.ReadB())
	if nameLen > config.MaxAccountNameLength {
		return nil, notValidf("account name too long: %d", nameLen)
	}
	name := make([]byte, nameLen)
	r.ReadBytes(name)
	descLen := int(r.ReadU16LE())
	if descLen > config.MaxAccountDescriptionLength {
		return nil, notValidf("account description too long: %d", descLen)
	}
	desc := make([]byte, descLen)
	r.ReadBytes(desc)
	if r.Err != nil {
		return nil, notValidf("cannot parse account info attachment: %v", r.Err)
	}
	a.name = string(name)
	a.description = string(desc)
	return a, nil
}

func (t *accountInfo) parseAttachmentJSON(data map[string]any) (Attachment, error) {
	a := &AccountInfoAttachment{}
	a.txType = t
	a.version = jsonByte(data, versionKey(t.Name()))
	a.name = jsonString(data, "name")
	a.description = jsonString(data, "description")
	return a, nil
}

func (t *accountInfo) validateAttachment(tx *Transaction) error {
	a, ok := tx.attachment.(*AccountInfoAttachment)
	if !ok {
		return notValidf("wrong attachment for account info transaction")
	}
	if len(a.name) > config.MaxAccountNameLength {
		return notValidf("invalid account name length: %d", len(a.name))
	}
	if len(a.description) > config.MaxAccountDescriptionLength {
		return notValidf("invalid account description length: %d", len(a.description))
	}
	return nil
}

func (t *accountInfo) applyAttachment(tx *Transaction, sender, _ Account) {
	a := tx.attachment.(*AccountInfoAttachment)
	sender.SetAccountInfo(a.name, a.description)
}

func (t *accountInfo) isBlockDuplicate(tx *Transaction, duplicates Duplicates) bool {
	// One account info update per sender per block.
	return IsDuplicateKey(t, tx.SenderStringID(), duplicates, 0)
}

// AccountInfoAttachment is the payload of an account info transaction.
type AccountInfoAttachment struct {
	baseAttachment
	name        string
	description string
}

// NewAccountInfoAttachment creates the attachment for a new transaction.
func NewAccountInfoAttachment(name, description string) *AccountInfoAttachment {
	a := &AccountInfoAttachment{name: name, description: description}
	a.version = 1
	a.txType = AccountInfo
	return a
}

// AccountName returns the announced account name.
func (a *AccountInfoAttachment) AccountName() string {
	return a.name
}

// AccountDescription returns the announced account description.
func (a *AccountInfoAttachment) AccountDescription() string {
	return a.description
}

// Size implements the Appendix interface.
func (a *AccountInfoAttachment) Size(txVersion byte) int {
	return a.sizeWithVersion(txVersion, 1+len(a.name)+2+len(a.description))
}

// FullSize implements the Appendix interface.
func (a *AccountInfoAttachment) FullSize(tx *Transaction) int {
	return a.Size(tx.version)
}

func (a *AccountInfoAttachment) putBytes(w *io.BinWriter, txVersion byte) {
	a.putVersion(w, txVersion)
	w.WriteB(byte(len(a.name)))
	w.WriteBytes([]byte(a.name))
	w.WriteU16LE(uint16(len(a.description)))
	w.WriteBytes([]byte(a.description))
}

func (a *AccountInfoAttachment) putJSON(_ *Transaction, obj *ojson.OrderedObject) {
	putVersionJSON(a, obj)
	*obj = append(*obj,
		ojson.Member{Key: "name", Value: a.name},
		ojson.Member{Key: "description", Value: a.description})
}
