package transaction

import (
	"bytes"
	"encoding/hex"

	ojson "github.com/nspcc-dev/go-ordered-json"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/crypto"
	"github.com/H01mes/qoober-node-1/pkg/io"
)

// PublicKeyAnnouncement binds the recipient account to its public key the
// first time the account is paid.
type PublicKeyAnnouncement struct {
	baseAppendix
	publicKey []byte
}

// NewPublicKeyAnnouncement creates the appendage for the given recipient key.
func NewPublicKeyAnnouncement(publicKey []byte) *PublicKeyAnnouncement {
	return &PublicKeyAnnouncement{baseAppendix{version: 1}, publicKey}
}

func parsePublicKeyAnnouncement(r *io.BinReader, txVersion byte) (*PublicKeyAnnouncement, error) {
	a := &PublicKeyAnnouncement{}
	a.version = parseAppendixVersion(r, txVersion)
	a.publicKey = make([]byte, crypto.PublicKeyLength)
	r.ReadBytes(a.publicKey)
	if r.Err != nil {
		return nil, notValidf("cannot parse public key announcement: %v", r.Err)
	}
	return a, nil
}

func parsePublicKeyAnnouncementJSON(data map[string]any) (*PublicKeyAnnouncement, error) {
	raw, ok := data["recipientPublicKey"].(string)
	if !ok || !hasKey(data, "version.PublicKeyAnnouncement") {
		return nil, nil
	}
	publicKey, err := hex.DecodeString(raw)
	if err != nil {
		return nil, notValidf("invalid recipient public key: %v", err)
	}
	a := &PublicKeyAnnouncement{}
	a.version = jsonByte(data, "version.PublicKeyAnnouncement")
	a.publicKey = publicKey
	return a, nil
}

// Name implements the Appendix interface.
func (a *PublicKeyAnnouncement) Name() string {
	return "PublicKeyAnnouncement"
}

// RecipientPublicKey returns the announced key.
func (a *PublicKeyAnnouncement) RecipientPublicKey() []byte {
	return a.publicKey
}

// Size implements the Appendix interface.
func (a *PublicKeyAnnouncement) Size(txVersion byte) int {
	return a.sizeWithVersion(txVersion, crypto.PublicKeyLength)
}

// FullSize implements the Appendix interface.
func (a *PublicKeyAnnouncement) FullSize(tx *Transaction) int {
	return a.Size(tx.version)
}

func (a *PublicKeyAnnouncement) putBytes(w *io.BinWriter, txVersion byte) {
	a.putVersion(w, txVersion)
	w.WriteBytes(a.publicKey)
}

func (a *PublicKeyAnnouncement) putJSON(_ *Transaction, obj *ojson.OrderedObject) {
	putVersionJSON(a, obj)
	*obj = append(*obj, ojson.Member{Key: "recipientPublicKey", Value: hex.EncodeToString(a.publicKey)})
}

func (a *PublicKeyAnnouncement) validate(tx *Transaction) error {
	if tx.recipientID == 0 {
		return notValidf("public key announcement requires a recipient")
	}
	if len(a.publicKey) != crypto.PublicKeyLength {
		return notValidf("invalid recipient public key length: %d", len(a.publicKey))
	}
	if crypto.AccountID(a.publicKey) != tx.recipientID {
		return notValidf("announced public key does not match recipient account id")
	}
	if tx.ctx.Ledger != nil {
		if known := tx.ctx.Ledger.PublicKey(tx.recipientID); known != nil && !bytes.Equal(known, a.publicKey) {
			return notCurrentlyValidf("a different public key for this account has already been set")
		}
	}
	return nil
}

func (a *PublicKeyAnnouncement) apply(tx *Transaction, _, recipient Account) {
	if recipient == nil {
		return
	}
	if tx.ctx.Ledger.SetOrVerify(recipient.ID(), a.publicKey) {
		recipient.ApplyPublicKey(a.publicKey)
	}
}

func (a *PublicKeyAnnouncement) isPhasable() bool {
	return false
}

func (a *PublicKeyAnnouncement) baselineFee(*Transaction) Fee {
	return ConstantFee(config.OneQBR)
}

func (a *PublicKeyAnnouncement) nextFee(tx *Transaction) Fee {
	return a.baselineFee(tx)
}
