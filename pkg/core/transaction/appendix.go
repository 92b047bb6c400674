package transaction

import (
	ojson "github.com/nspcc-dev/go-ordered-json"

	"github.com/H01mes/qoober-node-1/pkg/io"
)

// Appendage flag bits, LSB first. A set bit requires the appendage to be
// present; wire order of appendages is the bit order.
const (
	flagMessage uint32 = 1 << iota
	flagEncryptedMessage
	flagPublicKeyAnnouncement
	flagEncryptToSelfMessage
	flagPhasing
	flagPrunablePlainMessage
	flagPrunableEncryptedMessage
)

// Appendix is an optional, self-delimited section of a transaction. The
// attachment and every appendage implement it. The set of implementations is
// fixed: the wire format reserves one flag bit per appendage kind.
type Appendix interface {
	// Name is the appendage name used in version keys of the JSON form.
	Name() string
	// Version is the appendage version carried on the wire for v1+
	// transactions.
	Version() byte
	// Size is the wire size in bytes, version byte included where the
	// transaction version asks for one.
	Size(txVersion byte) int
	// FullSize is the wire size plus any externally carried payload.
	FullSize(tx *Transaction) int

	putBytes(w *io.BinWriter, txVersion byte)
	putJSON(tx *Transaction, obj *ojson.OrderedObject)
	verifyVersion(txVersion byte) bool
	validate(tx *Transaction) error
	validateAtFinish(tx *Transaction) error
	apply(tx *Transaction, sender, recipient Account)
	isPhasable() bool

	baselineFee(tx *Transaction) Fee
	nextFee(tx *Transaction) Fee
	baselineFeeHeight() int32
	nextFeeHeight() int32
}

// Encryptable appendages carry a pending plaintext until the builder seals
// them with the sender's secret phrase.
type Encryptable interface {
	Encrypt(secretPhrase string) error
}

// Prunable appendages contribute only a hash to the wire format; the payload
// lives out of band and is rehydrated lazily.
type Prunable interface {
	loadPrunable(tx *Transaction, includeExpired bool)
	// HasPayload reports whether the payload is currently available.
	HasPayload() bool
}

// baseAppendix carries the version byte and the default fee schedule heights
// shared by all appendages; each appendage supplies its own fee.
type baseAppendix struct {
	version byte
}

func (a baseAppendix) Version() byte {
	return a.version
}

// sizeWithVersion accounts for the version byte v1+ transactions carry in
// front of each appendage.
func (a baseAppendix) sizeWithVersion(txVersion byte, mySize int) int {
	if txVersion > 0 {
		return mySize + 1
	}
	return mySize
}

func (a baseAppendix) putVersion(w *io.BinWriter, txVersion byte) {
	if txVersion > 0 {
		w.WriteB(a.version)
	}
}

// parseAppendixVersion reads the appendage version byte for v1+
// transactions; v0 appendages have no version byte and version 0.
func parseAppendixVersion(r *io.BinReader, txVersion byte) byte {
	if txVersion == 0 {
		return 0
	}
	return r.ReadB()
}

func (a baseAppendix) verifyVersion(txVersion byte) bool {
	if txVersion == 0 {
		return a.version == 0
	}
	return a.version == 1
}

func (a baseAppendix) validateAtFinish(*Transaction) error {
	return nil
}

func (a baseAppendix) baselineFeeHeight() int32 {
	return 0
}

func (a baseAppendix) nextFeeHeight() int32 {
	return noFeeChangeHeight
}

// isPhased reports whether the effects of the appendage are deferred to the
// phasing poll resolution.
func isPhased(a Appendix, tx *Transaction) bool {
	return a.isPhasable() && tx.phasing != nil
}

// versionKey is the JSON marker key identifying an appendage in the merged
// attachment object.
func versionKey(name string) string {
	return "version." + name
}

func putVersionJSON(a Appendix, obj *ojson.OrderedObject) {
	*obj = append(*obj, ojson.Member{Key: versionKey(a.Name()), Value: int64(a.Version())})
}
