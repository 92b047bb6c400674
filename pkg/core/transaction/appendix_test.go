package transaction

import (
	"encoding/binary"
	"testing"

	ojson "github.com/nspcc-dev/go-ordered-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/crypto"
)

func TestV0LegacyArbitraryMessage(t *testing.T) {
	ctx := newTestContext()

	// Handcraft a v0 arbitrary message transaction: 160-byte header, no
	// flags/EC section, implicit message appendage after the signature.
	b := make([]byte, 160, 160+4+2)
	b[0] = TypeMessaging
	b[1] = 0 // version 0, subtype 0
	binary.LittleEndian.PutUint32(b[2:6], 100)
	binary.LittleEndian.PutUint16(b[6:8], 1440)
	copy(b[8:40], testSenderPublicKey())
	binary.LittleEndian.PutUint64(b[40:48], 0x1122334455667788)
	// Meets the minimum fee so the unsigned-input fee backfill keeps it.
	binary.LittleEndian.PutUint64(b[56:64], uint64(3*config.OneQBR))
	b = binary.LittleEndian.AppendUint32(b, 2|uint32(0x80000000))
	b = append(b, 'h', 'i')

	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	tx, err := builder.Build()
	require.NoError(t, err)
	assert.Equal(t, byte(0), tx.Version())
	assert.Equal(t, ArbitraryMessage, tx.Type())
	require.NotNil(t, tx.Message())
	assert.Equal(t, byte(0), tx.Message().Version())
	assert.Equal(t, []byte("hi"), tx.Message().MessageBytes())
	assert.Equal(t, 160+6, tx.Size())

	// Unsigned v0 input re-encodes bit identically.
	out, err := tx.Bytes()
	require.NoError(t, err)
	assert.Equal(t, b, out)
}

func TestMessageTooLongRejected(t *testing.T) {
	ctx := newTestContext()
	long := make([]byte, config.MaxArbitraryMessageLength+1)
	tx, err := newPaymentBuilder(ctx).
		Message(NewMessage(long)).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.ErrorIs(t, tx.Validate(), ErrNotValid)
}

func TestEncryptedMessageRoundTrip(t *testing.T) {
	ctx := newTestContext()
	recipientSecret := "recipient secret phrase"
	recipientPub := crypto.PublicKey(recipientSecret)

	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, 0, 1440,
		newEmptyAttachment(OrdinaryPayment)).
		RecipientID(crypto.AccountID(recipientPub)).
		Timestamp(100).
		EncryptedMessage(NewEncryptedMessage([]byte("for your eyes only"), true, recipientPub)).
		Sign(testSecretPhrase)
	require.NoError(t, err)

	b, err := tx.Bytes()
	require.NoError(t, err)
	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	decoded, err := builder.Build()
	require.NoError(t, err)
	require.NotNil(t, decoded.EncryptedMessage())

	// The recipient opens it with the sender's public key.
	plaintext, err := decoded.EncryptedMessage().EncryptedData().Decrypt(recipientSecret, tx.SenderPublicKey())
	require.NoError(t, err)
	assert.Equal(t, []byte("for your eyes only"), plaintext)
}

func TestEncryptToSelfMessage(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).
		EncryptToSelfMessage(NewEncryptToSelfMessage([]byte("note to self"), true, testSenderPublicKey())).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.NoError(t, tx.Validate())

	plaintext, err := tx.EncryptToSelfMessage().EncryptedData().Decrypt(testSecretPhrase, testSenderPublicKey())
	require.NoError(t, err)
	assert.Equal(t, []byte("note to self"), plaintext)
}

func TestUnencryptedMessageCannotSerialize(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).
		EncryptedMessage(NewEncryptedMessage([]byte("pending"), true, testSenderPublicKey())).
		Build()
	require.NoError(t, err)
	_, err = tx.Bytes()
	require.ErrorIs(t, err, ErrNotValid)
}

func TestPublicKeyAnnouncementValidation(t *testing.T) {
	ctx := newTestContext()
	recipientPub := crypto.PublicKey("recipient secret phrase")

	// Announced key must match the recipient id.
	tx, err := newPaymentBuilder(ctx).
		PublicKeyAnnouncement(NewPublicKeyAnnouncement(recipientPub)).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = tx.Validate()
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "does not match recipient")

	ok, err := ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, config.OneQBR*2, 1440,
		newEmptyAttachment(OrdinaryPayment)).
		RecipientID(crypto.AccountID(recipientPub)).
		Timestamp(100).
		PublicKeyAnnouncement(NewPublicKeyAnnouncement(recipientPub)).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.NoError(t, ok.Validate())
}

func TestPhasingRoundTripAndValidation(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).
		Phasing(NewPhasing(25, VotingModelAccount, 2, []uint64{7, 9})).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.NoError(t, tx.Validate())

	b, err := tx.Bytes()
	require.NoError(t, err)
	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	decoded, err := builder.Build()
	require.NoError(t, err)
	require.NotNil(t, decoded.Phasing())
	assert.Equal(t, int32(25), decoded.Phasing().FinishHeight())
	assert.Equal(t, VotingModelAccount, decoded.Phasing().VotingModel())
	assert.Equal(t, int64(2), decoded.Phasing().Quorum())
	assert.Equal(t, []uint64{7, 9}, decoded.Phasing().Whitelist())

	past, err := newPaymentBuilder(ctx).
		Phasing(NewPhasing(5, VotingModelAccount, 1, nil)).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.ErrorIs(t, past.Validate(), ErrNotCurrentlyValid)

	overQuorum, err := newPaymentBuilder(ctx).
		Phasing(NewPhasing(25, VotingModelAccount, 3, []uint64{7, 9})).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.ErrorIs(t, overQuorum.Validate(), ErrNotValid)
}

func TestPrunableMessageSideChannel(t *testing.T) {
	ctx := newTestContext()
	payload := []byte("kept out of band")
	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 0, 0, 1440,
		newEmptyAttachment(ArbitraryMessage)).
		Timestamp(100).
		PrunablePlainMessage(NewPrunablePlainMessage(payload, true)).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.NoError(t, tx.Validate())

	b, err := tx.Bytes()
	require.NoError(t, err)
	// Only the 33-byte appendage (version + hash) hits the wire.
	assert.Equal(t, 176+33, len(b))
	assert.Equal(t, 176+33+len(payload), tx.FullSize())

	// Decoded without the side channel, the payload is gone but the hash
	// remains.
	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	pruned, err := builder.Build()
	require.NoError(t, err)
	require.True(t, pruned.HasPrunablePlainMessage())
	assert.False(t, pruned.PrunablePlainMessage().HasPayload())
	assert.Equal(t, tx.PrunablePlainMessage().Hash(), pruned.PrunablePlainMessage().Hash())

	// Rehydrated through the prunable attachment bag.
	var bag map[string]any
	prunableJSON := tx.PrunableAttachmentJSON()
	require.NotNil(t, prunableJSON)
	bag = orderedToMap(prunableJSON)
	builder, err = ctx.NewBuilderFromBytesAndPrunable(b, bag)
	require.NoError(t, err)
	restored, err := builder.Build()
	require.NoError(t, err)
	require.True(t, restored.PrunablePlainMessage().HasPayload())
	assert.Equal(t, payload, restored.PrunablePlainMessage().MessageBytes())
	require.NoError(t, restored.Validate())

	// Or lazily from archival storage.
	ctx.Prunables = &testPrunables{plainMessage: payload, plainIsText: true}
	require.True(t, pruned.PrunablePlainMessage().HasPayload())
	assert.Equal(t, payload, pruned.PrunablePlainMessage().MessageBytes())
}

func TestPrunableHashMismatchRejected(t *testing.T) {
	ctx := newTestContext()
	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 0, 0, 1440,
		newEmptyAttachment(ArbitraryMessage)).
		Timestamp(100).
		PrunablePlainMessage(&PrunablePlainMessage{
			baseAppendix: baseAppendix{version: 1},
			hash:         make([]byte, 32),
			message:      []byte("does not match the hash"),
			isText:       true,
		}).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = tx.Validate()
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "hash does not match")
}

func TestAppendixVersionChecked(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).
		Message(&Message{baseAppendix{version: 2}, []byte("hi"), true}).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = tx.Validate()
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "version")
}

func TestAccountInfoApply(t *testing.T) {
	ctx := newTestContext()
	sender := ctx.Ledger.(*testLedger).addAccount(testSenderPublicKey(), 10*config.OneQBR)
	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 0, config.OneQBR, 1440,
		NewAccountInfoAttachment("alice", "first account")).
		Timestamp(100).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.NoError(t, tx.Validate())

	require.True(t, tx.ApplyUnconfirmed())
	tx.Apply()
	assert.Equal(t, "alice", sender.name)
	assert.Equal(t, "first account", sender.description)
	assert.Equal(t, 9*config.OneQBR, sender.balance)
}

func TestAccountInfoBlockDuplicate(t *testing.T) {
	ctx := newTestContext()
	duplicates := make(Duplicates)
	first, err := ctx.NewBuilder(1, testSenderPublicKey(), 0, config.OneQBR, 1440,
		NewAccountInfoAttachment("alice", "")).
		Timestamp(100).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	second, err := ctx.NewBuilder(1, testSenderPublicKey(), 0, config.OneQBR, 1440,
		NewAccountInfoAttachment("bob", "")).
		Timestamp(101).
		Sign(testSecretPhrase)
	require.NoError(t, err)

	assert.False(t, first.AttachmentIsDuplicate(duplicates, true))
	assert.True(t, second.AttachmentIsDuplicate(duplicates, true))
}

func TestPaymentLifecycle(t *testing.T) {
	ctx := newTestContext()
	ledger := ctx.Ledger.(*testLedger)
	sender := ledger.addAccount(testSenderPublicKey(), 10*config.OneQBR)
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)

	require.True(t, tx.ApplyUnconfirmed())
	assert.Equal(t, 10*config.OneQBR-500_000_000-100_000_000, sender.unconfirmed)

	// The 4 QBR left cannot cover a second reservation of 14 QBR.
	second, err := newPaymentBuilderWithFee(ctx, 9*config.OneQBR).Sign(testSecretPhrase)
	require.NoError(t, err)
	assert.False(t, second.ApplyUnconfirmed())

	tx.UndoUnconfirmed()
	assert.Equal(t, 10*config.OneQBR, sender.unconfirmed)

	require.True(t, tx.ApplyUnconfirmed())
	tx.Apply()
	assert.Equal(t, 10*config.OneQBR-500_000_000-100_000_000, sender.balance)
	recipient := ledger.accounts[0x1122334455667788]
	require.NotNil(t, recipient)
	assert.Equal(t, int64(500_000_000), recipient.balance)
}

func TestPhasedApplyDefersAttachment(t *testing.T) {
	ctx := newTestContext()
	ledger := ctx.Ledger.(*testLedger)
	sender := ledger.addAccount(testSenderPublicKey(), 100*config.OneQBR)
	tx, err := newPaymentBuilderWithFee(ctx, 2*config.OneQBR).
		Phasing(NewPhasing(25, VotingModelAccount, 1, nil)).
		Sign(testSecretPhrase)
	require.NoError(t, err)

	tx.Apply()
	// Only the fee moved; the amount waits for the poll.
	assert.Equal(t, 100*config.OneQBR-2*config.OneQBR, sender.balance)
	recipient := ledger.accounts[0x1122334455667788]
	if recipient != nil {
		assert.Equal(t, int64(0), recipient.balance)
	}
	id, err := tx.ID()
	require.NoError(t, err)
	assert.True(t, ctx.Polls.Exists(id))

	tx.ApplyAtFinish()
	assert.Equal(t, 100*config.OneQBR-2*config.OneQBR-500_000_000, sender.balance)
	recipient = ledger.accounts[0x1122334455667788]
	require.NotNil(t, recipient)
	assert.Equal(t, int64(500_000_000), recipient.balance)
}

// orderedToMap converts an emitted ordered object into the generic map form
// the parsers accept.
func orderedToMap(obj ojson.OrderedObject) map[string]any {
	m := make(map[string]any, len(obj))
	for _, member := range obj {
		m[member.Key] = member.Value
	}
	return m
}
