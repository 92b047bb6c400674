package transaction

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/crypto"
)

func TestSendMoneyHappyPath(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)

	b, err := tx.Bytes()
	require.NoError(t, err)
	assert.Equal(t, 176, len(b))
	assert.Equal(t, 176, tx.Size())
	assert.Equal(t, 176, tx.FullSize())

	assert.True(t, tx.VerifySignature())
	require.NoError(t, tx.Validate())

	id, err := tx.ID()
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, err := tx.ID()
		require.NoError(t, err)
		assert.Equal(t, id, again)
	}
	fullHash, err := tx.FullHash()
	require.NoError(t, err)
	assert.Equal(t, id, binary.LittleEndian.Uint64(fullHash[:8]))
}

func TestWireLayout(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	b, err := tx.Bytes()
	require.NoError(t, err)

	assert.Equal(t, byte(0), b[0])
	assert.Equal(t, byte(1<<4|0), b[1])
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(b[2:6]))
	assert.Equal(t, uint16(1440), binary.LittleEndian.Uint16(b[6:8]))
	assert.Equal(t, testSenderPublicKey(), b[8:40])
	assert.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(b[40:48]))
	assert.Equal(t, uint64(500_000_000), binary.LittleEndian.Uint64(b[48:56]))
	assert.Equal(t, uint64(100_000_000), binary.LittleEndian.Uint64(b[56:64]))
	assert.Equal(t, make([]byte, 32), b[64:96])
	assert.Equal(t, tx.Signature(), b[96:160])
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[160:164]))
	assert.Equal(t, uint32(10), binary.LittleEndian.Uint32(b[164:168]))
	assert.Equal(t, uint64(0xAAAAAAAAAAAAAAAA), binary.LittleEndian.Uint64(b[168:176]))
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	b, err := tx.Bytes()
	require.NoError(t, err)

	_, err = ctx.NewBuilderFromBytes(append(b, 0x00))
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "too long")
}

func TestFlagAppendageAlignment(t *testing.T) {
	ctx := newTestContext()
	plain, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)

	tx, err := newPaymentBuilder(ctx).Message(NewTextMessage("hi")).Sign(testSecretPhrase)
	require.NoError(t, err)
	b, err := tx.Bytes()
	require.NoError(t, err)

	assert.Equal(t, uint32(0x01), binary.LittleEndian.Uint32(b[160:164]))
	assert.Equal(t, plain.Size()+1+4+2, len(b))

	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	decoded, err := builder.Build()
	require.NoError(t, err)
	require.NotNil(t, decoded.Message())
	assert.Equal(t, []byte("hi"), decoded.Message().MessageBytes())
	assert.True(t, decoded.Message().IsText())
	// The message appendage directly follows the header.
	assert.IsType(t, &Message{}, decoded.Appendages()[1])
}

func TestResignRefused(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	b, err := tx.Bytes()
	require.NoError(t, err)

	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	_, err = builder.Sign(testSecretPhrase)
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "already signed")
}

func TestDoubleSignRefused(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	builder := newPaymentBuilder(ctx).withSignature(tx.Signature())
	_, err = builder.Sign(testSecretPhrase)
	require.ErrorIs(t, err, ErrNotValid)
}

func TestFeeFloor(t *testing.T) {
	ctx := newTestContext()
	require.True(t, ctx.Config.CorrectInvalidFees)

	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, 0, 1440,
		newEmptyAttachment(OrdinaryPayment)).
		RecipientID(0x1122334455667788).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	assert.Equal(t, config.OneQBR, tx.FeeNQT())
	require.NoError(t, tx.Validate())

	// With fee correction off, a fee below the floor is signed verbatim and
	// the transaction is rejected as not currently valid.
	noCorrect := *ctx
	noCorrect.Config.CorrectInvalidFees = false
	lowFee, err := newPaymentBuilderWithFee(&noCorrect, 1).Sign(testSecretPhrase)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lowFee.FeeNQT())
	err = lowFee.Validate()
	require.ErrorIs(t, err, ErrNotCurrentlyValid)
	assert.Contains(t, err.Error(), "minimum fee")
}

func TestFeeBackfillSkipsSignedInput(t *testing.T) {
	ctx := newTestContext()
	noCorrect := *ctx
	noCorrect.Config.CorrectInvalidFees = false
	signed, err := newPaymentBuilderWithFee(&noCorrect, 1).Sign(testSecretPhrase)
	require.NoError(t, err)
	b, err := signed.Bytes()
	require.NoError(t, err)

	// Decoding with fee correction enabled must not rewrite the fee of
	// already signed input; the id would change with it.
	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	decoded, err := builder.Build()
	require.NoError(t, err)
	assert.Equal(t, int64(1), decoded.FeeNQT())
	wantID, err := signed.ID()
	require.NoError(t, err)
	gotID, err := decoded.ID()
	require.NoError(t, err)
	assert.Equal(t, wantID, gotID)
}

func TestECFork(t *testing.T) {
	ctx := newTestContext()
	ctx.BlockDb = testBlockDb{10: 0xBEEF}
	tx, err := newPaymentBuilder(ctx).
		ECBlockHeight(10).
		ECBlockID(0xDEAD).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = tx.Validate()
	require.ErrorIs(t, err, ErrNotCurrentlyValid)
	assert.Contains(t, err.Error(), "generated on a fork")
}

func TestECBlockAheadOfChain(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).
		ECBlockHeight(100).
		ECBlockID(0xDEAD).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = tx.Validate()
	require.ErrorIs(t, err, ErrNotCurrentlyValid)
	assert.Contains(t, err.Error(), "exceeds blockchain height")
}

func TestBinaryRoundTrip(t *testing.T) {
	ctx := newTestContext()
	recipientSecret := "another phrase entirely"
	recipientPub := crypto.PublicKey(recipientSecret)
	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, 0, 1440,
		newEmptyAttachment(OrdinaryPayment)).
		RecipientID(crypto.AccountID(recipientPub)).
		Timestamp(100).
		Message(NewTextMessage("round trip")).
		PublicKeyAnnouncement(NewPublicKeyAnnouncement(recipientPub)).
		EncryptedMessage(NewEncryptedMessage([]byte("sealed"), true, recipientPub)).
		Sign(testSecretPhrase)
	require.NoError(t, err)

	b, err := tx.Bytes()
	require.NoError(t, err)
	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	decoded, err := builder.Build()
	require.NoError(t, err)

	assertSameConsensusFields(t, tx, decoded)

	// And the re-encoded bytes are bit identical.
	b2, err := decoded.Bytes()
	require.NoError(t, err)
	assert.Equal(t, b, b2)
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).
		Message(NewTextMessage("via json")).
		Sign(testSecretPhrase)
	require.NoError(t, err)

	data, err := tx.MarshalJSON()
	require.NoError(t, err)
	decoded, err := ctx.ParseTransaction(data)
	require.NoError(t, err)

	assertSameConsensusFields(t, tx, decoded)
}

func TestJSONRejectsBadSignature(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	data, err := tx.MarshalJSON()
	require.NoError(t, err)

	// Flip one byte inside the hex encoded signature.
	tampered := []byte(string(data))
	i := indexOf(t, tampered, `"signature":"`) + len(`"signature":"`)
	if tampered[i] == '0' {
		tampered[i] = '1'
	} else {
		tampered[i] = '0'
	}
	_, err = ctx.ParseTransaction(tampered)
	require.ErrorIs(t, err, ErrNotValid)
}

func TestIDStability(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	id, err := tx.ID()
	require.NoError(t, err)
	hash, err := tx.FullHash()
	require.NoError(t, err)
	b, err := tx.Bytes()
	require.NoError(t, err)

	tx.SetBlock(42, 15, 1000)
	tx.SetIndex(3)
	tx.UnsetBlock()

	id2, err := tx.ID()
	require.NoError(t, err)
	hash2, err := tx.FullHash()
	require.NoError(t, err)
	b2, err := tx.Bytes()
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Equal(t, hash, hash2)
	assert.Equal(t, b, b2)
	// Height survives detachment for reinclusion priority.
	assert.Equal(t, int32(15), tx.Height())
}

func TestUnsignedIdentityIsAnError(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Build()
	require.NoError(t, err)
	_, err = tx.ID()
	require.ErrorIs(t, err, ErrNotSigned)
	_, err = tx.FullHash()
	require.ErrorIs(t, err, ErrNotSigned)
	_, err = tx.StringID()
	require.ErrorIs(t, err, ErrNotSigned)
	_, err = tx.Index()
	require.ErrorIs(t, err, ErrIndexNotSet)
}

func TestRecipientRule(t *testing.T) {
	ctx := newTestContext()
	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 0, config.OneQBR, 1440,
		NewAccountInfoAttachment("alice", "first account")).
		RecipientID(0x1122334455667788).
		Timestamp(100).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = tx.Validate()
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "recipient == 0")

	// The wire format replaces the absent recipient with the creator id.
	ok, err := ctx.NewBuilder(1, testSenderPublicKey(), 0, config.OneQBR, 1440,
		NewAccountInfoAttachment("alice", "first account")).
		Timestamp(100).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.NoError(t, ok.Validate())
	b, err := ok.Bytes()
	require.NoError(t, err)
	assert.Equal(t, config.CreatorID, binary.LittleEndian.Uint64(b[40:48]))

	// It does not round-trip into a recipient.
	builder, err := ctx.NewBuilderFromBytes(b)
	require.NoError(t, err)
	decoded, err := builder.Build()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), decoded.RecipientID())
	require.NoError(t, decoded.Validate())
}

func TestMustHaveRecipient(t *testing.T) {
	ctx := newTestContext()
	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, config.OneQBR, 1440,
		newEmptyAttachment(OrdinaryPayment)).
		Timestamp(100).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = tx.Validate()
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "valid recipient")
}

func TestPayloadSizeBound(t *testing.T) {
	ctx := newTestContext()
	// Each payload is within its own appendage limit; together they blow
	// the transaction payload bound.
	big := make([]byte, 42*1024)
	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 0, 0, 1440,
		newEmptyAttachment(ArbitraryMessage)).
		Timestamp(100).
		PrunablePlainMessage(NewPrunablePlainMessage(big, false)).
		PrunableEncryptedMessage(NewPrunableEncryptedMessage(crypto.EncryptedData{
			Data:  big,
			Nonce: make([]byte, crypto.NonceLength),
		}, false)).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = tx.Validate()
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "maximum payload size")
}

func TestDeadlineAndFeeInvariants(t *testing.T) {
	ctx := newTestContext()
	tx, err := ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, config.OneQBR, 0,
		newEmptyAttachment(OrdinaryPayment)).
		RecipientID(1).
		Timestamp(100).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.ErrorIs(t, tx.Validate(), ErrNotValid)

	genesis, err := ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, config.OneQBR, 1,
		newEmptyAttachment(OrdinaryPayment)).
		RecipientID(1).
		Timestamp(0).
		Genesis().
		Sign(testSecretPhrase)
	require.NoError(t, err)
	err = genesis.Validate()
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "genesis")
}

func TestUnknownTypeRejected(t *testing.T) {
	ctx := newTestContext()
	tx, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	b, err := tx.Bytes()
	require.NoError(t, err)
	b[0] = 0x7f
	_, err = ctx.NewBuilderFromBytes(b)
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "invalid transaction type")
}

func TestFeeFloorMonotonicity(t *testing.T) {
	ctx := newTestContext()
	bare, err := newPaymentBuilderWithFee(ctx, 0).Sign(testSecretPhrase)
	require.NoError(t, err)
	withMessage, err := newPaymentBuilderWithFee(ctx, 0).
		Message(NewTextMessage("m")).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	withBoth, err := newPaymentBuilderWithFee(ctx, 0).
		Message(NewTextMessage("m")).
		PrunablePlainMessage(NewPrunablePlainMessage([]byte("p"), true)).
		Sign(testSecretPhrase)
	require.NoError(t, err)

	assert.LessOrEqual(t, bare.FeeNQT(), withMessage.FeeNQT())
	assert.LessOrEqual(t, withMessage.FeeNQT(), withBoth.FeeNQT())
}

func TestReferencedHashRaisesFeeFloor(t *testing.T) {
	ctx := newTestContext()
	ref := make([]byte, 32)
	ref[0] = 1
	tx, err := newPaymentBuilderWithFee(ctx, 0).
		ReferencedTransactionFullHash(ref).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	assert.Equal(t, 2*config.OneQBR, tx.FeeNQT())
}

func TestValidateAtFinishSkipsChainChecks(t *testing.T) {
	ctx := newTestContext()
	ctx.BlockDb = testBlockDb{10: 0xBEEF} // EC mismatch, would fail normally
	tx, err := newPaymentBuilder(ctx).
		Phasing(NewPhasing(25, VotingModelAccount, 1, []uint64{7})).
		Sign(testSecretPhrase)
	require.NoError(t, err)
	require.ErrorIs(t, tx.Validate(), ErrNotCurrentlyValid)

	id, err := tx.ID()
	require.NoError(t, err)
	ctx.Polls.(testPolls)[id] = true
	require.NoError(t, tx.Validate())
}

func TestSecretMismatchRefused(t *testing.T) {
	ctx := newTestContext()
	_, err := newPaymentBuilder(ctx).Sign("not the right phrase")
	require.ErrorIs(t, err, ErrNotValid)
	assert.Contains(t, err.Error(), "secret phrase")
}

func TestEqualByID(t *testing.T) {
	ctx := newTestContext()
	a, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	b, err := newPaymentBuilder(ctx).Sign(testSecretPhrase)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	unsigned, err := newPaymentBuilder(ctx).Build()
	require.NoError(t, err)
	assert.False(t, a.Equal(unsigned))
	assert.False(t, unsigned.Equal(a))
}

func newPaymentBuilderWithFee(ctx *Context, fee int64) *Builder {
	return ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, fee, 1440,
		newEmptyAttachment(OrdinaryPayment)).
		RecipientID(0x1122334455667788).
		Timestamp(100).
		ECBlockHeight(10).
		ECBlockID(0xAAAAAAAAAAAAAAAA)
}

func assertSameConsensusFields(t *testing.T, want, got *Transaction) {
	t.Helper()
	assert.Equal(t, want.Version(), got.Version())
	assert.Equal(t, want.Type(), got.Type())
	assert.Equal(t, want.Timestamp(), got.Timestamp())
	assert.Equal(t, want.Deadline(), got.Deadline())
	assert.Equal(t, want.SenderPublicKey(), got.SenderPublicKey())
	assert.Equal(t, want.RecipientID(), got.RecipientID())
	assert.Equal(t, want.AmountNQT(), got.AmountNQT())
	assert.Equal(t, want.FeeNQT(), got.FeeNQT())
	assert.Equal(t, want.ReferencedTransactionFullHash(), got.ReferencedTransactionFullHash())
	assert.Equal(t, want.Signature(), got.Signature())
	assert.Equal(t, want.ECBlockHeight(), got.ECBlockHeight())
	assert.Equal(t, want.ECBlockID(), got.ECBlockID())

	wantHash, err := want.FullHash()
	require.NoError(t, err)
	gotHash, err := got.FullHash()
	require.NoError(t, err)
	assert.Equal(t, wantHash, gotHash)
	wantID, err := want.ID()
	require.NoError(t, err)
	gotID, err := got.ID()
	require.NoError(t, err)
	assert.Equal(t, wantID, gotID)
}

func indexOf(t *testing.T, data []byte, sub string) int {
	t.Helper()
	i := 0
	for ; i+len(sub) <= len(data); i++ {
		if string(data[i:i+len(sub)]) == sub {
			return i
		}
	}
	t.Fatalf("%q not found", sub)
	return -1
}

func TestErrorKinds(t *testing.T) {
	assert.False(t, errors.Is(ErrNotValid, ErrNotCurrentlyValid))
	assert.False(t, errors.Is(notValidf("x"), ErrNotCurrentlyValid))
	assert.True(t, errors.Is(notValidf("x"), ErrNotValid))
	assert.True(t, errors.Is(notCurrentlyValidf("x"), ErrNotCurrentlyValid))
}
