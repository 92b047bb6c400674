package transaction

import (
	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/crypto"
)

const testSecretPhrase = "leopard spring mountain silence arena brave pencil frost"

type testChain struct {
	height   int32
	ecHeight int32
	ecID     uint64
}

func (c *testChain) Height() int32 { return c.height }

func (c *testChain) ECBlock(int32) (int32, uint64) { return c.ecHeight, c.ecID }

type testBlockDb map[int32]uint64

func (db testBlockDb) FindBlockIDAtHeight(height int32) uint64 { return db[height] }

type testAccount struct {
	id          uint64
	balance     int64
	unconfirmed int64
	publicKey   []byte
	name        string
	description string
}

func (a *testAccount) ID() uint64 { return a.id }

func (a *testAccount) UnconfirmedBalanceNQT() int64 { return a.unconfirmed }

func (a *testAccount) ApplyPublicKey(publicKey []byte) {
	a.publicKey = publicKey
}

func (a *testAccount) SetAccountInfo(name, description string) {
	a.name = name
	a.description = description
}

func (a *testAccount) AddToBalanceNQT(_ LedgerEvent, _ uint64, amountNQT, feeNQT int64) {
	a.balance += amountNQT + feeNQT
}

func (a *testAccount) AddToUnconfirmedBalanceNQT(_ LedgerEvent, _ uint64, amountNQT, feeNQT int64) {
	a.unconfirmed += amountNQT + feeNQT
}

func (a *testAccount) AddToBalanceAndUnconfirmedBalanceNQT(_ LedgerEvent, _ uint64, amountNQT int64) {
	a.balance += amountNQT
	a.unconfirmed += amountNQT
}

type testLedger struct {
	accounts map[uint64]*testAccount
	keys     map[uint64][]byte
}

func newTestLedger() *testLedger {
	return &testLedger{
		accounts: make(map[uint64]*testAccount),
		keys:     make(map[uint64][]byte),
	}
}

func (l *testLedger) addAccount(publicKey []byte, balance int64) *testAccount {
	id := crypto.AccountID(publicKey)
	acc := &testAccount{id: id, balance: balance, unconfirmed: balance, publicKey: publicKey}
	l.accounts[id] = acc
	l.keys[id] = publicKey
	return acc
}

func (l *testLedger) PublicKey(id uint64) []byte { return l.keys[id] }

func (l *testLedger) SetOrVerify(id uint64, publicKey []byte) bool {
	known, ok := l.keys[id]
	if !ok {
		l.keys[id] = publicKey
		return true
	}
	return string(known) == string(publicKey)
}

func (l *testLedger) Account(id uint64) Account {
	acc, ok := l.accounts[id]
	if !ok {
		return nil
	}
	return acc
}

func (l *testLedger) AddOrGetAccount(id uint64) Account {
	if acc, ok := l.accounts[id]; ok {
		return acc
	}
	acc := &testAccount{id: id}
	l.accounts[id] = acc
	return acc
}

type testPolls map[uint64]bool

func (p testPolls) Exists(txID uint64) bool { return p[txID] }

func (p testPolls) Add(tx *Transaction, _ *Phasing) {
	if id, err := tx.ID(); err == nil {
		p[id] = true
	}
}

type testClock int32

func (c testClock) Time() int32 { return int32(c) }

type testPrunables struct {
	plainMessage []byte
	plainIsText  bool
	encrypted    crypto.EncryptedData
	encIsText    bool
}

func (p *testPrunables) PlainMessage(uint64, bool) ([]byte, bool, bool) {
	return p.plainMessage, p.plainIsText, p.plainMessage != nil
}

func (p *testPrunables) EncryptedMessage(uint64, bool) (crypto.EncryptedData, bool, bool) {
	return p.encrypted, p.encIsText, p.encrypted.Data != nil
}

// newTestContext returns a context bound to a chain at height 20 whose
// block at height 10 matches the default EC block of new transactions.
func newTestContext() *Context {
	cfg := config.DefaultProtocolConfiguration()
	return &Context{
		Config:  cfg,
		Chain:   &testChain{height: 20, ecHeight: 10, ecID: 0xAAAAAAAAAAAAAAAA},
		BlockDb: testBlockDb{10: 0xAAAAAAAAAAAAAAAA},
		Ledger:  newTestLedger(),
		Polls:   testPolls{},
		Clock:   testClock(100),
	}
}

func testSenderPublicKey() []byte {
	return crypto.PublicKey(testSecretPhrase)
}

// newPaymentBuilder is the S1 transaction: SendMoney v1, timestamp 100,
// deadline 1440, amount 5 QBR, fee 1 QBR.
func newPaymentBuilder(ctx *Context) *Builder {
	return ctx.NewBuilder(1, testSenderPublicKey(), 500_000_000, 100_000_000, 1440,
		newEmptyAttachment(OrdinaryPayment)).
		RecipientID(0x1122334455667788).
		Timestamp(100).
		ECBlockHeight(10).
		ECBlockID(0xAAAAAAAAAAAAAAAA)
}
