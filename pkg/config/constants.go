package config

// Consensus-critical protocol parameters. Changing any of these forks the
// network.
const (
	// OneQBR is the number of NQT in one whole coin.
	OneQBR = int64(100_000_000)

	// MaxBalanceQBR is the total money supply in whole coins.
	MaxBalanceQBR = int64(1_000_000_000)

	// MaxBalanceQNT is the total money supply in NQT. No amount or fee may
	// exceed it.
	MaxBalanceQNT = MaxBalanceQBR * OneQBR

	// MinTransactionSize is the byte size of a transaction with an empty
	// attachment and no appendages.
	MinTransactionSize = 176

	// MaxNumberOfTransactions bounds the transaction count of a single block.
	MaxNumberOfTransactions = 255

	// MaxPayloadLength is the upper bound on the full size of a single
	// transaction as well as on the total transaction payload of a block.
	MaxPayloadLength = MaxNumberOfTransactions * MinTransactionSize

	// UnconfirmedPoolDepositQNT is the anti-spam deposit debited from the
	// sender of a transaction carrying a referenced transaction hash.
	UnconfirmedPoolDepositQNT = 100 * OneQBR

	// CreatorID is the genesis creator account. It substitutes the recipient
	// field on the wire for transaction types that cannot have one.
	CreatorID = uint64(1739068987193023818)

	// CoinSymbol is used in operator-facing messages only.
	CoinSymbol = "QBR"
)

// Appendage limits.
const (
	// MaxArbitraryMessageLength bounds the payload of a plain message
	// appendage.
	MaxArbitraryMessageLength = 160

	// MaxEncryptedMessageLength bounds the ciphertext of an encrypted
	// message appendage, tag included.
	MaxEncryptedMessageLength = 1000

	// MaxPrunableMessageLength bounds prunable message payloads, which are
	// carried out of band and contribute only a 32-byte hash to the wire
	// format.
	MaxPrunableMessageLength = 42 * 1024

	// MaxPhasingDuration is the farthest ahead, in blocks, a phased
	// transaction may set its finish height.
	MaxPhasingDuration = 14 * 1440

	// MaxPhasingWhitelistSize bounds the approval whitelist of a phasing
	// appendage.
	MaxPhasingWhitelistSize = 10

	// MaxAccountNameLength and MaxAccountDescriptionLength bound the
	// account info attachment.
	MaxAccountNameLength        = 100
	MaxAccountDescriptionLength = 1000
)

// EpochBeginning is the protocol epoch as a Unix timestamp (seconds).
// Transaction timestamps count seconds from this instant.
const EpochBeginning = int64(1385294400)
