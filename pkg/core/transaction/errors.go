package transaction

import (
	"errors"
	"fmt"
)

var (
	// ErrNotValid is returned for permanently invalid transactions:
	// malformed bytes, unknown type codes, violated invariants, size
	// overflows, double-signing. Peer traffic carrying such transactions
	// should be dropped and blacklisted by the caller.
	ErrNotValid = errors.New("transaction not valid")

	// ErrNotCurrentlyValid is returned for transactions that may become
	// valid later or on another chain state: fee below the current minimum,
	// economic cluster block ahead of the chain or mismatched (fork),
	// account restrictions failing at the current state.
	ErrNotCurrentlyValid = errors.New("transaction not currently valid")

	// ErrNotSigned is returned when the id or full hash of an unsigned
	// transaction is read. This is a programmer error, not an input error.
	ErrNotSigned = errors.New("transaction is not signed yet")

	// ErrIndexNotSet is returned when the block index of a transaction that
	// has not been attached to a block is read.
	ErrIndexNotSet = errors.New("transaction index has not been set")
)

func notValidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotValid, fmt.Sprintf(format, args...))
}

func notCurrentlyValidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotCurrentlyValid, fmt.Sprintf(format, args...))
}
