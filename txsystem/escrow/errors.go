package escrow

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/nerwo/escrow-go/types"
)

var (
	ErrNotFound              = errors.New("transaction not found")
	ErrInvalidReceiver       = errors.New("invalid receiver address")
	ErrInvalidSender         = errors.New("invalid sender address")
	ErrInvalidTimeout        = errors.New("invalid payment timeout")
	ErrDisputeActive         = errors.New("transaction is disputed")
	ErrInvalidDisputeState   = errors.New("invalid dispute state")
	ErrInvalidRuling         = errors.New("invalid ruling")
	ErrTimeoutNotReached     = errors.New("payment timeout not reached")
	ErrValueNotAccepted      = errors.New("method does not accept value")
	ErrUnknownMethod         = errors.New("unknown method")
	ErrDebitExceedsRemaining = errors.New("debit exceeds remaining amount")
)

// InvalidCallerError is returned when the caller is not allowed to perform
// the action, Expected is the address which would be.
type InvalidCallerError struct {
	Expected types.Address
}

func (e *InvalidCallerError) Error() string {
	return fmt.Sprintf("invalid caller, expected %s", e.Expected)
}

// InvalidAmountError is returned when the requested amount is zero or
// exceeds what is held in custody. Max is the largest amount which would
// currently be accepted (zero once the transaction is settled).
type InvalidAmountError struct {
	Max uint256.Int
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount, max %s", e.Max.Dec())
}

// TransferFailedError is returned when sending value out of the escrow failed.
type TransferFailedError struct {
	Recipient types.Address
	Err       error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer to %s failed: %v", e.Recipient, e.Err)
}

func (e *TransferFailedError) Unwrap() error {
	return e.Err
}
