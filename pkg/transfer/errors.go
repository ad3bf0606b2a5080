package transfer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-tools/pkg/solana"
)

var (
	// ErrRejected indicates the network executed and rejected the
	// transaction. Resubmitting the same transaction will not succeed.
	ErrRejected = errors.New("transaction rejected")

	// ErrConfirmationTimeout indicates the transaction was submitted but not
	// observed at the requested commitment in time. It may still land, so
	// callers must check its status before submitting a replacement.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")

	// ErrTransactionTooLarge indicates the encoded transaction exceeds
	// solana.MaxTransactionSize.
	ErrTransactionTooLarge = errors.New("transaction too large")

	// ErrInsufficientFunds indicates the balance cannot cover the fee.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// RejectedError carries the network's reason for rejecting a transaction.
// Reason is nil when the node refused the transaction before executing it,
// in which case Message holds the node's explanation.
type RejectedError struct {
	Signature solana.Signature
	Reason    *solana.TransactionError
	Message   string
}

func (e *RejectedError) Error() string {
	switch {
	case e.Reason != nil:
		return fmt.Sprintf("%v: %s: %v", ErrRejected, e.Signature, e.Reason)
	case e.Message != "":
		return fmt.Sprintf("%v: %s: %s", ErrRejected, e.Signature, e.Message)
	}
	return fmt.Sprintf("%v: %s", ErrRejected, e.Signature)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func (e *RejectedError) Unwrap() error {
	if e.Reason == nil {
		return nil
	}
	return e.Reason
}

// TimeoutError carries the signature of a transaction whose outcome is
// unknown.
type TimeoutError struct {
	Signature solana.Signature
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrConfirmationTimeout, e.Signature, e.Err)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrConfirmationTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// InsufficientFundsError reports a balance that cannot cover the fee.
type InsufficientFundsError struct {
	Balance uint64
	Fee     uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%v: balance %d < fee %d", ErrInsufficientFunds, e.Balance, e.Fee)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
