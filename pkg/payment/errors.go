package payment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrWalletUnavailable is returned when no wallet is configured
	ErrWalletUnavailable = errors.New("wallet is not available")

	// ErrInvalidAmount is returned for empty, malformed or non-positive amounts
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrPrecisionLoss is returned when an amount has more than 18 fractional digits
	ErrPrecisionLoss = errors.New("amount exceeds token precision")

	// ErrMissingTransactionID is returned when the wallet accepts a transfer without an id
	ErrMissingTransactionID = errors.New("wallet accepted transfer without a transaction id")

	// ErrTransactionFailed is returned when the chain reports the transfer failed
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConfirmationTimeout is set on a successful Result whose transfer was
	// not confirmed before the poll timeout
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")

	// ErrRetryNotAllowed is returned when the allowance retry is not applicable
	ErrRetryNotAllowed = errors.New("allowance retry not allowed")

	// ErrPaymentIncomplete is returned when placing an order before a transfer was accepted
	ErrPaymentIncomplete = errors.New("payment has not been submitted")

	// ErrOrderAlreadyPlaced is returned on a second order creation for the same checkout
	ErrOrderAlreadyPlaced = errors.New("order already placed for this checkout")

	// ErrInsufficientBalance is returned when the wallet balance does not cover the total
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidTransition is returned for state changes the intent does not allow
	ErrInvalidTransition = errors.New("invalid payment state transition")
)

// Wallet error codes
const (
	CodeInsufficientAllowance = "insufficient_allowance"
	CodeUserRejected          = "user_rejected"
	CodeInsufficientBalance   = "insufficient_balance"
	CodeInvalidReceiver       = "invalid_receiver"
	CodeTransactionFailed     = "transaction_failed"
	CodeGenericError          = "generic_error"
)

var walletMessages = map[string]string{
	CodeInsufficientAllowance: "The token allowance is too low. Approve the payment and try again.",
	CodeUserRejected:          "The payment was cancelled in the wallet.",
	CodeInsufficientBalance:   "The wallet does not hold enough tokens for this payment.",
	CodeInvalidReceiver:       "The payment recipient was rejected by the wallet.",
	CodeTransactionFailed:     "The transaction could not be completed.",
}

// WalletError is a failure reported by the wallet for a transfer or approval
type WalletError struct {
	Code string
}

func (e *WalletError) Error() string {
	return "wallet error: " + e.Code
}

// Message returns a human readable description of the code
func (e *WalletError) Message() string {
	if msg, ok := walletMessages[e.Code]; ok {
		return msg
	}
	return "The payment could not be completed. Please try again."
}

// ReconciliationError means the transfer went through but the order was not
// recorded. It must be resolved by hand using TransactionID.
type ReconciliationError struct {
	OrderID       string
	TransactionID string
	Err           error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment submitted (transaction %s) but order %s was not recorded: %v",
		e.TransactionID, e.OrderID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// PendingConfirmationError is returned by Checkout.Run when waiting for
// confirmation stopped after the wallet accepted the transfer. The order is
// not placed; call Checkout.PlaceOrder once the caller can continue.
type PendingConfirmationError struct {
	OrderID       string
	TransactionID string
	Err           error
}

func (e *PendingConfirmationError) Error() string {
	return fmt.Sprintf("transfer %s for order %s accepted but not confirmed: %v",
		e.TransactionID, e.OrderID, e.Err)
}

func (e *PendingConfirmationError) Unwrap() error {
	return e.Err
}

// ValidationError carries per-field messages for the checkout form
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsRetryable reports whether err offers the one-shot allowance retry
func IsRetryable(err error) bool {
	var we *WalletError
	return errors.As(err, &we) && we.Code == CodeInsufficientAllowance
}

// IsReconciliation reports whether err needs manual reconciliation
func IsReconciliation(err error) bool {
	var re *ReconciliationError
	return errors.As(err, &re)
}
