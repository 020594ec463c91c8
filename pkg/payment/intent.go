package payment

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Status is the stage a payment intent has reached
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusSubmitting           Status = "submitting"
	StatusAwaitingConfirmation Status = "awaiting-confirmation"
	StatusConfirmed            Status = "confirmed"
	StatusFailed               Status = "failed"
)

// Intent is one checkout's payment attempt. The transaction id is set only
// once the intent reaches awaiting-confirmation.
type Intent struct {
	mu sync.RWMutex

	orderID       string
	amount        decimal.Decimal
	walletAddress string

	status        Status
	transactionID string
	hash          string
	err           error
	retried       bool
	history       []Status
}

// NewIntent creates an idle intent
func NewIntent(orderID string, amount decimal.Decimal, walletAddress string) *Intent {
	return &Intent{
		orderID:       orderID,
		amount:        amount,
		walletAddress: walletAddress,
		status:        StatusIdle,
		history:       []Status{StatusIdle},
	}
}

// OrderID returns the client-generated order reference
func (i *Intent) OrderID() string { return i.orderID }

// Amount returns the token amount
func (i *Intent) Amount() decimal.Decimal { return i.amount }

// WalletAddress returns the payer's address
func (i *Intent) WalletAddress() string { return i.walletAddress }

// Status returns the current stage
func (i *Intent) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// TransactionID returns the id assigned when the wallet accepted the transfer
func (i *Intent) TransactionID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.transactionID
}

// Hash returns the on-chain hash once confirmed
func (i *Intent) Hash() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.hash
}

// Err returns the failure that moved the intent to failed
func (i *Intent) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.err
}

// History returns every status the intent has been in, oldest first
func (i *Intent) History() []Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]Status(nil), i.history...)
}

// CanRetryWithApproval reports whether the one-shot allowance retry is open
func (i *Intent) CanRetryWithApproval() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.canRetryLocked()
}

func (i *Intent) canRetryLocked() bool {
	return i.status == StatusFailed && !i.retried && IsRetryable(i.err)
}

func (i *Intent) setLocked(s Status) {
	i.status = s
	i.history = append(i.history, s)
}

func (i *Intent) begin() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status != StatusIdle {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.status, StatusSubmitting)
	}
	i.setLocked(StatusSubmitting)
	return nil
}

func (i *Intent) beginRetry() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.canRetryLocked() {
		return ErrRetryNotAllowed
	}
	i.retried = true
	i.err = nil
	i.setLocked(StatusSubmitting)
	return nil
}

func (i *Intent) accept(transactionID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status != StatusSubmitting {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.status, StatusAwaitingConfirmation)
	}
	if transactionID == "" {
		return ErrMissingTransactionID
	}
	i.transactionID = transactionID
	i.setLocked(StatusAwaitingConfirmation)
	return nil
}

func (i *Intent) confirm(hash string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status != StatusAwaitingConfirmation {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.status, StatusConfirmed)
	}
	i.hash = hash
	i.setLocked(StatusConfirmed)
	return nil
}

func (i *Intent) fail(err error) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status != StatusSubmitting && i.status != StatusAwaitingConfirmation {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.status, StatusFailed)
	}
	i.err = err
	i.setLocked(StatusFailed)
	return nil
}
