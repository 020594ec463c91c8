package payment

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type pollOutcome int

const (
	pollConfirmed pollOutcome = iota
	pollFailed
	pollTimeout
	pollCancelled
)

// awaitConfirmation polls the status checker every poll interval until the
// transaction is confirmed, fails, the poll timeout elapses or ctx is done.
// Checker errors are treated as transient.
func (o *Orchestrator) awaitConfirmation(ctx context.Context, transactionID string) (pollOutcome, TransactionStatus) {
	if o.checker == nil {
		o.log.Warn("no transaction status checker configured, skipping confirmation",
			zap.String("transaction_id", transactionID))
		return pollTimeout, TransactionStatus{}
	}

	deadline := time.NewTimer(o.pollTimeout)
	defer deadline.Stop()

	for attempt := 1; ; attempt++ {
		// Check if context is already cancelled
		if ctx.Err() != nil {
			return pollCancelled, TransactionStatus{}
		}

		st, err := o.checker.TransactionStatus(ctx, transactionID)
		switch {
		case err != nil:
			o.metrics.RecordConfirmationPoll("error")
			o.log.Debug("transaction status check failed",
				zap.String("transaction_id", transactionID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		case st.Confirmed:
			o.metrics.RecordConfirmationPoll("confirmed")
			return pollConfirmed, st
		case st.Failed:
			o.metrics.RecordConfirmationPoll("failed")
			return pollFailed, st
		default:
			o.metrics.RecordConfirmationPoll("pending")
		}

		// Wait for the next poll, the deadline or cancellation
		select {
		case <-time.After(o.pollInterval):
		case <-deadline.C:
			o.metrics.RecordConfirmationPoll("timeout")
			return pollTimeout, TransactionStatus{}
		case <-ctx.Done():
			return pollCancelled, TransactionStatus{}
		}
	}
}
