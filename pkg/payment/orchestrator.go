package payment

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wldstore/storefront/pkg/metrics"
	"github.com/wldstore/storefront/pkg/orderguard"
)

// Result is the outcome of a payment attempt. Failures are reported here
// rather than returned as errors. A confirmation timeout is a success that
// carries ErrConfirmationTimeout in Err.
type Result struct {
	Success       bool
	OrderID       string
	TransactionID string
	Confirmed     bool   // the chain confirmed the transfer before the poll ended
	Hash          string // on-chain hash when confirmed
	Error         string // machine readable code, e.g. insufficient_allowance
	Message       string // human readable description
	Err           error
}

// Retryable reports whether the allowance retry is offered for this result
func (r Result) Retryable() bool {
	return IsRetryable(r.Err)
}

// Orchestrator submits token transfers and follows them to confirmation
type Orchestrator struct {
	wallet  Wallet
	checker StatusChecker
	orders  OrderCreator
	guard   orderguard.Store

	tokenAddress string
	recipient    string
	pollInterval time.Duration
	pollTimeout  time.Duration
	guardTTL     time.Duration

	log     *zap.Logger
	metrics metrics.Collector
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTokenAddress sets the token contract address
func WithTokenAddress(addr string) Option {
	return func(o *Orchestrator) {
		o.tokenAddress = addr
	}
}

// WithRecipient sets the address receiving payments
func WithRecipient(addr string) Option {
	return func(o *Orchestrator) {
		o.recipient = addr
	}
}

// WithPollInterval sets the pause between confirmation checks
// Default: 3s
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithPollTimeout sets how long to wait for confirmation
// Default: 5m
func WithPollTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollTimeout = d
		}
	}
}

// WithOrderCreator sets the backend that records orders
func WithOrderCreator(c OrderCreator) Option {
	return func(o *Orchestrator) {
		o.orders = c
	}
}

// WithOrderGuard sets the store that makes order creation at most once
// Default: in-process memory store
func WithOrderGuard(g orderguard.Store, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.guard = g
		}
		if ttl > 0 {
			o.guardTTL = ttl
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(c metrics.Collector) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.metrics = c
		}
	}
}

// New creates an orchestrator. A nil wallet is allowed; every payment
// then fails with ErrWalletUnavailable.
func New(wallet Wallet, checker StatusChecker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		wallet:       wallet,
		checker:      checker,
		guard:        orderguard.NewMemoryStore(),
		pollInterval: 3 * time.Second,
		pollTimeout:  5 * time.Minute,
		guardTTL:     orderguard.DefaultTTL,
		log:          zap.NewNop(),
		metrics:      metrics.Nop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// ProcessPayment converts the intent's amount, submits the transfer with the
// order id as reference and waits for confirmation. A confirmation timeout
// still counts as success since the transfer may land later.
func (o *Orchestrator) ProcessPayment(ctx context.Context, intent *Intent) Result {
	res := Result{OrderID: intent.OrderID()}

	if o.wallet == nil {
		return o.failed(res, ErrWalletUnavailable)
	}

	units, err := DecimalToMinimalUnits(intent.Amount())
	if err != nil {
		return o.failed(res, err)
	}

	if err := intent.begin(); err != nil {
		return o.failed(res, err)
	}

	o.log.Info("submitting transfer",
		zap.String("order_id", intent.OrderID()),
		zap.String("amount", intent.Amount().String()),
	)
	return o.submit(ctx, intent, units)
}

// RetryWithApproval requests an allowance approval and resubmits the
// transfer with the same order id. It is allowed once, and only after an
// insufficient-allowance failure.
func (o *Orchestrator) RetryWithApproval(ctx context.Context, intent *Intent) Result {
	res := Result{OrderID: intent.OrderID()}

	if o.wallet == nil {
		return o.failed(res, ErrWalletUnavailable)
	}

	units, err := DecimalToMinimalUnits(intent.Amount())
	if err != nil {
		return o.failed(res, err)
	}

	if err := intent.beginRetry(); err != nil {
		return o.failed(res, err)
	}

	o.log.Info("requesting allowance approval", zap.String("order_id", intent.OrderID()))

	resp, err := o.wallet.Approve(ctx, ApprovalRequest{
		Token:   o.tokenAddress,
		Spender: o.recipient,
		Amount:  units,
	})
	if err == nil && resp.Status != TransferOK {
		err = walletError(resp.ErrorCode)
	}
	if err != nil {
		_ = intent.fail(err)
		return o.failed(res, err)
	}

	return o.submit(ctx, intent, units)
}

func (o *Orchestrator) submit(ctx context.Context, intent *Intent, units string) Result {
	res := Result{OrderID: intent.OrderID()}

	resp, err := o.wallet.SendTransfer(ctx, TransferRequest{
		Token:     o.tokenAddress,
		Recipient: o.recipient,
		Amount:    units,
		Reference: intent.OrderID(),
	})
	if err == nil && resp.Status != TransferOK {
		err = walletError(resp.ErrorCode)
	}
	if err == nil && resp.TransactionID == "" {
		err = ErrMissingTransactionID
	}
	if err != nil {
		_ = intent.fail(err)
		return o.failed(res, err)
	}

	if err := intent.accept(resp.TransactionID); err != nil {
		_ = intent.fail(err)
		return o.failed(res, err)
	}
	res.TransactionID = resp.TransactionID

	log := o.log.With(
		zap.String("order_id", intent.OrderID()),
		zap.String("transaction_id", resp.TransactionID),
	)
	log.Info("transfer accepted, awaiting confirmation")

	outcome, st := o.awaitConfirmation(ctx, resp.TransactionID)
	switch outcome {
	case pollConfirmed:
		_ = intent.confirm(st.Hash)
		res.Success = true
		res.Confirmed = true
		res.Hash = st.Hash
		o.metrics.RecordPayment("confirmed")
		log.Info("transfer confirmed", zap.String("hash", st.Hash))

	case pollFailed:
		_ = intent.fail(ErrTransactionFailed)
		return o.failed(res, ErrTransactionFailed)

	case pollTimeout:
		res.Success = true
		res.Err = ErrConfirmationTimeout
		o.metrics.RecordPayment("unconfirmed")
		log.Warn("transaction not confirmed in time, continuing", zap.Duration("timeout", o.pollTimeout))

	case pollCancelled:
		res.Err = ctx.Err()
		res.Error = "cancelled"
		res.Message = "Waiting for confirmation was cancelled."
		o.metrics.RecordPayment("cancelled")
		log.Info("confirmation wait cancelled", zap.Error(ctx.Err()))
	}

	return res
}

func walletError(code string) error {
	if code == "" {
		code = CodeGenericError
	}
	return &WalletError{Code: code}
}

func (o *Orchestrator) failed(res Result, err error) Result {
	res.Success = false
	res.Err = err

	var we *WalletError
	switch {
	case errors.As(err, &we):
		res.Error = we.Code
		res.Message = we.Message()
		o.metrics.RecordPayment("wallet_error")
	case errors.Is(err, ErrWalletUnavailable):
		res.Error = "wallet_unavailable"
		res.Message = "Open the store inside the wallet app to pay."
		o.metrics.RecordPayment("unavailable")
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrPrecisionLoss):
		res.Error = "invalid_amount"
		res.Message = "The payment amount is not valid."
		o.metrics.RecordPayment("invalid")
	case errors.Is(err, ErrRetryNotAllowed):
		res.Error = "retry_not_allowed"
		res.Message = "This payment cannot be retried."
	case errors.Is(err, ErrTransactionFailed):
		res.Error = CodeTransactionFailed
		res.Message = walletMessages[CodeTransactionFailed]
		o.metrics.RecordPayment("failed")
	default:
		res.Error = "payment_failed"
		res.Message = "The payment could not be completed. Please try again."
		o.metrics.RecordPayment("failed")
	}

	o.log.Warn("payment failed",
		zap.String("order_id", res.OrderID),
		zap.String("transaction_id", res.TransactionID),
		zap.String("error_code", res.Error),
		zap.Error(err),
	)
	return res
}
