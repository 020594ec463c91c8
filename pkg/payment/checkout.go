package payment

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wldstore/storefront/pkg/cart"
)

// NewOrderID returns a collision-resistant order reference
func NewOrderID() string {
	return uuid.NewString()
}

// CheckoutRequest is a submitted checkout form plus the cart lines
type CheckoutRequest struct {
	Customer      Customer
	WalletAddress string
	Items         []cart.Item
}

// Validate checks the required form fields
func (r CheckoutRequest) Validate() error {
	fields := make(map[string]string)

	required := map[string]string{
		"name":    r.Customer.Name,
		"email":   r.Customer.Email,
		"address": r.Customer.Address,
		"city":    r.Customer.City,
		"country": r.Customer.Country,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			fields[name] = "is required"
		}
	}

	if _, ok := fields["email"]; !ok {
		if _, err := mail.ParseAddress(r.Customer.Email); err != nil {
			fields["email"] = "is not a valid email address"
		}
	}
	if strings.TrimSpace(r.WalletAddress) == "" {
		fields["walletAddress"] = "is required"
	}
	if len(r.Items) == 0 {
		fields["items"] = "cart is empty"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Checkout is a single checkout attempt. Its order id is fixed for the
// lifetime of the attempt, across transfer retries.
type Checkout struct {
	o        *Orchestrator
	intent   *Intent
	customer Customer
	items    []cart.Item
	total    decimal.Decimal

	mu     sync.Mutex
	placed bool
	order  *Order
}

// NewCheckout validates req and opens a checkout attempt over a copy of its
// items
func (o *Orchestrator) NewCheckout(req CheckoutRequest) (*Checkout, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if o.orders == nil {
		return nil, errors.New("checkout: no order backend configured")
	}

	items := make([]cart.Item, len(req.Items))
	copy(items, req.Items)

	total := cart.Total(items)
	if !total.IsPositive() {
		return nil, &ValidationError{Fields: map[string]string{"items": "total must be positive"}}
	}

	return &Checkout{
		o:        o,
		intent:   NewIntent(NewOrderID(), total, req.WalletAddress),
		customer: req.Customer,
		items:    items,
		total:    total,
	}, nil
}

// OrderID returns the attempt's order reference
func (c *Checkout) OrderID() string { return c.intent.OrderID() }

// Intent returns the payment intent
func (c *Checkout) Intent() *Intent { return c.intent }

// Total returns the cart total being paid
func (c *Checkout) Total() decimal.Decimal { return c.total }

// Order returns the recorded order, if any
func (c *Checkout) Order() (Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.order == nil {
		return Order{}, false
	}
	return *c.order, true
}

// Pay submits the transfer
func (c *Checkout) Pay(ctx context.Context) Result {
	return c.o.ProcessPayment(ctx, c.intent)
}

// RetryWithApproval runs the one-shot allowance retry
func (c *Checkout) RetryWithApproval(ctx context.Context) Result {
	return c.o.RetryWithApproval(ctx, c.intent)
}

// PlaceOrder records the order on the backend with status pending. It runs
// at most once per checkout; a backend failure after the transfer was
// accepted returns a *ReconciliationError and is never retried.
func (c *Checkout) PlaceOrder(ctx context.Context) (Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.placed {
		return Order{}, ErrOrderAlreadyPlaced
	}

	status := c.intent.Status()
	txID := c.intent.TransactionID()
	if txID == "" || (status != StatusAwaitingConfirmation && status != StatusConfirmed) {
		return Order{}, ErrPaymentIncomplete
	}

	log := c.o.log.With(
		zap.String("order_id", c.OrderID()),
		zap.String("transaction_id", txID),
	)

	reserved, err := c.o.guard.Reserve(ctx, c.OrderID(), c.o.guardTTL)
	if err != nil {
		c.placed = true
		return Order{}, c.reconcile(log, txID, fmt.Errorf("reserve order id: %w", err))
	}
	if !reserved {
		c.placed = true
		return Order{}, ErrOrderAlreadyPlaced
	}
	c.placed = true

	order, err := c.o.orders.CreateOrder(ctx, OrderPayload{
		OrderID:       c.OrderID(),
		Status:        OrderStatusPending,
		Total:         c.total,
		Token:         c.o.tokenAddress,
		WalletAddress: c.intent.WalletAddress(),
		TransactionID: txID,
		Customer:      c.customer,
		Items:         c.items,
	})
	if err != nil {
		return Order{}, c.reconcile(log, txID, err)
	}

	c.order = &order
	c.o.metrics.RecordPayment("order_created")
	log.Info("order recorded", zap.String("backend_id", order.ID), zap.String("status", order.Status))
	return order, nil
}

func (c *Checkout) reconcile(log *zap.Logger, txID string, err error) error {
	c.o.metrics.RecordPayment("reconciliation")
	log.Error("payment submitted but order not recorded", zap.Error(err))
	return &ReconciliationError{
		OrderID:       c.OrderID(),
		TransactionID: txID,
		Err:           err,
	}
}

// Run checks that balance covers the total, pays and places the order.
// When the payment fails the returned error is Result.Err. When the wait
// for confirmation is cancelled after the transfer was accepted, the error
// is a *PendingConfirmationError and the order can still be placed.
func (c *Checkout) Run(ctx context.Context, balance decimal.Decimal) (Result, Order, error) {
	if shortfall, ok := CheckBalance(balance, c.total); !ok {
		err := fmt.Errorf("%w: short by %s", ErrInsufficientBalance, shortfall.String())
		return Result{OrderID: c.OrderID(), Err: err, Error: CodeInsufficientBalance}, Order{}, err
	}

	res := c.Pay(ctx)
	if !res.Success {
		if res.TransactionID != "" && c.intent.Status() == StatusAwaitingConfirmation {
			return res, Order{}, &PendingConfirmationError{
				OrderID:       c.OrderID(),
				TransactionID: res.TransactionID,
				Err:           res.Err,
			}
		}
		return res, Order{}, res.Err
	}

	order, err := c.PlaceOrder(ctx)
	return res, order, err
}
