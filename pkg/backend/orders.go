package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/wldstore/storefront/pkg/payment"
)

var (
	_ payment.StatusChecker = (*Client)(nil)
	_ payment.OrderCreator  = (*Client)(nil)
)

// ErrTokenNotFound is returned when the wallet holds no balance entry for
// the payment token
var ErrTokenNotFound = errors.New("token balance not found")

// GetBalance returns the wallet's balance of the payment token as a token
// amount. The endpoint lists every token in minimal units with its decimals.
func (c *Client) GetBalance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	path := "/balances/" + url.PathEscape(wallet)
	body, err := c.do(ctx, http.MethodGet, "/balances/{wallet}", path, nil, nil)
	if err != nil {
		return decimal.Zero, err
	}

	var (
		found  bool
		amount string
		places int64
	)
	gjson.GetBytes(body, "balances").ForEach(func(_, entry gjson.Result) bool {
		if !strings.EqualFold(entry.Get("token").String(), c.token) {
			return true
		}
		found = true
		amount = entry.Get("amount").String()
		places = entry.Get("decimals").Int()
		return false
	})
	if !found {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrTokenNotFound, c.token)
	}

	return payment.NormalizeBalance(amount, int32(places))
}

// TransactionStatus reports whether a submitted transaction is confirmed
func (c *Client) TransactionStatus(ctx context.Context, transactionID string) (payment.TransactionStatus, error) {
	path := "/transactions/" + url.PathEscape(transactionID) + "/status"
	body, err := c.do(ctx, http.MethodGet, "/transactions/{id}/status", path, nil, nil)
	if err != nil {
		return payment.TransactionStatus{}, err
	}

	var st payment.TransactionStatus
	if err := decodeData(body, &st); err != nil {
		return payment.TransactionStatus{}, err
	}
	return st, nil
}

// CreateOrder records an order. A 400 response listing field errors is
// returned as *payment.ValidationError.
func (c *Client) CreateOrder(ctx context.Context, payload payment.OrderPayload) (payment.Order, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders", "/orders", nil, payload)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusBadRequest {
			if ve := decodeValidation(body); ve != nil {
				return payment.Order{}, ve
			}
		}
		return payment.Order{}, err
	}

	env, err := decodeOrder(body)
	if err != nil {
		return payment.Order{}, err
	}
	return env.Order, nil
}

// OrderStatus fetches an order by its client order id
func (c *Client) OrderStatus(ctx context.Context, orderID string) (payment.Order, error) {
	path := "/orders/" + url.PathEscape(orderID)
	body, err := c.do(ctx, http.MethodGet, "/orders/{orderId}", path, nil, nil)
	if err != nil {
		return payment.Order{}, err
	}

	env, err := decodeOrder(body)
	if err == nil {
		return env.Order, nil
	}

	// the lookup endpoint may also answer with a bare order
	var order payment.Order
	if derr := decodeData(body, &order); derr != nil || order.OrderID == "" {
		return payment.Order{}, err
	}
	return order, nil
}

// Relay submits wallet transactions through the backend relay endpoints
type Relay struct {
	client *Client
}

var _ payment.Wallet = (*Relay)(nil)

// NewRelay creates a wallet relay over client
func NewRelay(client *Client) *Relay {
	return &Relay{client: client}
}

// SendTransfer submits a token transfer
func (r *Relay) SendTransfer(ctx context.Context, req payment.TransferRequest) (payment.TransferResponse, error) {
	return r.post(ctx, "/wallet/transfer", req)
}

// Approve submits an allowance approval
func (r *Relay) Approve(ctx context.Context, req payment.ApprovalRequest) (payment.TransferResponse, error) {
	return r.post(ctx, "/wallet/approve", req)
}

func (r *Relay) post(ctx context.Context, path string, req any) (payment.TransferResponse, error) {
	body, err := r.client.do(ctx, http.MethodPost, path, path, nil, req)
	if err != nil {
		// wallet errors arrive as 4xx with the usual response body
		var se *StatusError
		if !errors.As(err, &se) || se.Code >= 500 || !gjson.GetBytes(body, "status").Exists() {
			return payment.TransferResponse{}, err
		}
	}

	var resp payment.TransferResponse
	if err := decodeData(body, &resp); err != nil {
		return payment.TransferResponse{}, err
	}
	return resp, nil
}
