package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wldstore/storefront/pkg/cart"
)

// Transfer response statuses
const (
	TransferOK    = "ok"
	TransferError = "error"
)

// OrderStatusPending is the only status the storefront ever creates orders
// with. The backend moves it to paid after verifying the transaction.
const OrderStatusPending = "pending"

// TransferRequest asks the wallet to move tokens. Amount is an integral
// string in minimal units.
type TransferRequest struct {
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

// ApprovalRequest asks the wallet to raise the spender's allowance
type ApprovalRequest struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// TransferResponse is the wallet's answer to a transfer or approval
type TransferResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
}

// Wallet signs and submits token transactions for the payer
type Wallet interface {
	SendTransfer(ctx context.Context, req TransferRequest) (TransferResponse, error)
	Approve(ctx context.Context, req ApprovalRequest) (TransferResponse, error)
}

// TransactionStatus is the chain's view of a submitted transaction
type TransactionStatus struct {
	Confirmed bool   `json:"confirmed"`
	Hash      string `json:"hash,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
}

// StatusChecker reports the status of a submitted transaction
type StatusChecker interface {
	TransactionStatus(ctx context.Context, transactionID string) (TransactionStatus, error)
}

// Customer is the shipping and contact part of the checkout form
type Customer struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// OrderPayload is sent to the backend to record an order
type OrderPayload struct {
	OrderID       string          `json:"orderId"`
	Status        string          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Token         string          `json:"token,omitempty"`
	WalletAddress string          `json:"walletAddress"`
	TransactionID string          `json:"transactionId"`
	Customer      Customer        `json:"customer"`
	Items         []cart.Item     `json:"items"`
}

// Order is the backend's record of an order
type Order struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transactionId,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// OrderCreator records orders on the backend
type OrderCreator interface {
	CreateOrder(ctx context.Context, payload OrderPayload) (Order, error)
}
