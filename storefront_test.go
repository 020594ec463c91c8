package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wldstore/storefront/pkg/cache"
	"github.com/wldstore/storefront/pkg/cart"
	"github.com/wldstore/storefront/pkg/catalog"
	"github.com/wldstore/storefront/pkg/navigation"
	"github.com/wldstore/storefront/pkg/payment"
)

type stubCatalog struct{}

func (stubCatalog) FetchCollections(context.Context, catalog.FetchOptions) ([]catalog.Collection, error) {
	return []catalog.Collection{
		{Slug: "new", Name: "New Arrivals", Active: true},
		{Slug: "old", Name: "Old Stock"},
	}, nil
}

func (stubCatalog) FetchCollectionProducts(_ context.Context, slug string, _ catalog.FetchOptions) ([]catalog.Product, error) {
	return []catalog.Product{{ID: slug + "-1"}}, nil
}

func (stubCatalog) FetchFeaturedProducts(context.Context, catalog.FetchOptions) ([]catalog.Product, error) {
	return []catalog.Product{{ID: "f-1", Featured: true}}, nil
}

func (stubCatalog) FetchProduct(_ context.Context, id string, _ catalog.FetchOptions) (catalog.Product, error) {
	return catalog.Product{ID: id}, nil
}

type stubWallet struct{}

func (stubWallet) SendTransfer(context.Context, payment.TransferRequest) (payment.TransferResponse, error) {
	return payment.TransferResponse{Status: payment.TransferOK, TransactionID: "tx-1"}, nil
}

func (stubWallet) Approve(context.Context, payment.ApprovalRequest) (payment.TransferResponse, error) {
	return payment.TransferResponse{Status: payment.TransferOK}, nil
}

type stubChecker struct{}

func (stubChecker) TransactionStatus(context.Context, string) (payment.TransactionStatus, error) {
	return payment.TransactionStatus{Confirmed: true, Hash: "0xabc"}, nil
}

type stubOrders struct {
	mu       sync.Mutex
	payloads []payment.OrderPayload
}

func (s *stubOrders) CreateOrder(_ context.Context, p payment.OrderPayload) (payment.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	return payment.Order{ID: "db-1", OrderID: p.OrderID, Status: p.Status}, nil
}

// idOnlyOrders answers like a backend that echoes only its own record id
type idOnlyOrders struct{}

func (idOnlyOrders) CreateOrder(context.Context, payment.OrderPayload) (payment.Order, error) {
	return payment.Order{ID: "db-7", Status: payment.OrderStatusPending}, nil
}

func newTestApp(t *testing.T, orders payment.OrderCreator, opts ...AppOption) *App {
	opts = append([]AppOption{
		WithManagerOptions(cache.WithWarmDelay(0)),
		WithPaymentOptions(
			payment.WithTokenAddress("0xToken"),
			payment.WithRecipient("0xShop"),
			payment.WithPollInterval(time.Millisecond),
			payment.WithOrderCreator(orders),
		),
	}, opts...)

	app := NewApp(stubCatalog{}, stubWallet{}, stubChecker{}, opts...)
	t.Cleanup(app.Close)
	return app
}

func TestAppWarmsOnStart(t *testing.T) {
	app := newTestApp(t, &stubOrders{}, WithWarmOnStart(true))
	app.Start()

	// featured, collections and the one active collection
	require.Eventually(t, func() bool { return app.Cache.Store().Len() == 3 }, time.Second, 5*time.Millisecond)

	products, err := app.Cache.CollectionProducts(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, "new-1", products[0].ID)
	assert.Equal(t, uint64(1), app.Cache.Metrics().Hits)
}

func TestAppCheckoutClearsCart(t *testing.T) {
	orders := &stubOrders{}
	app := newTestApp(t, orders)

	require.NoError(t, app.Cart.Add(cart.Item{ProductID: "tee", Size: "M", Quantity: 2, UnitPrice: decimal.RequireFromString("1.25")}))

	res, order, err := app.Checkout(context.Background(), payment.Customer{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Address: "12 Analytical Row",
		City:    "London",
		Country: "GB",
	}, "0xPayer", decimal.RequireFromString("10"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Confirmed)
	assert.Equal(t, res.OrderID, order.OrderID)
	assert.Equal(t, 0, app.Cart.Count())

	require.Len(t, orders.payloads, 1)
	assert.Equal(t, payment.OrderStatusPending, orders.payloads[0].Status)
	assert.True(t, orders.payloads[0].Total.Equal(decimal.RequireFromString("2.5")))
}

func TestAppCheckoutKeepsCartOnShortfall(t *testing.T) {
	orders := &stubOrders{}
	app := newTestApp(t, orders)

	require.NoError(t, app.Cart.Add(cart.Item{ProductID: "tee", Quantity: 1, UnitPrice: decimal.RequireFromString("5")}))

	_, _, err := app.Checkout(context.Background(), payment.Customer{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Address: "12 Analytical Row",
		City:    "London",
		Country: "GB",
	}, "0xPayer", decimal.RequireFromString("2.5"))
	assert.ErrorIs(t, err, payment.ErrInsufficientBalance)
	assert.Equal(t, 1, app.Cart.Count())
	assert.Empty(t, orders.payloads)
}

func TestAppRestoresScroll(t *testing.T) {
	var calls [][2]int
	app := newTestApp(t, &stubOrders{}, WithScroller(navigation.ScrollerFunc(func(x, y int) {
		calls = append(calls, [2]int{x, y})
	}), nil))

	app.Restorer.OnRouteChange("/")
	app.Recorder.Flush("/collections/new", 0, 480, nil)

	d := app.Restorer.OnRouteChange("/collections/new")
	assert.Equal(t, navigation.ActionRestore, d.Action)
	assert.Equal(t, [][2]int{{0, 0}, {0, 480}}, calls)
}

func TestAppCheckoutClearsCartWhenBackendEchoesOnlyID(t *testing.T) {
	app := newTestApp(t, idOnlyOrders{})
	require.NoError(t, app.Cart.Add(cart.Item{ProductID: "tee", Quantity: 1, UnitPrice: decimal.RequireFromString("1")}))

	_, order, err := app.Checkout(context.Background(), payment.Customer{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Address: "12 Analytical Row",
		City:    "London",
		Country: "GB",
	}, "0xPayer", decimal.RequireFromString("10"))
	require.NoError(t, err)

	assert.Equal(t, "db-7", order.ID)
	assert.Empty(t, order.OrderID)
	assert.Equal(t, 0, app.Cart.Count())
}

func TestAppClearNavigationStartsOver(t *testing.T) {
	var calls [][2]int
	app := newTestApp(t, &stubOrders{}, WithScroller(navigation.ScrollerFunc(func(x, y int) {
		calls = append(calls, [2]int{x, y})
	}), nil))

	app.Restorer.OnRouteChange("/")
	app.Recorder.Flush("/collections/new", 0, 480, nil)
	app.Scroll.Save(navigation.Snapshot{Path: "/cart", ScrollY: 90})

	assert.Equal(t, 2, app.ClearNavigation())
	assert.Equal(t, 0, app.Navigation.Len())
	assert.Equal(t, 0, app.Scroll.Len())

	// the next route change is a first visit again
	app.Recorder.Flush("/collections/new", 0, 480, nil)
	d := app.Restorer.OnRouteChange("/collections/new")
	assert.Equal(t, navigation.ActionScrollTop, d.Action)
	assert.Equal(t, [][2]int{{0, 0}, {0, 0}}, calls)
}
