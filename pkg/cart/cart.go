// Package cart holds the shopper's cart. Checkout only ever reads a
// snapshot of it.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned for quantities below one
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrItemNotFound is returned when updating or removing an absent line
	ErrItemNotFound = errors.New("cart item not found")
)

// Item is one cart line
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal returns UnitPrice * Quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func lineKey(productID, size string) string {
	return productID + "\x00" + size
}

// Store is a thread-safe cart. Lines are keyed by product and size.
type Store struct {
	mu    sync.RWMutex
	order []string
	items map[string]Item
}

// NewStore creates an empty cart
func NewStore() *Store {
	return &Store{items: make(map[string]Item)}
}

// Add appends a line or increases the quantity of an existing one
func (s *Store) Add(item Item) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if item.ProductID == "" {
		return fmt.Errorf("add to cart: missing product id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := lineKey(item.ProductID, item.Size)
	if existing, ok := s.items[key]; ok {
		existing.Quantity += item.Quantity
		existing.UnitPrice = item.UnitPrice
		s.items[key] = existing
		return nil
	}

	s.items[key] = item
	s.order = append(s.order, key)
	return nil
}

// Update sets the quantity of a line. Zero removes it.
func (s *Store) Update(productID, size string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.Remove(productID, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := lineKey(productID, size)
	item, ok := s.items[key]
	if !ok {
		return ErrItemNotFound
	}
	item.Quantity = quantity
	s.items[key] = item
	return nil
}

// Remove deletes a line
func (s *Store) Remove(productID, size string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := lineKey(productID, size)
	if _, ok := s.items[key]; !ok {
		return ErrItemNotFound
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear empties the cart
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]Item)
	s.order = nil
}

// Snapshot returns a copy of the lines in insertion order
func (s *Store) Snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// Count returns the total quantity across lines
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// Total returns the sum of line subtotals
func (s *Store) Total() decimal.Decimal {
	return Total(s.Snapshot())
}

// Total sums the subtotals of items
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
