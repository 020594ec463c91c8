// Package catalog defines the product and collection records served by the
// storefront backend and the fetch interface the cache layer consumes.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalog item.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Sizes       []string        `json:"sizes,omitempty"`
	Collection  string          `json:"collection,omitempty"`
	Featured    bool            `json:"featured,omitempty"`
	Active      bool            `json:"active"`
}

// Collection groups products under a slug.
type Collection struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Position int    `json:"position,omitempty"`
}

// FetchOptions carries the locale and filter passed to every catalog call.
type FetchOptions struct {
	Language string
	Country  string
	Active   bool
}

// Fetcher is the catalog side of the backend API.
type Fetcher interface {
	FetchCollections(ctx context.Context, opts FetchOptions) ([]Collection, error)
	FetchCollectionProducts(ctx context.Context, slug string, opts FetchOptions) ([]Product, error)
	FetchFeaturedProducts(ctx context.Context, opts FetchOptions) ([]Product, error)
	FetchProduct(ctx context.Context, id string, opts FetchOptions) (Product, error)
}

// ActiveOnly returns the collections flagged active, preserving order.
func ActiveOnly(collections []Collection) []Collection {
	out := make([]Collection, 0, len(collections))
	for _, c := range collections {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}
