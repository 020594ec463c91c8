package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wldstore/storefront/pkg/catalog"
)

var _ catalog.Fetcher = (*Client)(nil)

func catalogQuery(opts catalog.FetchOptions) url.Values {
	q := url.Values{}
	if opts.Language != "" {
		q.Set("lang", opts.Language)
	}
	if opts.Country != "" {
		q.Set("country", opts.Country)
	}
	if opts.Active {
		q.Set("active", strconv.FormatBool(true))
	}
	return q
}

// FetchCollections lists collection metadata
func (c *Client) FetchCollections(ctx context.Context, opts catalog.FetchOptions) ([]catalog.Collection, error) {
	body, err := c.do(ctx, http.MethodGet, "/collections", "/collections", catalogQuery(opts), nil)
	if err != nil {
		return nil, err
	}

	var out []catalog.Collection
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCollectionProducts lists the products of a collection
func (c *Client) FetchCollectionProducts(ctx context.Context, slug string, opts catalog.FetchOptions) ([]catalog.Product, error) {
	path := "/collections/" + url.PathEscape(slug) + "/products"
	body, err := c.do(ctx, http.MethodGet, "/collections/{slug}/products", path, catalogQuery(opts), nil)
	if err != nil {
		return nil, err
	}

	var out []catalog.Product
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFeaturedProducts lists featured products
func (c *Client) FetchFeaturedProducts(ctx context.Context, opts catalog.FetchOptions) ([]catalog.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/products/featured", "/products/featured", catalogQuery(opts), nil)
	if err != nil {
		return nil, err
	}

	var out []catalog.Product
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchProduct returns a single product
func (c *Client) FetchProduct(ctx context.Context, id string, opts catalog.FetchOptions) (catalog.Product, error) {
	path := "/products/" + url.PathEscape(id)
	body, err := c.do(ctx, http.MethodGet, "/products/{id}", path, catalogQuery(opts), nil)
	if err != nil {
		return catalog.Product{}, err
	}

	var out catalog.Product
	if err := decodeData(body, &out); err != nil {
		return catalog.Product{}, err
	}
	return out, nil
}
