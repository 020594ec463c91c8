package cache

import (
	"fmt"
	"strings"
)

// KeyKind identifies what a cache key refers to
type KeyKind int

const (
	KindUnknown KeyKind = iota
	KindFeatured
	KindCollections
	KindCollection
	KindProduct
)

const (
	featuredKey      = "featured"
	collectionsKey   = "collections"
	collectionPrefix = "collection:"
	productPrefix    = "product:"
)

// FeaturedKey is the key of the featured product list
func FeaturedKey() string { return featuredKey }

// CollectionsKey is the key of the collection metadata list
func CollectionsKey() string { return collectionsKey }

// CollectionKey is the key of a collection's product list
func CollectionKey(slug string) string { return collectionPrefix + slug }

// ProductKey is the key of a single product
func ProductKey(id string) string { return productPrefix + id }

// ParseKey splits a key into its kind and identifier
func ParseKey(key string) (KeyKind, string, error) {
	switch {
	case key == featuredKey:
		return KindFeatured, "", nil
	case key == collectionsKey:
		return KindCollections, "", nil
	case strings.HasPrefix(key, collectionPrefix) && len(key) > len(collectionPrefix):
		return KindCollection, strings.TrimPrefix(key, collectionPrefix), nil
	case strings.HasPrefix(key, productPrefix) && len(key) > len(productPrefix):
		return KindProduct, strings.TrimPrefix(key, productPrefix), nil
	default:
		return KindUnknown, "", fmt.Errorf("unrecognised cache key %q", key)
	}
}
