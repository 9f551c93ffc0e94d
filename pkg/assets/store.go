package assets

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by stores when a key does not resolve.
var ErrObjectNotFound = errors.New("object not found")

// Store persists uploaded objects and removes them by key.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, keys []string) error
	// KeyFromURL derives the object key from a public URL produced by Put.
	KeyFromURL(url string) (string, bool)
}
