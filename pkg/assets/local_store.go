package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/ctp-enrollment-api/pkg/storage"
)

// LocalStore keeps objects on disk; the gateway serves them under the public base URL.
type LocalStore struct {
	fs      *storage.LocalStorage
	baseURL string
}

// NewLocalStore wraps a filesystem root.
func NewLocalStore(fs *storage.LocalStorage, publicBaseURL string) *LocalStore {
	return &LocalStore{fs: fs, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Put writes data to key.
func (s *LocalStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	name, err := s.fs.Save(key, data)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", key, err)
	}
	return s.baseURL + "/" + name, nil
}

// Delete removes every key, collecting failures.
func (s *LocalStore) Delete(_ context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := s.fs.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// KeyFromURL strips the public base URL.
func (s *LocalStore) KeyFromURL(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if url == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
