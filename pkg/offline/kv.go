package offline

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/noah-isme/ctp-enrollment-api/pkg/storage"
)

// KeyValue is the durable key-value storage backing the pending queue.
type KeyValue interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// FileKV stores each key as a JSON file below a directory.
type FileKV struct {
	fs *storage.LocalStorage
}

// NewFileKV opens (creating if needed) dir as a key-value store.
func NewFileKV(dir string) (*FileKV, error) {
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, fmt.Errorf("open kv directory: %w", err)
	}
	return &FileKV{fs: store}, nil
}

// Get returns the value for key; ok is false when absent.
func (k *FileKV) Get(key string) ([]byte, bool, error) {
	data, err := k.fs.Read(key + ".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set atomically replaces the value for key.
func (k *FileKV) Set(key string, value []byte) error {
	_, err := k.fs.Save(key+".json", value)
	return err
}

// Remove deletes key.
func (k *FileKV) Remove(key string) error {
	return k.fs.Delete(key + ".json")
}
