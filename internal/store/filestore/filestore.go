// Package filestore implements store.KV on the local filesystem: one sealed
// file per key inside a data directory, written atomically so a crash mid-write
// never corrupts previously durable state.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/avarghese/clinicsync/internal/crypto/storecrypto"
)

const keyFileName = "store.key"

// Store is a durable file-backed KV. Safe for concurrent use.
type Store struct {
	dir string
	key []byte
	mu  sync.Mutex
}

// Open prepares the data directory and loads (or creates) the sealing key.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	key, err := storecrypto.LoadOrCreateKey(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, fmt.Errorf("store key: %w", err)
	}
	return &Store{dir: dir, key: key}, nil
}

func (s *Store) path(key string) string {
	// keys are fixed identifiers, but never trust them as path components
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '-'
		}
	}, key)
	return filepath.Join(s.dir, safe+".dat")
}

// Get reads and unseals the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	val, err := storecrypto.Open(s.key, key, sealed)
	if err != nil {
		return nil, false, fmt.Errorf("unseal %s: %w", key, err)
	}
	return val, true, nil
}

// Set seals and durably writes the value under key. The write goes to a temp
// file first and is renamed into place.
func (s *Store) Set(ctx context.Context, key string, val []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := storecrypto.Seal(s.key, key, val)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	dst := s.path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(name, dst); err != nil {
		os.Remove(name)
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
