package cache

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerBackend persists cache entries in an embedded Badger database.
type BadgerBackend struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadger opens (creating if needed) a Badger database at path.
func OpenBadger(path string, log zerolog.Logger) (*BadgerBackend, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opening Badger cache")

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	return &BadgerBackend{db: db, log: log}, nil
}

func (b *BadgerBackend) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return out, nil
}

func (b *BadgerBackend) Set(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (b *BadgerBackend) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

func (b *BadgerBackend) Has(ctx context.Context, key string) (bool, error) {
	_, err := b.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *BadgerBackend) Clear(_ context.Context) error {
	return b.db.DropPrefix([]byte(KeyPrefix))
}

// Maintain runs value-log garbage collection until Badger reports there is
// nothing left to rewrite.
func (b *BadgerBackend) Maintain() error {
	rewrites := 0
	for {
		err := b.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return fmt.Errorf("badger value log gc: %w", err)
		}
		rewrites++
	}
	b.log.Debug().Int("rewrites", rewrites).Msg("Badger cache maintenance complete")
	return nil
}

func (b *BadgerBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
