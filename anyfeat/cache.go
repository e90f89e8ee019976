package anyfeat

import (
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotCached is returned by Cache.Get for missing keys.
var ErrNotCached = errors.New("features not cached")

// CacheOptions configures a Cache.
type CacheOptions struct {
	// Dir is the database directory.
	// It is required unless InMemory is set.
	Dir string

	InMemory bool

	// Logger receives badger's warnings and errors.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// A Cache stores feature matrices of utterances.
type Cache struct {
	db *badger.DB
}

// An Entry is a cached utterance.
type Entry struct {
	Features [][]float64 `msgpack:"features"`
	Labels   []int       `msgpack:"labels,omitempty"`
}

// OpenCache opens or creates a Cache.
func OpenCache(opts CacheOptions) (*Cache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("open cache: directory is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger.With("component", "badger")})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get looks up an entry.
// It returns ErrNotCached if the key is missing.
func (c *Cache) Get(key string) (*Entry, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotCached
	} else if err != nil {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	var res Entry
	if err := msgpack.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	return &res, nil
}

// Put stores an entry, replacing any existing one.
func (c *Cache) Put(key string, e *Entry) error {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache put %q: %w", key, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("cache put %q: %w", key, err)
	}
	return nil
}

// PutNew stores an entry under a new random key and
// returns the key.
func (c *Cache) PutNew(e *Entry) (string, error) {
	key := uuid.New().String()
	if err := c.Put(key, e); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes an entry.
// Deleting a missing key is not an error.
func (c *Cache) Delete(key string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// Keys lists every key in the cache, in byte order.
func (c *Cache) Keys() ([]string, error) {
	var res []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			res = append(res, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache keys: %w", err)
	}
	return res, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// badgerLogger forwards badger's warnings and errors to
// slog and drops its info and debug chatter.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error(fmt.Sprintf(f, v...))
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn(fmt.Sprintf(f, v...))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
