// Package cache keeps transformation output and query scans in a
// key-value store, keyed by a 128-bit xxh3 hash of the request.
package cache

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/aleksaelezovic/sparqlgraph/pkg/graph"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/scanner"
	"github.com/aleksaelezovic/sparqlgraph/pkg/store"
)

var ErrMiss = errors.New("cache miss")

// Key identifies a cached entry
type Key [16]byte

// NewKey hashes parts into a key. Parts are length-prefixed, so moving
// bytes from one part to the next changes the key.
func NewKey(parts ...[]byte) Key {
	size := 0
	for _, p := range parts {
		size += 8 + len(p)
	}
	buf := make([]byte, 0, size)
	for _, p := range parts {
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(p)))
		buf = append(buf, p...)
	}

	hash := xxh3.Hash128(buf)
	var key Key
	binary.BigEndian.PutUint64(key[0:8], hash.Hi)
	binary.BigEndian.PutUint64(key[8:16], hash.Lo)
	return key
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// entry is the stored form of a cached value
type entry struct {
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

// Cache stores graphs and scan results. Entries older than MaxAge are
// treated as misses; a zero MaxAge keeps entries forever.
type Cache struct {
	storage store.Storage
	maxAge  time.Duration
	now     func() time.Time
}

// New creates a cache on top of storage
func New(storage store.Storage, maxAge time.Duration) *Cache {
	return &Cache{
		storage: storage,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (c *Cache) expired(e *entry) bool {
	if c.maxAge <= 0 {
		return false
	}
	return c.now().Sub(time.Unix(0, e.Created)) > c.maxAge
}

func (c *Cache) get(table store.Table, key Key, v any) error {
	var raw []byte
	err := store.View(c.storage, func(txn store.Transaction) error {
		var err error
		raw, err = txn.Get(table, key[:])
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to read %s entry %s: %w", table, key, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("corrupt %s entry %s: %w", table, key, err)
	}
	if c.expired(&e) {
		return ErrMiss
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("corrupt %s entry %s: %w", table, key, err)
	}
	return nil
}

func (c *Cache) put(table store.Table, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entry{Created: c.now().UnixNano(), Data: data})
	if err != nil {
		return err
	}
	return store.Update(c.storage, func(txn store.Transaction) error {
		return txn.Set(table, key[:], raw)
	})
}

// Graph returns the cached graph for key, or ErrMiss.
func (c *Cache) Graph(key Key) (*graph.Graph, error) {
	var g graph.Graph
	if err := c.get(store.TableGraphs, key, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// PutGraph stores g under key
func (c *Cache) PutGraph(key Key, g *graph.Graph) error {
	return c.put(store.TableGraphs, key, g)
}

// Scan returns the cached scan result for key, or ErrMiss.
func (c *Cache) Scan(key Key) (*scanner.Result, error) {
	var r scanner.Result
	if err := c.get(store.TableScans, key, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// PutScan stores r under key
func (c *Cache) PutScan(key Key, r *scanner.Result) error {
	return c.put(store.TableScans, key, r)
}

// Purge deletes expired and unreadable entries from every table and
// returns how many were removed.
func (c *Cache) Purge() (int, error) {
	removed := 0
	for table := store.Table(0); table < store.TableCount; table++ {
		var stale [][]byte
		err := store.View(c.storage, func(txn store.Transaction) error {
			it, err := txn.Scan(table, nil, nil)
			if err != nil {
				return err
			}
			defer it.Close()

			for it.Next() {
				raw, err := it.Value()
				if err != nil {
					return err
				}
				var e entry
				if err := json.Unmarshal(raw, &e); err != nil || c.expired(&e) {
					stale = append(stale, it.Key())
				}
			}
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		if len(stale) == 0 {
			continue
		}

		err = store.Update(c.storage, func(txn store.Transaction) error {
			for _, key := range stale {
				if err := txn.Delete(table, key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("failed to purge %s: %w", table, err)
		}
		removed += len(stale)
	}
	return removed, nil
}
