package storage

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: not found")

// Key is a hierarchical key such as {"session", id, "interaction", "000001"}.
type Key []string

func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key/value pair returned by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the key-value collaborator backing the capture ledger.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	// List yields entries whose key starts with prefix, in key order.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]
	BatchSet(ctx context.Context, entries []Entry) error
	Close() error
}

const sep = ':'

func encode(k Key) []byte {
	return []byte(k.String())
}

func decode(b []byte) Key {
	if len(b) == 0 {
		return nil
	}
	return strings.Split(string(b), string(sep))
}

func prefixBytes(prefix Key) []byte {
	p := encode(prefix)
	if len(p) > 0 {
		p = append(p, sep)
	}
	return p
}
