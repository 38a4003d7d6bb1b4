// Package kvstore defines the transactional key-value store the guardian
// service keeps all durable state in, plus a registry of named backends.
package kvstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when a key has no value.
	ErrNotFound = errors.New("kvstore: not found")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("kvstore: closed")
	// ErrConflict is returned by Update when a concurrent transaction kept
	// winning and the retry budget ran out.
	ErrConflict = errors.New("kvstore: transaction conflict")
)

// Key addresses one value. Components may hold arbitrary bytes; the
// encoding is length-prefixed so distinct keys never collide.
type Key struct {
	Namespace string
	ID        string
	Field     string
}

// NewKey is shorthand for Key{Namespace: ns, ID: id, Field: field}.
func NewKey(ns, id, field string) Key {
	return Key{Namespace: ns, ID: id, Field: field}
}

// Encode returns the binary form: each component as uvarint length + bytes.
func (k Key) Encode() []byte {
	buf := make([]byte, 0, 3*binary.MaxVarintLen32+len(k.Namespace)+len(k.ID)+len(k.Field))
	for _, part := range [...]string{k.Namespace, k.ID, k.Field} {
		buf = binary.AppendUvarint(buf, uint64(len(part)))
		buf = append(buf, part...)
	}
	return buf
}

// DecodeKey parses the output of Key.Encode.
func DecodeKey(b []byte) (Key, error) {
	var parts [3]string
	for i := range parts {
		n, w := binary.Uvarint(b)
		if w <= 0 {
			return Key{}, fmt.Errorf("kvstore: decode key: bad length prefix")
		}
		b = b[w:]
		if uint64(len(b)) < n {
			return Key{}, fmt.Errorf("kvstore: decode key: truncated component")
		}
		parts[i] = string(b[:n])
		b = b[n:]
	}
	if len(b) != 0 {
		return Key{}, fmt.Errorf("kvstore: decode key: %d trailing bytes", len(b))
	}
	return Key{Namespace: parts[0], ID: parts[1], Field: parts[2]}, nil
}

// String renders the key for logs. It is not an encoding.
func (k Key) String() string {
	parts := []string{k.Namespace}
	if k.ID != "" || k.Field != "" {
		parts = append(parts, k.ID)
	}
	if k.Field != "" {
		parts = append(parts, k.Field)
	}
	return strings.Join(parts, "/")
}

// Reader reads inside a transaction.
type Reader interface {
	// Get returns the stored value or ErrNotFound.
	Get(key Key) ([]byte, error)
}

// Txn is a read-write transaction. Writes are visible to later Gets in the
// same transaction and reach the store only when the callback returns nil.
type Txn interface {
	Reader
	Put(key Key, value []byte) error
	Delete(key Key) error
}

// Backend is a transactional store.
//
// Update runs fn in a serializable read-write transaction: either all of
// its writes commit or none do. View runs fn against a consistent snapshot.
// Backends with optimistic concurrency may call fn more than once in either
// case, so fn must not have side effects outside the transaction beyond
// assigning its results.
type Backend interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Txn) error) error
	Close() error
}
