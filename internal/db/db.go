package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	KVStore
	Transactor
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore reads hashes.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// KVStore reads plain values.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// WriteKind selects the command of a Write.
type WriteKind int

// Write kinds.
const (
	WriteHSet WriteKind = iota
	WriteHDel
	WriteSet
	WriteDel
)

// Write is one mutation buffered by a transaction.
type Write struct {
	Kind   WriteKind
	Key    string
	Fields map[string]string // WriteHSet
	Remove []string          // WriteHDel
	Value  []byte            // WriteSet
}

// HSet returns a write setting hash fields.
func HSet(key string, fields map[string]string) Write {
	return Write{Kind: WriteHSet, Key: key, Fields: fields}
}

// HDel returns a write removing hash fields.
func HDel(key string, fields ...string) Write {
	return Write{Kind: WriteHDel, Key: key, Remove: fields}
}

// Set returns a write storing a value.
func Set(key string, value []byte) Write {
	return Write{Kind: WriteSet, Key: key, Value: value}
}

// Del returns a write deleting a key.
func Del(key string) Write {
	return Write{Kind: WriteDel, Key: key}
}

// Transactor applies writes atomically.
type Transactor interface {
	Exec(ctx context.Context, writes []Write) error
}
