// Package store provides the durable key-value JSON record store backing
// every repository. Backends are chosen at construction time: in-memory for
// tests, a file tree for single-node deployments, Postgres for shared ones.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Read when no record exists under the key.
// Store I/O failures are returned as-is and must never be collapsed into it.
var ErrNotFound = errors.New("store: record not found")

type Record struct {
	ID  string
	Doc json.RawMessage
}

type Store interface {
	Read(ctx context.Context, collection, id string) (json.RawMessage, error)
	Write(ctx context.Context, collection, id string, doc json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]Record, error)
}
