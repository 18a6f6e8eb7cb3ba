package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File stores one JSON file per record under <root>/<collection>/<id>.json.
// Writes go through a temp file and rename so readers never see a torn record.
type File struct {
	root string
	mu   sync.RWMutex
}

func NewFile(root string) (*File, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("store: file root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &File{root: root}, nil
}

func (f *File) path(collection, id string) string {
	return filepath.Join(f.root, collection, id+".json")
}

func (f *File) Read(_ context.Context, collection, id string) (json.RawMessage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, err := os.ReadFile(f.path(collection, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (f *File) Write(_ context.Context, collection, id string, doc json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := filepath.Join(f.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(collection, id))
}

func (f *File) Delete(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path(collection, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *File) List(_ context.Context, collection string) ([]Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	dir := filepath.Join(f.root, collection)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("store: read %s/%s: %w", collection, e.Name(), err)
		}
		out = append(out, Record{ID: strings.TrimSuffix(e.Name(), ".json"), Doc: b})
	}
	return out, nil
}
