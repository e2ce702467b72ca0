package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the whole namespace in one JSON document on disk.
// The file is re-read on every operation so separate processes taking turns
// see each other's writes; it does not lock against concurrent processes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileEntry struct {
	Value   []byte `json:"value"`
	Version int64  `json:"version"`
}

type fileDocument struct {
	Entries map[string]fileEntry `json:"entries"`
}

// NewFile returns a FileStore at path. A missing file is treated as an
// empty namespace; an unreadable one is an error.
func NewFile(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if _, err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() (fileDocument, error) {
	doc := fileDocument{Entries: make(map[string]fileEntry)}
	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("open %s: %w", fs.path, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", fs.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]fileEntry)
	}
	return doc, nil
}

// save writes doc to a temporary file and renames it over the target.
func (fs *FileStore) save(doc fileDocument) error {
	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".spendwise-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", fs.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("replace %s: %w", fs.path, err)
	}
	return nil
}

func (fs *FileStore) Get(_ context.Context, key string) (Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.load()
	if err != nil {
		return Entry{}, err
	}
	e, ok := doc.Entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Value: e.Value, Version: e.Version}, nil
}

func (fs *FileStore) Put(_ context.Context, key string, value []byte, expected int64) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.load()
	if err != nil {
		return 0, err
	}
	current := doc.Entries[key].Version
	if expected != AnyVersion && expected != current {
		return 0, ErrVersionConflict
	}
	next := current + 1
	doc.Entries[key] = fileEntry{Value: append([]byte(nil), value...), Version: next}
	if err := fs.save(doc); err != nil {
		return 0, err
	}
	return next, nil
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Entries[key]; !ok {
		return nil
	}
	delete(doc.Entries, key)
	return fs.save(doc)
}

func (fs *FileStore) Close() error { return nil }
