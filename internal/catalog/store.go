// Package catalog serves the static metadata of a drop collection (title, artwork,
// contract address, creator) by slug.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

var ErrNotFound = errors.New("collection not found")

type Creator struct {
	ID      string `json:"id" toml:"id"`
	Name    string `json:"name" toml:"name"`
	Address string `json:"address" toml:"address"`
	Slug    string `json:"slug" toml:"slug"`
}

// Collection is one drop page's metadata. Address is the drop contract.
type Collection struct {
	ID             string  `json:"id" toml:"id"`
	Slug           string  `json:"slug" toml:"slug"`
	Title          string  `json:"title" toml:"title"`
	Description    string  `json:"description" toml:"description"`
	CollectionName string  `json:"collectionName" toml:"collection_name"`
	Address        string  `json:"address" toml:"address"`
	Image          string  `json:"image" toml:"image"`
	PreviewImage   string  `json:"previewImage" toml:"preview_image"`
	Creator        Creator `json:"creator" toml:"creator"`
}

// Store abstracts collection lookup. Get returns ErrNotFound for unknown slugs.
type Store interface {
	Get(ctx context.Context, slug string) (*Collection, error)
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// MemoryStore is mostly for testing.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Collection
}

func NewMemoryStore(collections ...Collection) *MemoryStore {
	m := &MemoryStore{data: make(map[string]Collection)}
	for _, c := range collections {
		m.data[normalizeSlug(c.Slug)] = c
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, slug string) (*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.data[normalizeSlug(slug)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) Save(_ context.Context, c Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[normalizeSlug(c.Slug)] = c
	return nil
}

type fileDocument struct {
	Collections []Collection `toml:"collections"`
}

// FileStore reads and writes a TOML document of [[collections]] tables.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]Collection
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: make(map[string]Collection),
	}
	if err := fs.load(); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return fs, nil
}

func (f *FileStore) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return nil
	}
	var doc fileDocument
	if err := toml.Unmarshal(blob, &doc); err != nil {
		return err
	}
	for _, c := range doc.Collections {
		if c.Slug == "" {
			return fmt.Errorf("collection %q has no slug", c.Title)
		}
		f.data[normalizeSlug(c.Slug)] = c
	}
	return nil
}

func (f *FileStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	doc := fileDocument{Collections: make([]Collection, 0, len(f.data))}
	for _, c := range f.data {
		doc.Collections = append(doc.Collections, c)
	}
	blob, err := toml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, blob, 0o600)
}

func (f *FileStore) Get(_ context.Context, slug string) (*Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.data[normalizeSlug(slug)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (f *FileStore) Save(_ context.Context, c Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[normalizeSlug(c.Slug)] = c
	return f.persist()
}
