// Package storage holds a JSON-file price history store used when the
// tracker runs without a database, e.g. one-off CLI checks.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/ujjwalr27/Ecommerce-Price-Tracker/internal/models"
)

// FileStore keeps per-URL price histories in a single JSON file.
// Histories are ordered oldest first, matching the database store.
type FileStore struct {
	mu       sync.RWMutex
	products map[string][]*models.ProductRecord
	filename string
}

func NewFileStore(filename string) (*FileStore, error) {
	fs := &FileStore{
		products: make(map[string][]*models.ProductRecord),
		filename: filename,
	}

	if err := fs.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return fs, nil
}

func (fs *FileStore) SaveRecord(ctx context.Context, rec *models.ProductRecord) error {
	if rec == nil || rec.URL == "" {
		return fmt.Errorf("record has no URL")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	history := append(fs.products[rec.URL], rec)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	fs.products[rec.URL] = history

	return fs.save()
}

func (fs *FileStore) GetHistory(ctx context.Context, url string, limit int) ([]*models.ProductRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	history := fs.products[url]
	if limit > 0 && limit < len(history) {
		history = history[:limit]
	}

	out := make([]*models.ProductRecord, len(history))
	copy(out, history)
	return out, nil
}

func (fs *FileStore) GetLatest(ctx context.Context, url string) (*models.ProductRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	history := fs.products[url]
	if len(history) == 0 {
		return nil, nil
	}
	return history[len(history)-1], nil
}

func (fs *FileStore) GetTrackedURLs(ctx context.Context) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	urls := make([]string, 0, len(fs.products))
	for url := range fs.products {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls, nil
}

// Stats reports how many products and records the store holds.
func (fs *FileStore) Stats() map[string]int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	records := 0
	for _, history := range fs.products {
		records += len(history)
	}

	return map[string]int{
		"products": len(fs.products),
		"records":  records,
	}
}

func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(fs.products, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file first so a crash cannot truncate the store.
	tmpFile := fs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, fs.filename)
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &fs.products)
}
