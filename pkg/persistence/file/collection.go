package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// collection stores one JSON file per record under a fixed directory. The
// read-write mutex guards concurrent access from the engine, monitor and API
// goroutines sharing one persistence instance.
type collection[T any] struct {
	dir string
	mu  sync.RWMutex
}

func newCollection[T any](root, name string) *collection[T] {
	return &collection[T]{dir: filepath.Clean(path.Join(root, name))}
}

func (c *collection[T]) filePath(id string) string {
	return filepath.Clean(path.Join(c.dir, id+".json"))
}

// write marshals the record and replaces any existing file for the ID.
func (c *collection[T]) write(id string, record *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.MkdirAll(c.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}

	return os.WriteFile(c.filePath(id), data, 0600)
}

// read loads one record. Missing files surface as os.ErrNotExist for the
// caller to translate into its domain sentinel.
func (c *collection[T]) read(id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	body, err := os.ReadFile(c.filePath(id))
	if err != nil {
		return nil, err
	}

	var record T

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}

	return &record, nil
}

// readAll loads every record in the collection. A missing directory reads as
// an empty collection.
func (c *collection[T]) readAll() ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*T{}, nil
		}

		return nil, fmt.Errorf("failed to list directory %s: %w", c.dir, err)
	}

	records := make([]*T, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		body, err := os.ReadFile(filepath.Clean(path.Join(c.dir, entry.Name())))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		var record T

		err = json.Unmarshal(body, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", entry.Name(), err)
		}

		records = append(records, &record)
	}

	return records, nil
}

// remove deletes a record file. Removing an absent record is a no-op.
func (c *collection[T]) remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.filePath(id))
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	return err
}
