package textfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gridml/netcase/pkg/domain/entities"
	"github.com/gridml/netcase/pkg/domain/repositories"
)

// Store keeps mappings and pattern sets in plain text files
type Store struct{}

// NewStore creates a new text file store
func NewStore() *Store {
	return &Store{}
}

// Verify interface compliance
var _ repositories.ConfigurationStore = (*Store)(nil)

// LoadIndexMapping reads a bus or branch mapping file
func (s *Store) LoadIndexMapping(path string) (*entities.IndexMapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file %s: %w", path, err)
	}
	defer file.Close()

	return ReadIndexMapping(file, path)
}

// SaveIndexMapping writes a bus or branch mapping file
func (s *Store) SaveIndexMapping(path string, mapping *entities.IndexMapping) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteIndexMapping(w, mapping)
	})
}

// LoadPatternSet reads a network operation pattern file
func (s *Store) LoadPatternSet(path string) ([]*entities.OperationPattern, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern file %s: %w", path, err)
	}
	defer file.Close()

	return ReadPatternSet(file, path)
}

// SavePatternSet writes a network operation pattern file
func (s *Store) SavePatternSet(path string, patterns []*entities.OperationPattern) error {
	return writeFile(path, func(w io.Writer) error {
		return WritePatternSet(w, patterns)
	})
}

// writeFile writes through a temp file in the same directory and renames it
// over path, so a failed save never leaves a truncated file behind.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
