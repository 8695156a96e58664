package memory

import (
	"fmt"
	"os"
	"sync"

	"github.com/gridml/netcase/pkg/domain/entities"
	"github.com/gridml/netcase/pkg/domain/repositories"
)

// ConfigurationStore keeps mappings and pattern sets in memory, keyed by
// location. Saved collections are cloned so later changes by the caller
// do not leak into the store.
type ConfigurationStore struct {
	mu       sync.RWMutex
	mappings map[string]*entities.IndexMapping
	patterns map[string][]*entities.OperationPattern
}

// NewConfigurationStore creates an empty in-memory store
func NewConfigurationStore() *ConfigurationStore {
	return &ConfigurationStore{
		mappings: make(map[string]*entities.IndexMapping),
		patterns: make(map[string][]*entities.OperationPattern),
	}
}

// Verify interface compliance
var _ repositories.ConfigurationStore = (*ConfigurationStore)(nil)

// LoadIndexMapping returns a copy of the mapping saved at location
func (s *ConfigurationStore) LoadIndexMapping(location string) (*entities.IndexMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapping, exists := s.mappings[location]
	if !exists {
		return nil, fmt.Errorf("mapping not found: %s: %w", location, os.ErrNotExist)
	}
	return mapping.Clone(), nil
}

// SaveIndexMapping stores a copy of the mapping at location
func (s *ConfigurationStore) SaveIndexMapping(location string, mapping *entities.IndexMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mappings[location] = mapping.Clone()
	return nil
}

// LoadPatternSet returns copies of the patterns saved at location
func (s *ConfigurationStore) LoadPatternSet(location string) ([]*entities.OperationPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patterns, exists := s.patterns[location]
	if !exists {
		return nil, fmt.Errorf("pattern set not found: %s: %w", location, os.ErrNotExist)
	}
	return clonePatterns(patterns), nil
}

// SavePatternSet stores copies of the patterns at location
func (s *ConfigurationStore) SavePatternSet(location string, patterns []*entities.OperationPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.patterns[location] = clonePatterns(patterns)
	return nil
}

// Locations lists every location holding a mapping or a pattern set
func (s *ConfigurationStore) Locations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var locations []string
	for l := range s.mappings {
		locations = append(locations, l)
	}
	for l := range s.patterns {
		locations = append(locations, l)
	}
	return locations
}

func clonePatterns(patterns []*entities.OperationPattern) []*entities.OperationPattern {
	out := make([]*entities.OperationPattern, len(patterns))
	for i, p := range patterns {
		out[i] = p.Clone()
	}
	return out
}
