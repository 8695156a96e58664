package entities

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrIndexInUse is returned when an explicit index is already held by another id
var ErrIndexInUse = errors.New("netcase: index already assigned to another id")

// MappingEntry is one id to NN-model array index pair
type MappingEntry struct {
	ID    string
	Index int
}

// IndexMapping assigns every bus or branch id a fixed position in the
// NN-model array. Indices handed out by Register are dense, start at 0 and
// are never reassigned for the lifetime of the mapping.
type IndexMapping struct {
	index map[string]int
	used  map[int]string
	next  int
}

// NewIndexMapping creates an empty mapping
func NewIndexMapping(expectedIDs int) *IndexMapping {
	return &IndexMapping{
		index: make(map[string]int, expectedIDs),
		used:  make(map[int]string, expectedIDs),
	}
}

// Size returns the number of registered ids
func (m *IndexMapping) Size() int {
	return len(m.index)
}

// Contains reports whether the id is registered
func (m *IndexMapping) Contains(id string) bool {
	_, ok := m.index[id]
	return ok
}

// IndexOf returns the array index of a registered id
func (m *IndexMapping) IndexOf(id string) (int, error) {
	i, ok := m.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return i, nil
}

// Register appends the id at the next free index and returns that index.
// Registering an id twice is an error; the existing index is left untouched.
func (m *IndexMapping) Register(id string) (int, error) {
	if err := validateID(id); err != nil {
		return 0, err
	}
	if i, ok := m.index[id]; ok {
		return i, fmt.Errorf("%w: %s (index %d)", ErrDuplicateID, id, i)
	}
	i := m.next
	m.index[id] = i
	m.used[i] = id
	m.next++
	return i, nil
}

// Put records an id at an explicit index, as read from a mapping file.
// The index is kept verbatim; density is the caller's concern (see Validate).
func (m *IndexMapping) Put(id string, index int) error {
	if err := validateID(id); err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("negative index %d for %s", index, id)
	}
	if i, ok := m.index[id]; ok {
		return fmt.Errorf("%w: %s (index %d)", ErrDuplicateID, id, i)
	}
	if other, ok := m.used[index]; ok {
		return fmt.Errorf("%w: %d held by %s", ErrIndexInUse, index, other)
	}
	m.index[id] = index
	m.used[index] = id
	if index >= m.next {
		m.next = index + 1
	}
	return nil
}

// Entries returns all pairs ordered by index
func (m *IndexMapping) Entries() []MappingEntry {
	entries := make([]MappingEntry, 0, len(m.index))
	for id, i := range m.index {
		entries = append(entries, MappingEntry{ID: id, Index: i})
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].Index < entries[b].Index
	})
	return entries
}

// IDs returns the registered ids ordered by index
func (m *IndexMapping) IDs() []string {
	entries := m.Entries()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// Validate checks that the indices are exactly 0..Size()-1
func (m *IndexMapping) Validate() error {
	for i := 0; i < len(m.index); i++ {
		if _, ok := m.used[i]; !ok {
			return fmt.Errorf("%w: index %d unassigned, %d ids registered", ErrNotDense, i, len(m.index))
		}
	}
	return nil
}

// Clone returns an independent copy of the mapping
func (m *IndexMapping) Clone() *IndexMapping {
	c := NewIndexMapping(len(m.index))
	for id, i := range m.index {
		c.index[id] = i
		c.used[i] = id
	}
	c.next = m.next
	return c
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrEmptyID, id)
	}
	return nil
}
