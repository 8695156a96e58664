package textfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridml/netcase/pkg/domain/entities"
)

func TestReadIndexMapping(t *testing.T) {
	input := `# bus mapping for IEEE-14
Bus1 0

Bus2 1
  # indented comment
Bus3 2
`
	m, err := ReadIndexMapping(strings.NewReader(input), "bus.txt")
	require.NoError(t, err)

	assert.Equal(t, 3, m.Size())
	assert.Equal(t, []string{"Bus1", "Bus2", "Bus3"}, m.IDs())
}

func TestReadIndexMapping_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"missing index", "Bus1 0\nBus2\n", 2},
		{"extra field", "Bus1 0 extra\n", 1},
		{"non-integer index", "Bus1 zero\n", 1},
		{"negative index", "Bus1 -1\n", 1},
		{"duplicate id", "Bus1 0\nBus2 1\nBus1 2\n", 3},
		{"duplicate index", "Bus1 0\n# c\nBus2 0\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadIndexMapping(strings.NewReader(tt.input), "bus.txt")
			require.Error(t, err)

			var pe *entities.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, "bus.txt", pe.Path)
		})
	}
}

func TestStore_IndexMappingRoundTrip(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "branch.txt")

	m := entities.NewIndexMapping(0)
	for _, id := range []string{"Bus1->Bus2(1)", "Bus1->Bus5(1)", "Bus2->Bus3(1)", "Bus4->Bus7(1)"} {
		_, err := m.Register(id)
		require.NoError(t, err)
	}

	require.NoError(t, store.SaveIndexMapping(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Bus1->Bus2(1) 0\nBus1->Bus5(1) 1\nBus2->Bus3(1) 2\nBus4->Bus7(1) 3\n", string(data))

	loaded, err := store.LoadIndexMapping(path)
	require.NoError(t, err)
	assert.Equal(t, m.Entries(), loaded.Entries())
}

func TestStore_PatternSetRoundTrip(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "patterns.txt")

	base := entities.NewOperationPattern("Base")
	p1 := entities.NewOperationPattern("Pattern-1")
	p1.MarkMissing(entities.BusElement, "Bus15")
	p1.MarkMissing(entities.BranchElement, "Bus9->Bus15(1)")
	p2 := entities.NewOperationPattern("Pattern-2")
	p2.MarkMissing(entities.BranchElement, "Bus2->Bus3(1)")

	patterns := []*entities.OperationPattern{base, p1, p2}
	require.NoError(t, store.SavePatternSet(path, patterns))

	loaded, err := store.LoadPatternSet(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(patterns))
	for i := range patterns {
		assert.True(t, patterns[i].Equal(loaded[i]), "pattern %s", patterns[i].Name())
	}
}

func TestStore_SavePatternSet_RejectsUnstorableNames(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "patterns.txt")
	good := []*entities.OperationPattern{entities.NewOperationPattern("Base")}
	require.NoError(t, store.SavePatternSet(path, good))

	for _, name := range []string{
		"",
		"Split, missingBus [ Bus1 ]",
		"Two\nLines",
		"# comment",
		" padded",
	} {
		bad := append(good, entities.NewOperationPattern(name))
		err := store.SavePatternSet(path, bad)
		assert.ErrorIs(t, err, ErrInvalidPatternName, "name %q", name)
	}

	loaded, err := store.LoadPatternSet(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Base", loaded[0].Name())

	assert.NoError(t, ValidatePatternName("Pattern-1 (N-1) [winter]"))
}

func TestReadPatternSet_Errors(t *testing.T) {
	input := "# patterns\nP1, missingBus [ ], missingBranch [ ]\n\nP1, missingBus [ B1 ], missingBranch [ ]\n"
	_, err := ReadPatternSet(strings.NewReader(input), "p.txt")

	var pe *entities.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 4, pe.Line)

	_, err = ReadPatternSet(strings.NewReader("P1, missingBus [ ]\n"), "p.txt")
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Line)
	assert.Equal(t, "p.txt", pe.Path)
}

func TestStore_MissingFile(t *testing.T) {
	store := NewStore()
	_, err := store.LoadIndexMapping(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = store.SavePatternSet(filepath.Join(t.TempDir(), "no", "such", "dir.txt"), nil)
	assert.Error(t, err)
}
