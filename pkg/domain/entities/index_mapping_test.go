package entities

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexMapping_Register_DenseInCallOrder(t *testing.T) {
	m := NewIndexMapping(0)

	ids := []string{"Bus1", "Bus7", "Bus3", "Bus14", "Bus2"}
	for n, id := range ids {
		i, err := m.Register(id)
		require.NoError(t, err)
		assert.Equal(t, n, i, "index for %s", id)
	}

	assert.Equal(t, len(ids), m.Size())
	assert.Equal(t, ids, m.IDs())
	assert.NoError(t, m.Validate())
}

func TestIndexMapping_Register_Duplicate(t *testing.T) {
	m := NewIndexMapping(2)
	_, err := m.Register("Bus1")
	require.NoError(t, err)
	_, err = m.Register("Bus2")
	require.NoError(t, err)

	i, err := m.Register("Bus1")
	assert.True(t, errors.Is(err, ErrDuplicateID))
	assert.Equal(t, 0, i)
	assert.Equal(t, 2, m.Size())

	// next registration still gets the next dense index
	i, err = m.Register("Bus3")
	require.NoError(t, err)
	assert.Equal(t, 2, i)
}

func TestIndexMapping_Register_RejectsBadIDs(t *testing.T) {
	m := NewIndexMapping(0)
	for _, id := range []string{"", "Bus 1", "Bus1\n"} {
		_, err := m.Register(id)
		assert.ErrorIs(t, err, ErrEmptyID, "id %q", id)
	}
	assert.Equal(t, 0, m.Size())
}

func TestIndexMapping_IndexOf_Unknown(t *testing.T) {
	m := NewIndexMapping(1)
	_, err := m.Register("Bus1")
	require.NoError(t, err)

	i, err := m.IndexOf("Bus1")
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	_, err = m.IndexOf("Bus99")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "Bus99")
}

func TestIndexMapping_Put(t *testing.T) {
	m := NewIndexMapping(3)
	require.NoError(t, m.Put("Bus1->Bus2(1)", 1))
	require.NoError(t, m.Put("Bus2->Bus3(1)", 0))

	assert.ErrorIs(t, m.Put("Bus1->Bus2(1)", 5), ErrDuplicateID)
	assert.ErrorIs(t, m.Put("Bus3->Bus4(1)", 0), ErrIndexInUse)
	assert.Error(t, m.Put("Bus3->Bus4(1)", -1))

	assert.Equal(t, []string{"Bus2->Bus3(1)", "Bus1->Bus2(1)"}, m.IDs())
	assert.NoError(t, m.Validate())
}

func TestIndexMapping_SparseFileNeverReusesIndex(t *testing.T) {
	m := NewIndexMapping(2)
	require.NoError(t, m.Put("Bus1", 0))
	require.NoError(t, m.Put("Bus5", 4))
	assert.ErrorIs(t, m.Validate(), ErrNotDense)

	i, err := m.Register("Bus6")
	require.NoError(t, err)
	assert.Equal(t, 5, i)
}

func TestIndexMapping_Clone(t *testing.T) {
	m := NewIndexMapping(0)
	for n := 0; n < 4; n++ {
		_, err := m.Register(fmt.Sprintf("Bus%d", n+1))
		require.NoError(t, err)
	}

	c := m.Clone()
	_, err := c.Register("Bus99")
	require.NoError(t, err)

	assert.Equal(t, 4, m.Size())
	assert.Equal(t, 5, c.Size())
	assert.False(t, m.Contains("Bus99"))
}
