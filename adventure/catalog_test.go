package adventure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(defs []*Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}

func TestMemoryCatalog_OrdersByMinLevelThenID(t *testing.T) {
	c, err := NewMemoryCatalog(
		newDef(3, "Crypt", 5, 12, 0, 3),
		newDef(2, "Barrow", 1, 6, 0, 3),
		newDef(1, "Attic", 5, 8, 0, 3),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Barrow", "Attic", "Crypt"}, names(c.All()))
	assert.Equal(t, []string{"Barrow", "Attic", "Crypt"}, names(c.GetByLevel(6)))
	assert.Equal(t, []string{"Crypt"}, names(c.GetByLevel(10)))
	assert.Equal(t, []string{"Attic"}, names(c.Get(func(d *Definition) bool { return d.MaxLevel == 8 })))

	d, err := c.GetByID(2)
	require.NoError(t, err)
	assert.Equal(t, "Barrow", d.Name)

	_, err = c.GetByID(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCatalog_RejectsBadDefinitions(t *testing.T) {
	_, err := NewMemoryCatalog(newDef(1, "A", 1, 5, 0, 3), newDef(1, "B", 1, 5, 0, 3))
	assert.ErrorIs(t, err, ErrDuplicateID)

	inverted := newDef(2, "Inverted", 8, 4, 0, 3)
	_, err = NewMemoryCatalog(inverted)
	var invalid InvalidDefinitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 2, invalid.ID)

	empty := newDef(3, "Empty", 1, 4, 0, 3)
	empty.Encounters = nil
	_, err = NewMemoryCatalog(empty)
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "no encounters", invalid.Reason)
}
