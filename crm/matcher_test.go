package crm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonMatcher(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	m := NewPersonMatcher(store)

	_, found, err := m.FindMatch(ctx, "  ")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = m.FindMatch(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	// The miss is remembered for the rest of the operation.
	p := mustPerson(t, store, "Anna", "Riva", "anna@example.com")
	_, found, err = m.FindMatch(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	fresh := NewPersonMatcher(store)
	got, found, err := fresh.FindMatch(ctx, "Anna@Example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.ID, got.ID)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "john@example.com", normalizeEmail(" John@Example.COM "))
	assert.Equal(t, "", normalizeEmail(""))
}
