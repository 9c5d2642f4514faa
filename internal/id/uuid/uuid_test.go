package uuid

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsVersion7AndUnique(t *testing.T) {
	t.Parallel()

	gen := New()
	seen := make(map[string]struct{})
	ids := make([]string, 0, 64)
	for range 64 {
		id, err := gen.NewID()
		require.NoError(t, err)
		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	assert.Len(t, seen, 64)
	assert.True(t, sort.StringsAreSorted(ids), "v7 ids sort by creation")
}

func TestNewIDWrapsSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("entropy exhausted")
	gen := &Generator{newV7: func() (uuid.UUID, error) { return uuid.Nil, boom }}
	_, err := gen.NewID()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "document id")
}
