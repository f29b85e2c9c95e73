package randx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		id := ConnectionID()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate connection id %s", id)
		seen[id] = struct{}{}
	}
}

func TestConnectionIDIsUUIDv4(t *testing.T) {
	parsed, err := uuid.Parse(ConnectionID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}
