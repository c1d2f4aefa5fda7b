package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUUIDv4(t *testing.T) {
	g := New()

	id := g.NewID()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestNewIDIsUnique(t *testing.T) {
	g := New()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := g.NewID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestTokenHasPrefix(t *testing.T) {
	g := New()

	token := g.Token("tok_")
	assert.True(t, strings.HasPrefix(token, "tok_"))
	assert.Len(t, token, len("tok_")+22)
	assert.NotEqual(t, token, g.Token("tok_"))
}
