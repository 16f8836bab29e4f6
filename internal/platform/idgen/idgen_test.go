package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIsUniqueAndPrefixed(t *testing.T) {
	g, err := New(1)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := g.Next(PrefixVoucher)
		require.True(t, strings.HasPrefix(n, "JV-"), n)
		require.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

func TestNewRejectsBadNode(t *testing.T) {
	_, err := New(4096)
	assert.Error(t, err)
}
