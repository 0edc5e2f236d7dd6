package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFloodGuardStopsAfterLimit(t *testing.T) {
	g := NewFloodGuard(2)
	require.True(t, g.Allow("s1"))
	require.True(t, g.Allow("s1"))
	require.False(t, g.Allow("s1"))
	require.True(t, g.Allow("s2"))

	g.Reset("s1")
	require.True(t, g.Allow("s1"))
}

func TestFloodGuardUnlimited(t *testing.T) {
	var nilGuard *FloodGuard
	require.True(t, nilGuard.Allow("x"))

	g := NewFloodGuard(0)
	for i := 0; i < 100; i++ {
		require.True(t, g.Allow("x"))
	}
}
