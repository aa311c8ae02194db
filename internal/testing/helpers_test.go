package testing

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestPairs(t *testing.T) {
	pairs := Pairs([]int64{0, 1, 2, 3})
	require.Equal(t, [][2]int64{{0, 1}, {0, 2}, {0, 3}}, pairs)
	require.Nil(t, Pairs([]int64{1}))
}

func TestReverseIDs(t *testing.T) {
	ids := []int64{1, 2, 3}
	require.Equal(t, []int64{3, 2, 1}, ReverseIDs(ids))
	require.Equal(t, []int64{1, 2, 3}, ids)
	require.Empty(t, ReverseIDs(nil))
}

func TestRandString(t *testing.T) {
	require.Len(t, RandString(), 10)
	require.Len(t, RandString(32), 32)
}
