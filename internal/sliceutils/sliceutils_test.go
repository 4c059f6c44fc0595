package sliceutils_test

import (
	"testing"

	"github.com/habiliai/nativeagent/internal/sliceutils"
	"github.com/stretchr/testify/assert"
)

func TestLast(t *testing.T) {
	t.Run("Given short slice, when taking more than length, then return all elements", func(t *testing.T) {
		assert.Equal(t, []int{1, 2, 3}, sliceutils.Last([]int{1, 2, 3}, 10))
	})

	t.Run("Given long slice, when taking n, then return the trailing n elements", func(t *testing.T) {
		assert.Equal(t, []int{4, 5}, sliceutils.Last([]int{1, 2, 3, 4, 5}, 2))
	})

	t.Run("Given non-positive n, then return empty", func(t *testing.T) {
		assert.Empty(t, sliceutils.Last([]int{1, 2}, 0))
		assert.Empty(t, sliceutils.Last([]int{1, 2}, -1))
	})
}

func TestRandomPick(t *testing.T) {
	assert.Equal(t, "", sliceutils.RandomPick([]string(nil)))

	choices := []string{"a", "b", "c"}
	for range 20 {
		assert.Contains(t, choices, sliceutils.RandomPick(choices))
	}
}
