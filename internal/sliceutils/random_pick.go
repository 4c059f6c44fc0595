package sliceutils

import "math/rand/v2"

// RandomPick returns a uniformly chosen element, or the zero value for an empty slice.
func RandomPick[T any](slice []T) T {
	var zero T
	if len(slice) == 0 {
		return zero
	}
	return slice[rand.IntN(len(slice))]
}
