package sliceutils

// Last returns at most the n trailing elements of slice, sharing its backing array.
func Last[T any](slice []T, n int) []T {
	if n <= 0 {
		return slice[:0]
	}
	if n >= len(slice) {
		return slice
	}
	return slice[len(slice)-n:]
}
