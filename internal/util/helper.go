// Package util holds small generic helpers shared across go-jq6500 packages.
package util

// CloneSlice clones src into a fresh slice of cloneSize elements.
// A cloneSize of 0 uses the source length.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}
