package collections

import (
	"cmp"
	"slices"
)

// Keys returns the keys of m in ascending order.
func Keys[K cmp.Ordered, V any](m map[K]V) []K {
	result := make([]K, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	slices.Sort(result)
	return result
}

func Contains[T comparable](list []T, t T) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

// Filter returns the elements of list for which keep is true, in order.
func Filter[T any](list []T, keep func(T) bool) []T {
	result := make([]T, 0, len(list))
	for _, v := range list {
		if keep(v) {
			result = append(result, v)
		}
	}
	return result
}

// Count returns the number of occurrences of each element.
func Count[T comparable](list []T) map[T]int {
	result := make(map[T]int, len(list))
	for _, v := range list {
		result[v]++
	}
	return result
}

// Duplicates returns the elements occurring more than once, ascending.
func Duplicates[T cmp.Ordered](list []T) []T {
	count := Count(list)
	var result []T
	for _, k := range Keys(count) {
		if count[k] > 1 {
			result = append(result, k)
		}
	}
	return result
}
