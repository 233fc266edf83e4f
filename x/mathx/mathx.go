// Package mathx holds the small generic helpers the drivers and the
// animation share.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. Swapped bounds are accepted.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	return min(max(v, lo), hi)
}

// Between reports whether v lies in [lo, hi], bounds in either order.
func Between[T constraints.Ordered](v, lo, hi T) bool {
	return v == Clamp(v, lo, hi)
}

func Abs[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}
