package strx

// Coalesce returns v unless it is the zero value, in which case d.
func Coalesce[T comparable](v, d T) T {
	var zero T
	if v == zero {
		return d
	}
	return v
}
