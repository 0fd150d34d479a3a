// Package pointers has helpers for optional values
package pointers

// Safe returns the value from ptr or the zero value if the pointer is nil
func Safe[T any](ptr *T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	return zero
}

// SafeOr returns the value from ptr or def if the pointer is nil
func SafeOr[T any](ptr *T, def T) T {
	if ptr != nil {
		return *ptr
	}
	return def
}

// To returns a pointer to a copy of v
func To[T any](v T) *T {
	return &v
}
