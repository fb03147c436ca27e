package conv

func Ptr[T any](v T) *T {
	return &v
}

func ValueOrDefault[T comparable](value T, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}
