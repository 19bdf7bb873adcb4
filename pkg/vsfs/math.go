package vsfs

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// DivCeil divides `a` by `b`, rounding up.
func DivCeil[T integer](a, b T) T {
	if a%b > 0 {
		return a/b + 1
	}
	return a / b
}
