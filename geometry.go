package browserbridge

// Size is a viewport or frame size in device pixels.
type Size struct {
	Width  int
	Height int
}

// IsZero reports whether either dimension is not positive.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) Eq(o Size) bool {
	return s.Width == o.Width && s.Height == o.Height
}

// Point is a position in viewport pixel coordinates.
type Point struct {
	X int
	Y int
}
