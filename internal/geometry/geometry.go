// Package geometry holds the rectangle math used to place the floating
// window: overlap tests, edge snapping and corner candidates.
package geometry

// Point is a position in screen coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Rect represents a window position and size.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RectAt builds a Rect from a position and size.
func RectAt(p Point, s Size) Rect {
	return Rect{X: p.X, Y: p.Y, Width: s.Width, Height: s.Height}
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Origin returns the top-left corner.
func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Size returns the rect's dimensions.
func (r Rect) Size() Size { return Size{Width: r.Width, Height: r.Height} }

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether (x, y) lies inside r. Edges follow [X, X+Width).
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Overlaps reports whether a and b share any area. Both rects span
// half-open intervals, so rects that only touch along an edge do not
// overlap.
func Overlaps(a, b Rect) bool {
	return !(a.Right() <= b.X || b.Right() <= a.X || a.Bottom() <= b.Y || b.Bottom() <= a.Y)
}

// OverlapsAny reports whether r overlaps any rect in others.
func OverlapsAny(r Rect, others []Rect) bool {
	for _, o := range others {
		if Overlaps(r, o) {
			return true
		}
	}
	return false
}

// Intersect returns the shared area of a and b, or a zero Rect.
func Intersect(a, b Rect) Rect {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.Right(), b.Right())
	y2 := min(a.Bottom(), b.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Snap pulls a window flush to the edges of area when it is within
// threshold pixels of them. The left/top edge is checked first; the
// right/bottom edge only applies when the near edge did not snap.
func Snap(pos Point, size Size, area Rect, threshold int) Point {
	out := pos

	if pos.X-area.X < threshold {
		out.X = area.X
	} else if pos.X+size.Width > area.Right()-threshold {
		out.X = area.Right() - size.Width
	}

	if pos.Y-area.Y < threshold {
		out.Y = area.Y
	} else if pos.Y+size.Height > area.Bottom()-threshold {
		out.Y = area.Bottom() - size.Height
	}

	return out
}

// Corner identifies one of the four work-area corners.
type Corner int

const (
	BottomRight Corner = iota
	BottomLeft
	TopRight
	TopLeft
)

// String returns the corner name.
func (c Corner) String() string {
	switch c {
	case BottomRight:
		return "bottom-right"
	case BottomLeft:
		return "bottom-left"
	case TopRight:
		return "top-right"
	case TopLeft:
		return "top-left"
	default:
		return "unknown"
	}
}

// CornerPoint returns the origin that places a window of the given size
// in corner c of area, inset by margin.
func CornerPoint(area Rect, size Size, margin int, c Corner) Point {
	left := area.X + margin
	top := area.Y + margin
	right := area.Right() - size.Width - margin
	bottom := area.Bottom() - size.Height - margin

	switch c {
	case BottomLeft:
		return Point{X: left, Y: bottom}
	case TopRight:
		return Point{X: right, Y: top}
	case TopLeft:
		return Point{X: left, Y: top}
	default:
		return Point{X: right, Y: bottom}
	}
}

// CornerCandidates lists placement candidates in priority order:
// bottom-right, bottom-left, top-right, top-left.
func CornerCandidates(area Rect, size Size, margin int) []Point {
	corners := []Corner{BottomRight, BottomLeft, TopRight, TopLeft}
	out := make([]Point, 0, len(corners))
	for _, c := range corners {
		out = append(out, CornerPoint(area, size, margin, c))
	}
	return out
}

// FirstFree returns the first candidate whose rect of the given size does
// not overlap any of others. ok is false when every candidate overlaps.
func FirstFree(candidates []Point, size Size, others []Rect) (Point, bool) {
	for _, c := range candidates {
		if !OverlapsAny(RectAt(c, size), others) {
			return c, true
		}
	}
	return Point{}, false
}
