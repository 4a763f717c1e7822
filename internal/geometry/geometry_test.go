package geometry

import "testing"

func TestOverlaps(t *testing.T) {
	base := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	tests := []struct {
		name  string
		other Rect
		want  bool
	}{
		{"identical", base, true},
		{"inside", Rect{X: 10, Y: 10, Width: 10, Height: 10}, true},
		{"partial", Rect{X: 50, Y: 50, Width: 100, Height: 100}, true},
		{"touching right edge", Rect{X: 100, Y: 0, Width: 50, Height: 50}, false},
		{"touching bottom edge", Rect{X: 0, Y: 100, Width: 50, Height: 50}, false},
		{"entirely left", Rect{X: -60, Y: 0, Width: 50, Height: 50}, false},
		{"entirely above", Rect{X: 0, Y: -60, Width: 50, Height: 50}, false},
		{"one pixel shared", Rect{X: 99, Y: 99, Width: 10, Height: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(base, tt.other); got != tt.want {
				t.Fatalf("Overlaps(%v, %v) = %v, want %v", base, tt.other, got, tt.want)
			}
			if got := Overlaps(tt.other, base); got != tt.want {
				t.Fatalf("Overlaps is not symmetric for %v", tt.other)
			}
		})
	}
}

func TestSnap_NearEdgesSnapFlush(t *testing.T) {
	area := Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	size := Size{Width: 320, Height: 480}
	const threshold = 20

	for x := -50; x < threshold; x++ {
		got := Snap(Point{X: x, Y: 500}, size, area, threshold)
		if got.X != 0 {
			t.Fatalf("x=%d: expected snap to 0, got %d", x, got.X)
		}
		if got.Y != 500 {
			t.Fatalf("x=%d: y changed to %d", x, got.Y)
		}
	}

	for y := -50; y < threshold; y++ {
		got := Snap(Point{X: 700, Y: y}, size, area, threshold)
		if got.Y != 0 {
			t.Fatalf("y=%d: expected snap to 0, got %d", y, got.Y)
		}
	}

	// Right edge: x+w > 1920-20 snaps x to 1600.
	for x := 1920 - threshold - size.Width + 1; x < 1700; x++ {
		got := Snap(Point{X: x, Y: 500}, size, area, threshold)
		if got.X != 1920-size.Width {
			t.Fatalf("x=%d: expected snap to %d, got %d", x, 1920-size.Width, got.X)
		}
	}

	// Bottom edge.
	got := Snap(Point{X: 700, Y: 1080 - 480 - 5}, size, area, threshold)
	if got.Y != 1080-480 {
		t.Fatalf("expected bottom snap to %d, got %d", 1080-480, got.Y)
	}
}

func TestSnap_FarFromEdgesUnchanged(t *testing.T) {
	area := Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	size := Size{Width: 320, Height: 480}
	pos := Point{X: 400, Y: 300}

	if got := Snap(pos, size, area, 20); got != pos {
		t.Fatalf("expected %v unchanged, got %v", pos, got)
	}
	// Exactly at the threshold does not snap.
	pos = Point{X: 20, Y: 20}
	if got := Snap(pos, size, area, 20); got != pos {
		t.Fatalf("expected %v unchanged at threshold, got %v", pos, got)
	}
}

func TestSnap_OffsetWorkArea(t *testing.T) {
	area := Rect{X: 1920, Y: 32, Width: 1280, Height: 1000}
	got := Snap(Point{X: 1925, Y: 40}, Size{Width: 100, Height: 100}, area, 20)
	if got != (Point{X: 1920, Y: 32}) {
		t.Fatalf("expected snap to work area origin, got %v", got)
	}
}

func TestCornerCandidates_Order(t *testing.T) {
	area := Rect{X: 0, Y: 0, Width: 1000, Height: 800}
	size := Size{Width: 100, Height: 200}
	got := CornerCandidates(area, size, 20)
	want := []Point{
		{X: 880, Y: 580}, // bottom-right
		{X: 20, Y: 580},  // bottom-left
		{X: 880, Y: 20},  // top-right
		{X: 20, Y: 20},   // top-left
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestFirstFree(t *testing.T) {
	area := Rect{X: 0, Y: 0, Width: 1000, Height: 800}
	size := Size{Width: 100, Height: 200}
	candidates := CornerCandidates(area, size, 20)

	// Block the bottom half of the screen: top-right wins.
	others := []Rect{{X: 0, Y: 400, Width: 1000, Height: 400}}
	got, ok := FirstFree(candidates, size, others)
	if !ok || got != candidates[2] {
		t.Fatalf("expected top-right %v, got %v ok=%v", candidates[2], got, ok)
	}

	// Everything covered.
	others = []Rect{area}
	if _, ok := FirstFree(candidates, size, others); ok {
		t.Fatalf("expected no free candidate")
	}
}

func TestIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	b := Rect{X: 50, Y: 60, Width: 100, Height: 100}
	got := Intersect(a, b)
	if got != (Rect{X: 50, Y: 60, Width: 50, Height: 40}) {
		t.Fatalf("unexpected intersection %v", got)
	}
	if !Intersect(a, Rect{X: 200, Y: 200, Width: 1, Height: 1}).Empty() {
		t.Fatalf("expected empty intersection")
	}
}
