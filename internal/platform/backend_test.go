package platform

import "testing"

func TestOtherWindows_SkipsSelf(t *testing.T) {
	windows := []Window{
		{ID: 1, Bounds: Rect{X: 0, Y: 0, Width: 10, Height: 10}},
		{ID: 2, Bounds: Rect{X: 20, Y: 0, Width: 10, Height: 10}},
		{ID: 3, Bounds: Rect{X: 40, Y: 0, Width: 10, Height: 10}},
	}

	got := OtherWindows(windows, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 rects, got %d", len(got))
	}
	if got[0].X != 0 || got[1].X != 40 {
		t.Fatalf("unexpected rects %+v", got)
	}
}
