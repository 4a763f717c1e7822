package window

import (
	"errors"
	"testing"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArea = geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}

func testOptions() Options {
	return Options{
		Normal:        geometry.Size{Width: 320, Height: 480},
		Mini:          geometry.Size{Width: 60, Height: 60},
		Margin:        20,
		SnapThreshold: 20,
		ActiveOpacity: 0.95,
		AlwaysOnTop:   true,
	}
}

func TestNewStore_InitialState(t *testing.T) {
	s := NewStore(testOptions())
	st := s.State()

	assert.True(t, st.IsVisible)
	assert.False(t, st.IsMinimized)
	assert.Equal(t, geometry.Point{}, st.Position)
	assert.Equal(t, geometry.Size{Width: 320, Height: 480}, st.Size)
	assert.Equal(t, 0.95, st.Opacity)
	assert.True(t, st.AlwaysOnTop)
}

func TestInitializePosition_BottomRightWithMargin(t *testing.T) {
	s := NewStore(testOptions())
	s.InitializePosition(testArea)

	assert.Equal(t, geometry.Point{X: 1920 - 320 - 20, Y: 1080 - 480 - 20}, s.State().Position)
	assert.Equal(t, testArea, s.WorkArea())
}

func TestToggleMinimize_IsItsOwnInverse(t *testing.T) {
	s := NewStore(testOptions())
	before := s.State()

	mid := s.ToggleMinimize()
	assert.True(t, mid.IsMinimized)
	assert.Equal(t, geometry.Size{Width: 60, Height: 60}, mid.Size)

	after := s.ToggleMinimize()
	assert.Equal(t, before.IsMinimized, after.IsMinimized)
	assert.Equal(t, before.Size, after.Size)
}

func TestSetPosition_SnapsToEdges(t *testing.T) {
	tests := []struct {
		name string
		in   geometry.Point
		want geometry.Point
	}{
		{"near left", geometry.Point{X: 5, Y: 300}, geometry.Point{X: 0, Y: 300}},
		{"near top", geometry.Point{X: 500, Y: 19}, geometry.Point{X: 500, Y: 0}},
		{"near right", geometry.Point{X: 1590, Y: 300}, geometry.Point{X: 1600, Y: 300}},
		{"near bottom", geometry.Point{X: 500, Y: 590}, geometry.Point{X: 500, Y: 600}},
		{"both axes", geometry.Point{X: 3, Y: 595}, geometry.Point{X: 0, Y: 600}},
		{"far from edges", geometry.Point{X: 500, Y: 300}, geometry.Point{X: 500, Y: 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(testOptions())
			s.SetWorkArea(testArea)
			got := s.SetPosition(tt.in)
			assert.Equal(t, tt.want, got.Position)
		})
	}
}

func TestSetPosition_SnapsForEveryXBelowThreshold(t *testing.T) {
	s := NewStore(testOptions())
	s.SetWorkArea(testArea)
	for x := -10; x < 20; x++ {
		got := s.SetPosition(geometry.Point{X: x, Y: 400})
		require.Equal(t, 0, got.Position.X, "x=%d", x)
	}
}

func TestCheckSnapToEdge_ReportsChange(t *testing.T) {
	opts := testOptions()
	opts.SnapThreshold = 0
	s := NewStore(opts)
	assert.False(t, s.CheckSnapToEdge(20), "no work area yet")

	s.SetWorkArea(testArea)
	s.SetPosition(geometry.Point{X: 5, Y: 8})
	require.Equal(t, geometry.Point{X: 5, Y: 8}, s.State().Position)

	assert.False(t, s.CheckSnapToEdge(0))
	assert.True(t, s.CheckSnapToEdge(20))
	assert.Equal(t, geometry.Point{}, s.State().Position)
}

func TestSmartPosition(t *testing.T) {
	opts := testOptions()
	size := opts.Normal
	candidates := geometry.CornerCandidates(testArea, size, opts.Margin)

	t.Run("bottom-right free", func(t *testing.T) {
		s := NewStore(opts)
		s.SetWorkArea(testArea)
		require.True(t, s.SmartPosition(nil))
		assert.Equal(t, candidates[0], s.State().Position)
	})

	t.Run("first free corner wins", func(t *testing.T) {
		s := NewStore(opts)
		s.SetWorkArea(testArea)
		others := []geometry.Rect{
			geometry.RectAt(candidates[0], size),
			geometry.RectAt(candidates[1], size),
		}
		require.True(t, s.SmartPosition(others))
		assert.Equal(t, candidates[2], s.State().Position)
	})

	t.Run("all corners covered is a no-op", func(t *testing.T) {
		s := NewStore(opts)
		s.SetWorkArea(testArea)
		start := geometry.Point{X: 700, Y: 300}
		s.SetPosition(start)

		var others []geometry.Rect
		for _, c := range candidates {
			others = append(others, geometry.RectAt(c, size))
		}
		assert.False(t, s.SmartPosition(others))
		assert.Equal(t, start, s.State().Position)
	})
}

func TestVisibilityAndOpacity(t *testing.T) {
	s := NewStore(testOptions())

	s.Hide()
	assert.False(t, s.State().IsVisible)
	assert.True(t, s.ToggleVisibility())
	s.Show()
	assert.True(t, s.State().IsVisible)

	s.SetOpacity(1.7)
	assert.Equal(t, 1.0, s.State().Opacity)
	s.SetOpacity(-1)
	assert.Equal(t, 0.0, s.State().Opacity)

	s.SetAlwaysOnTop(false)
	assert.False(t, s.State().AlwaysOnTop)
}

func TestObservers_SeeOldAndNew(t *testing.T) {
	s := NewStore(testOptions())
	var calls [][2]State
	s.Subscribe(func(old, next State) {
		calls = append(calls, [2]State{old, next})
	})

	s.ToggleMinimize()
	s.Show() // already visible, no notification

	require.Len(t, calls, 1)
	assert.False(t, calls[0][0].IsMinimized)
	assert.True(t, calls[0][1].IsMinimized)
}

func TestPersistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.Persist = statestore.New(dir)

	s := NewStore(opts)
	s.SetWorkArea(testArea)
	s.ToggleMinimize()
	s.SetPosition(geometry.Point{X: 700, Y: 300})

	restoredOpts := testOptions()
	restoredOpts.Persist = statestore.New(dir)
	restored := NewStore(restoredOpts)

	ok, err := restored.Restore()
	require.NoError(t, err)
	assert.True(t, ok)

	st := restored.State()
	assert.True(t, st.IsMinimized)
	assert.Equal(t, opts.Mini, st.Size)
	assert.Equal(t, geometry.Point{X: 700, Y: 300}, st.Position)
}

func TestRestore_NothingSaved(t *testing.T) {
	opts := testOptions()
	opts.Persist = statestore.New(t.TempDir())
	s := NewStore(opts)

	ok, err := s.Restore()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.State().IsMinimized)
}

type failingPersister struct{}

func (failingPersister) Get(string, any) (bool, error) { return false, errors.New("disk gone") }
func (failingPersister) Set(string, any) error          { return errors.New("disk gone") }

func TestPersistFailures_DoNotBlockTransitions(t *testing.T) {
	opts := testOptions()
	opts.Persist = failingPersister{}
	s := NewStore(opts)

	assert.True(t, s.ToggleMinimize().IsMinimized)

	_, err := s.Restore()
	assert.Error(t, err)
}
