package daemon

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/floatdrop/internal/clipboard"
	"github.com/1broseidon/floatdrop/internal/config"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/events"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/platform"
	"github.com/1broseidon/floatdrop/internal/scratch"
	"github.com/1broseidon/floatdrop/internal/statestore"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArea = geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}

type fakeBackend struct {
	mu       sync.Mutex
	windowID platform.WindowID
	windows  []platform.Window
	moves    []platform.Rect
	handlers platform.WindowHandlers
	watched  platform.WindowID
}

func (f *fakeBackend) Displays() ([]platform.Display, error) {
	return []platform.Display{{ID: 0, Bounds: testArea, Usable: testArea}}, nil
}

func (f *fakeBackend) ActiveDisplay() (platform.Display, error) {
	return platform.Display{ID: 0, Bounds: testArea, Usable: testArea}, nil
}

func (f *fakeBackend) PrimaryWorkArea() (platform.Rect, error) { return testArea, nil }

func (f *fakeBackend) ListWindowsOnDisplay(int) ([]platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Window(nil), f.windows...), nil
}

func (f *fakeBackend) FindWindowByClass(class string) (platform.WindowID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.windowID == 0 {
		return 0, platform.ErrWindowNotFound
	}
	return f.windowID, nil
}

func (f *fakeBackend) MoveResize(_ platform.WindowID, b platform.Rect) error {
	f.mu.Lock()
	f.moves = append(f.moves, b)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) SetOpacity(platform.WindowID, float64) error  { return nil }
func (f *fakeBackend) Show(platform.WindowID) error                 { return nil }
func (f *fakeBackend) Hide(platform.WindowID) error                 { return nil }
func (f *fakeBackend) SetAlwaysOnTop(platform.WindowID, bool) error { return nil }

func (f *fakeBackend) Watch(id platform.WindowID, h platform.WindowHandlers) error {
	f.mu.Lock()
	f.watched = id
	f.handlers = h
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Capture(*platform.Rect) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

type recordingClipboard struct {
	writes [][]clipboard.Item
}

func (r *recordingClipboard) Write(items []clipboard.Item) error {
	r.writes = append(r.writes, items)
	return nil
}

func newTestApp(t *testing.T, backend *fakeBackend, mutate func(*Options)) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	opts := Options{
		Config:      cfg,
		Backend:     backend,
		StateDir:    filepath.Join(t.TempDir(), "state"),
		ScratchRoot: t.TempDir(),
		Clipboard:   &recordingClipboard{},
	}
	if mutate != nil {
		mutate(&opts)
	}
	app, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(app.Stop)
	return app
}

func TestNewRequiresConfigAndBackend(t *testing.T) {
	_, err := New(Options{Backend: &fakeBackend{}})
	assert.Error(t, err)
	_, err = New(Options{Config: config.DefaultConfig()})
	assert.Error(t, err)
}

func TestNewCreatesScratchDirs(t *testing.T) {
	root := t.TempDir()
	newTestApp(t, &fakeBackend{}, func(o *Options) { o.ScratchRoot = root })
	for _, name := range []string{"drag", "screenshots", "share"} {
		info, err := os.Stat(filepath.Join(root, name))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestInitWindowDefaultsToBottomRight(t *testing.T) {
	app := newTestApp(t, &fakeBackend{}, nil)
	app.InitWindow()

	cfg := config.DefaultConfig()
	want := geometry.CornerPoint(testArea, cfg.Window.Normal, cfg.Window.Margin, geometry.BottomRight)
	assert.Equal(t, want, app.State().Window.Position)
}

func TestInitWindowRestoresPersistedState(t *testing.T) {
	stateDir := t.TempDir()
	store := statestore.New(stateDir)
	require.NoError(t, store.Set(statestore.KeyWindowState, map[string]bool{"isMinimized": true}))
	require.NoError(t, store.Set(statestore.KeyWindowPosition, map[string]int{"x": 500, "y": 400}))

	app := newTestApp(t, &fakeBackend{}, func(o *Options) { o.StateDir = stateDir })
	app.InitWindow()

	st := app.State().Window
	assert.True(t, st.IsMinimized)
	assert.Equal(t, config.DefaultConfig().Window.Mini, st.Size)
	assert.Equal(t, geometry.Point{X: 500, Y: 400}, st.Position)
}

func TestAttachNotFound(t *testing.T) {
	app := newTestApp(t, &fakeBackend{}, nil)
	ok, err := app.Attach()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttachAppliesStateAndWatches(t *testing.T) {
	backend := &fakeBackend{windowID: 7}
	app := newTestApp(t, backend, nil)
	app.InitWindow()

	ok, err := app.Attach()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, uint32(7), app.State().WindowID)
	assert.Equal(t, platform.WindowID(7), backend.watched)
	require.NotEmpty(t, backend.moves)
	assert.Equal(t, app.State().Window.Bounds(), backend.moves[len(backend.moves)-1])

	backend.handlers.Moved(platform.Rect{X: 700, Y: 300, Width: 320, Height: 480})
	assert.Equal(t, geometry.Point{X: 700, Y: 300}, app.State().Window.Position)

	backend.handlers.Focus(false)
	assert.True(t, app.State().FadePending)
	backend.handlers.Hover(true)
	assert.False(t, app.State().FadePending)
	assert.Equal(t, "active", app.State().AutoHide)
}

func TestAttachLoopStopsOnCancel(t *testing.T) {
	app := newTestApp(t, &fakeBackend{}, func(o *Options) { o.AttachInterval = 5 * time.Millisecond })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.attachLoop(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("attach loop did not stop")
	}
}

func TestSmartPositionAvoidsOtherWindows(t *testing.T) {
	cfg := config.DefaultConfig()
	bottomRight := geometry.CornerPoint(testArea, cfg.Window.Normal, cfg.Window.Margin, geometry.BottomRight)
	backend := &fakeBackend{
		windowID: 7,
		windows: []platform.Window{
			{ID: 7, Bounds: geometry.RectAt(bottomRight, cfg.Window.Normal)},
			{ID: 9, Bounds: geometry.RectAt(bottomRight, cfg.Window.Normal)},
		},
	}
	app := newTestApp(t, backend, nil)
	app.InitWindow()
	_, err := app.Attach()
	require.NoError(t, err)

	moved, err := app.SmartPosition()
	require.NoError(t, err)
	assert.True(t, moved)

	want := geometry.CornerPoint(testArea, cfg.Window.Normal, cfg.Window.Margin, geometry.BottomLeft)
	assert.Equal(t, want, app.State().Window.Position)
}

func TestCleanupTempSweepsExpired(t *testing.T) {
	root := t.TempDir()
	app := newTestApp(t, &fakeBackend{}, func(o *Options) { o.ScratchRoot = root })

	old := filepath.Join(root, "drag", "old.bin")
	fresh := filepath.Join(root, "drag", "fresh.bin")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0600))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	removed := app.CleanupTemp()
	assert.Equal(t, 1, removed["drag"])
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestDragToExternalUsesClipboard(t *testing.T) {
	clip := &recordingClipboard{}
	app := newTestApp(t, &fakeBackend{}, func(o *Options) { o.Clipboard = clip })

	require.NoError(t, app.DragToExternal(drag.Payload{Kind: drag.KindText, Text: "hello"}))
	require.Len(t, clip.writes, 1)
	assert.Equal(t, "hello", string(clip.writes[0][0].Data))
}

func TestReloadAppliesRelaySettings(t *testing.T) {
	next := config.DefaultConfig()
	next.Transfer.BaseURL = "http://relay.lan:3000"
	next.Window.Class = "floatdrop-dev"

	app := newTestApp(t, &fakeBackend{}, func(o *Options) {
		o.LoadConfig = func() (*config.Config, error) { return next, nil }
	})
	require.NoError(t, app.Reload())

	cfg := app.AppConfig()
	assert.Equal(t, "http://relay.lan:3000", cfg.APIBaseURL)
	assert.Equal(t, "floatdrop-dev", cfg.WindowClass)
}

func TestReloadAppliesMaxFileSize(t *testing.T) {
	next := config.DefaultConfig()
	next.Transfer.MaxFileSize = 10

	app := newTestApp(t, &fakeBackend{}, func(o *Options) {
		o.LoadConfig = func() (*config.Config, error) { return next, nil }
	})
	assert.Equal(t, transfer.DefaultMaxFileSize, app.AppConfig().MaxFileSize)
	require.NoError(t, app.Reload())
	assert.Equal(t, int64(10), app.AppConfig().MaxFileSize)

	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 1000), 0600))

	ch := app.Events().Subscribe()
	defer app.Events().Unsubscribe(ch)
	uploaded, err := app.UploadFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Empty(t, uploaded)

	var errs []events.ErrorPayload
	for len(ch) > 0 {
		if ev := <-ch; ev.Type == events.UploadError {
			errs = append(errs, ev.Payload.(events.ErrorPayload))
		}
	}
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, transfer.ErrFileTooLarge.Error())
	assert.Contains(t, errs[0].Error, "limit 10 B")
}

func TestCaptureAndHistory(t *testing.T) {
	root := t.TempDir()
	app := newTestApp(t, &fakeBackend{}, func(o *Options) { o.ScratchRoot = root })

	shots, err := app.ScreenshotHistory()
	require.NoError(t, err)
	assert.Empty(t, shots)

	shot, err := app.Capture(context.Background(), &geometry.Rect{X: 1, Y: 1, Width: 4, Height: 4})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "screenshots"), filepath.Dir(shot.Path))

	_, err = app.Capture(context.Background(), &geometry.Rect{X: 1, Y: 1})
	require.Error(t, err)

	shots, err = app.ScreenshotHistory()
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.Equal(t, shot.Path, shots[0].Path)
}

func TestDragToExternalSharesImageData(t *testing.T) {
	root := t.TempDir()
	clip := &recordingClipboard{}
	app := newTestApp(t, &fakeBackend{}, func(o *Options) {
		o.ScratchRoot = root
		o.Clipboard = clip
	})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	require.NoError(t, app.DragToExternal(drag.Payload{Kind: drag.KindImage, Data: buf.Bytes(), FileName: "pasted.png"}))

	assert.FileExists(t, filepath.Join(root, "share", "pasted.png"))
	require.Len(t, clip.writes, 1)
	assert.Equal(t, clipboard.TargetPNG, clip.writes[0][0].Target)
	assert.Equal(t, clipboard.TargetURIList, clip.writes[0][1].Target)
}

func TestReloadKeepsConfigOnError(t *testing.T) {
	app := newTestApp(t, &fakeBackend{}, func(o *Options) {
		o.LoadConfig = func() (*config.Config, error) { return nil, errors.New("bad yaml") }
	})
	assert.Error(t, app.Reload())
	assert.Equal(t, config.DefaultBaseURL, app.AppConfig().APIBaseURL)
}

func TestSweeperSweepNow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	now := time.Now().Add(48 * time.Hour)
	s := NewSweeper(SweeperConfig{
		Dirs: []scratch.Dir{{Name: "share", Path: dir, TTL: 24 * time.Hour}},
		Now:  func() time.Time { return now },
	})
	assert.Equal(t, map[string]int{"share": 1}, s.SweepNow())
	assert.NoFileExists(t, path)
	assert.Equal(t, defaultSweepInterval, s.interval)
}
