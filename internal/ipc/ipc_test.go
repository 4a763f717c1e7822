package ipc

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/events"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/1broseidon/floatdrop/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	*events.Broadcaster

	mu       sync.Mutex
	calls    []string
	state    window.State
	dragErr  error
	external []drag.Payload
	uploaded []string
	regions  []*geometry.Rect
}

func newFakeService() *fakeService {
	return &fakeService{
		Broadcaster: events.NewBroadcaster(),
		state: window.State{
			IsVisible: true,
			Size:      geometry.Size{Width: 320, Height: 480},
			Opacity:   0.95,
		},
	}
}

func (f *fakeService) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeService) Show() { f.record("show") }
func (f *fakeService) Hide() { f.record("hide") }

func (f *fakeService) ToggleMinimize() window.State {
	f.record("minimize")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsMinimized = !f.state.IsMinimized
	return f.state
}

func (f *fakeService) ToggleVisibility() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsVisible = !f.state.IsVisible
	return f.state.IsVisible
}

func (f *fakeService) Capture(_ context.Context, region *geometry.Rect) (capture.Shot, error) {
	f.mu.Lock()
	f.regions = append(f.regions, region)
	f.mu.Unlock()
	return capture.Shot{FileName: "screenshot_x.png", Path: "/tmp/screenshot_x.png"}, nil
}

func (f *fakeService) ScreenshotHistory() ([]capture.Shot, error) {
	return []capture.Shot{{FileName: "screenshot_b.png"}, {FileName: "screenshot_a.png"}}, nil
}

func (f *fakeService) StartFileDrag(_ context.Context, desc transfer.FileDescriptor) (string, error) {
	f.mu.Lock()
	err := f.dragErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return "/tmp/drag/" + desc.Name, nil
}

func (f *fakeService) PrepareDragData(_ context.Context, desc transfer.FileDescriptor) (drag.Payload, error) {
	return drag.Payload{Kind: drag.KindFile, Path: "/tmp/drag/" + desc.Name, FileName: desc.Name, FileSize: 3}, nil
}

func (f *fakeService) DragToExternal(p drag.Payload) error {
	f.mu.Lock()
	f.external = append(f.external, p)
	f.mu.Unlock()
	return nil
}

func (f *fakeService) UploadFiles(_ context.Context, paths []string) ([]transfer.FileDescriptor, error) {
	f.mu.Lock()
	f.uploaded = paths
	f.mu.Unlock()
	return []transfer.FileDescriptor{{ID: "1", Name: filepath.Base(paths[0])}}, nil
}

func (f *fakeService) AppConfig() AppConfigData {
	return AppConfigData{APIBaseURL: "http://localhost:3000", MaxFileSize: 100}
}

func (f *fakeService) State() StateData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return StateData{Window: f.state, Status: "normal", AutoHide: "active"}
}

// snapshot returns copies of the recorded calls.
func (f *fakeService) snapshot() (calls []string, external []drag.Payload, uploaded []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), append([]drag.Payload(nil), f.external...), append([]string(nil), f.uploaded...)
}

func (f *fakeService) StartAutoHide()  { f.record("autohide-start") }
func (f *fakeService) CancelAutoHide() { f.record("autohide-cancel") }

func (f *fakeService) SmartPosition() (bool, error) { return true, nil }

func (f *fakeService) CleanupTemp() map[string]int { return map[string]int{"drag": 2} }

func (f *fakeService) Reload() error { return errors.New("bad yaml") }

func startServer(t *testing.T, svc Service) *Client {
	t.Helper()
	// Unix socket paths are length limited; keep them short.
	dir, err := os.MkdirTemp("", "fdipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	socket := filepath.Join(dir, "s.sock")
	srv := NewServerAt(socket, svc)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		srv.Stop()
		srv.Wait()
	})
	return NewClientAt(socket)
}

func TestWindowCommands(t *testing.T) {
	svc := newFakeService()
	c := startServer(t, svc)

	require.NoError(t, c.Show())
	require.NoError(t, c.Hide())
	st, err := c.ToggleMinimize()
	require.NoError(t, err)
	assert.True(t, st.IsMinimized)

	visible, err := c.ToggleVisibility()
	require.NoError(t, err)
	assert.False(t, visible)

	require.NoError(t, c.StartAutoHide())
	require.NoError(t, c.CancelAutoHide())

	moved, err := c.SmartPosition()
	require.NoError(t, err)
	assert.True(t, moved)

	calls, _, _ := svc.snapshot()
	assert.Equal(t, []string{"show", "hide", "minimize", "autohide-start", "autohide-cancel"}, calls)
}

func TestStateAndConfig(t *testing.T) {
	c := startServer(t, newFakeService())

	state, err := c.GetState()
	require.NoError(t, err)
	assert.Equal(t, "normal", state.Status)
	assert.Equal(t, 320, state.Window.Size.Width)

	cfg, err := c.GetAppConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.APIBaseURL)

	require.NoError(t, c.Ping())
}

func TestDragCommands(t *testing.T) {
	svc := newFakeService()
	c := startServer(t, svc)

	path, err := c.StartFileDrag(transfer.FileDescriptor{Name: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/drag/a.txt", path)

	p, err := c.PrepareDragData(transfer.FileDescriptor{Name: "b.txt"})
	require.NoError(t, err)
	assert.Equal(t, drag.KindFile, p.Kind)
	assert.Equal(t, int64(3), p.FileSize)

	require.NoError(t, c.DragToExternal(drag.Payload{Kind: drag.KindText, Text: "hi"}))
	_, external, _ := svc.snapshot()
	require.Len(t, external, 1)
	assert.Equal(t, "hi", external[0].Text)

	svc.mu.Lock()
	svc.dragErr = transfer.ErrFileUnavailable
	svc.mu.Unlock()
	_, err = c.StartFileDrag(transfer.FileDescriptor{Name: "gone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file unavailable")
}

func TestUploadCaptureCleanup(t *testing.T) {
	svc := newFakeService()
	c := startServer(t, svc)

	files, err := c.UploadFiles([]string{"/tmp/x.png"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "x.png", files[0].Name)
	_, _, uploaded := svc.snapshot()
	assert.Equal(t, []string{"/tmp/x.png"}, uploaded)

	_, err = c.UploadFiles(nil)
	assert.Error(t, err)

	shot, err := c.Capture(nil)
	require.NoError(t, err)
	assert.Equal(t, "screenshot_x.png", shot.FileName)

	removed, err := c.CleanupTemp()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"drag": 2}, removed)
}

func TestCaptureRegionAndHistory(t *testing.T) {
	svc := newFakeService()
	c := startServer(t, svc)

	region := &geometry.Rect{X: 10, Y: 20, Width: 300, Height: 200}
	_, err := c.Capture(region)
	require.NoError(t, err)
	_, err = c.Capture(nil)
	require.NoError(t, err)
	var shot capture.Shot
	require.NoError(t, c.call(CommandCapture, nil, &shot, time.Second), "payload is optional")
	assert.Equal(t, "screenshot_x.png", shot.FileName)

	svc.mu.Lock()
	regions := append([]*geometry.Rect(nil), svc.regions...)
	svc.mu.Unlock()
	require.Len(t, regions, 3)
	assert.Equal(t, region, regions[0])
	assert.Nil(t, regions[1])
	assert.Nil(t, regions[2])

	shots, err := c.ScreenshotHistory()
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, "screenshot_b.png", shots[0].FileName)
}

func TestErrorResponses(t *testing.T) {
	c := startServer(t, newFakeService())

	err := c.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad yaml")

	err = c.call("NOPE", nil, nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	err = c.call(CommandStartFileDrag, nil, nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload is required")
}

func TestMalformedRequest(t *testing.T) {
	c := startServer(t, newFakeService())

	conn, err := net.Dial("unix", c.socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("{not json\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.Contains(line, `"status":"ERROR"`), line)
}

func TestSubscribeStreamsEvents(t *testing.T) {
	svc := newFakeService()
	c := startServer(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan StreamEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, func(ev StreamEvent) { got <- ev })
	}()

	require.Eventually(t, func() bool { return svc.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	svc.Publish(events.New(events.ScreenshotCaptured, events.ScreenshotPayload{Path: "/tmp/s.png"}))

	select {
	case ev := <-got:
		assert.Equal(t, events.ScreenshotCaptured, ev.Type)
		assert.Contains(t, string(ev.Payload), "/tmp/s.png")
		assert.NotZero(t, ev.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
	require.Eventually(t, func() bool { return svc.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
