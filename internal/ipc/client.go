package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/runtimepath"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/1broseidon/floatdrop/internal/window"
)

const (
	defaultTimeout = 5 * time.Second
	// transferTimeout covers commands that may download or upload.
	transferTimeout = transfer.DefaultTimeout + 30*time.Second
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the socket at socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    defaultTimeout,
	}
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	return conn, nil
}

func writeRequest(conn net.Conn, req *Request) error {
	reqData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func readResponse(reader *bufio.Reader) (*Response, error) {
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status == StatusError {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request, timeout time.Duration) (*Response, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	if err := writeRequest(conn, req); err != nil {
		return nil, err
	}
	return readResponse(bufio.NewReader(conn))
}

// call sends command with an optional payload and decodes the response
// data into out when out is non-nil.
func (c *Client) call(command CommandType, payload any, out any, timeout time.Duration) error {
	req := &Request{Command: command}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = raw
	}

	resp, err := c.sendRequest(req, timeout)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", command, err)
	}
	return nil
}

// Show makes the floating window visible.
func (c *Client) Show() error {
	return c.call(CommandShowWindow, nil, nil, c.timeout)
}

// Hide hides the floating window.
func (c *Client) Hide() error {
	return c.call(CommandHideWindow, nil, nil, c.timeout)
}

// ToggleMinimize switches between the normal and mini presets.
func (c *Client) ToggleMinimize() (*window.State, error) {
	var st window.State
	if err := c.call(CommandToggleMinimize, nil, &st, c.timeout); err != nil {
		return nil, err
	}
	return &st, nil
}

// ToggleVisibility flips visibility and reports the new value.
func (c *Client) ToggleVisibility() (bool, error) {
	var data VisibilityData
	if err := c.call(CommandToggleVisibility, nil, &data, c.timeout); err != nil {
		return false, err
	}
	return data.Visible, nil
}

// Capture takes a screenshot of region, or the whole screen when region is
// nil.
func (c *Client) Capture(region *geometry.Rect) (*capture.Shot, error) {
	var shot capture.Shot
	if err := c.call(CommandCapture, CapturePayload{Region: region}, &shot, transferTimeout); err != nil {
		return nil, err
	}
	return &shot, nil
}

// ScreenshotHistory lists saved screenshots, newest first.
func (c *Client) ScreenshotHistory() ([]capture.Shot, error) {
	var data ScreenshotsData
	if err := c.call(CommandScreenshots, nil, &data, defaultTimeout); err != nil {
		return nil, err
	}
	return data.Screenshots, nil
}

// StartFileDrag resolves desc to a local path, downloading if needed.
func (c *Client) StartFileDrag(desc transfer.FileDescriptor) (string, error) {
	var data PathData
	if err := c.call(CommandStartFileDrag, FilePayload{File: desc}, &data, transferTimeout); err != nil {
		return "", err
	}
	return data.Path, nil
}

// PrepareDragData resolves desc and returns its file drag payload.
func (c *Client) PrepareDragData(desc transfer.FileDescriptor) (*drag.Payload, error) {
	var p drag.Payload
	if err := c.call(CommandPrepareDragData, FilePayload{File: desc}, &p, transferTimeout); err != nil {
		return nil, err
	}
	return &p, nil
}

// DragToExternal places p on the system clipboard.
func (c *Client) DragToExternal(p drag.Payload) error {
	return c.call(CommandDragToExternal, p, nil, c.timeout)
}

// UploadFiles uploads paths and returns the descriptors of the successes.
func (c *Client) UploadFiles(paths []string) ([]transfer.FileDescriptor, error) {
	var data UploadData
	if err := c.call(CommandUploadFiles, UploadPayload{Paths: paths}, &data, time.Duration(max(1, len(paths)))*transferTimeout); err != nil {
		return nil, err
	}
	return data.Files, nil
}

// GetAppConfig returns the daemon's effective client settings.
func (c *Client) GetAppConfig() (*AppConfigData, error) {
	var data AppConfigData
	if err := c.call(CommandGetAppConfig, nil, &data, c.timeout); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetState returns the window state and daemon status.
func (c *Client) GetState() (*StateData, error) {
	var data StateData
	if err := c.call(CommandGetState, nil, &data, c.timeout); err != nil {
		return nil, err
	}
	return &data, nil
}

// StartAutoHide arms the fade timer.
func (c *Client) StartAutoHide() error {
	return c.call(CommandStartAutoHide, nil, nil, c.timeout)
}

// CancelAutoHide disarms the fade timer and restores opacity.
func (c *Client) CancelAutoHide() error {
	return c.call(CommandCancelAutoHide, nil, nil, c.timeout)
}

// SmartPosition moves the window to the first free corner.
func (c *Client) SmartPosition() (bool, error) {
	var data SmartPositionData
	if err := c.call(CommandSmartPosition, nil, &data, c.timeout); err != nil {
		return false, err
	}
	return data.Moved, nil
}

// CleanupTemp sweeps the scratch directories now.
func (c *Client) CleanupTemp() (map[string]int, error) {
	var data CleanupData
	if err := c.call(CommandCleanupTemp, nil, &data, c.timeout); err != nil {
		return nil, err
	}
	return data.Removed, nil
}

// Reload asks the daemon to re-read its config file.
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil, c.timeout)
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetState()
	return err
}

// Subscribe streams daemon events to fn until ctx is cancelled or the
// daemon closes the stream.
func (c *Client) Subscribe(ctx context.Context, fn func(StreamEvent)) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))
	if err := writeRequest(conn, &Request{Command: CommandSubscribe}); err != nil {
		return err
	}
	reader := bufio.NewReader(conn)
	if _, err := readResponse(reader); err != nil {
		return err
	}
	conn.SetDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event stream closed: %w", err)
		}
		ev, err := decodeStreamEvent(line)
		if err != nil {
			return err
		}
		fn(ev)
	}
}

func decodeStreamEvent(line []byte) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return StreamEvent{}, fmt.Errorf("failed to parse event: %w", err)
	}
	return ev, nil
}
