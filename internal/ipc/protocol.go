package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/1broseidon/floatdrop/internal/window"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandShowWindow       CommandType = "SHOW_WINDOW"
	CommandHideWindow       CommandType = "HIDE_WINDOW"
	CommandToggleMinimize   CommandType = "TOGGLE_MINIMIZE"
	CommandToggleVisibility CommandType = "TOGGLE_VISIBILITY"
	CommandCapture          CommandType = "CAPTURE"
	CommandScreenshots      CommandType = "SCREENSHOT_HISTORY"
	CommandStartFileDrag    CommandType = "START_FILE_DRAG"
	CommandPrepareDragData  CommandType = "PREPARE_DRAG_DATA"
	CommandDragToExternal   CommandType = "DRAG_TO_EXTERNAL"
	CommandUploadFiles      CommandType = "UPLOAD_FILES"
	CommandGetAppConfig     CommandType = "GET_APP_CONFIG"
	CommandGetState         CommandType = "GET_STATE"
	CommandStartAutoHide    CommandType = "START_AUTO_HIDE"
	CommandCancelAutoHide   CommandType = "CANCEL_AUTO_HIDE"
	CommandSmartPosition    CommandType = "SMART_POSITION"
	CommandCleanupTemp      CommandType = "CLEANUP_TEMP"
	CommandReload           CommandType = "RELOAD"
	CommandSubscribe        CommandType = "SUBSCRIBE"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StateData is returned by GET_STATE.
type StateData struct {
	Window        window.State `json:"window"`
	WindowID      uint32       `json:"window_id"`
	Status        string       `json:"status"`
	AutoHide      string       `json:"auto_hide"`
	FadePending   bool         `json:"fade_pending"`
	Subscribers   int          `json:"subscribers"`
	UptimeSeconds int64        `json:"uptime_seconds"`
}

// AppConfigData is returned by GET_APP_CONFIG.
type AppConfigData struct {
	APIBaseURL    string `json:"apiBaseUrl"`
	MaxFileSize   int64  `json:"maxFileSize"`
	WindowClass   string `json:"windowClass"`
	ScratchDir    string `json:"scratchDir"`
	ScreenshotDir string `json:"screenshotDir"`
	Version       string `json:"version"`
}

// VisibilityData is returned by TOGGLE_VISIBILITY.
type VisibilityData struct {
	Visible bool `json:"visible"`
}

// CapturePayload is the optional payload of CAPTURE. A nil region captures
// the whole screen.
type CapturePayload struct {
	Region *geometry.Rect `json:"region,omitempty"`
}

// ScreenshotsData is returned by SCREENSHOT_HISTORY, newest first.
type ScreenshotsData struct {
	Screenshots []capture.Shot `json:"screenshots"`
}

// FilePayload carries a file descriptor for drag commands.
type FilePayload struct {
	File transfer.FileDescriptor `json:"file"`
}

// PathData is returned by START_FILE_DRAG.
type PathData struct {
	Path string `json:"path"`
}

// DragPayload is the payload of DRAG_TO_EXTERNAL.
type DragPayload = drag.Payload

// UploadPayload is the payload of UPLOAD_FILES.
type UploadPayload struct {
	Paths []string `json:"paths"`
}

// UploadData is returned by UPLOAD_FILES.
type UploadData struct {
	Files []transfer.FileDescriptor `json:"files"`
}

// SmartPositionData is returned by SMART_POSITION.
type SmartPositionData struct {
	Moved bool `json:"moved"`
}

// CleanupData is returned by CLEANUP_TEMP with removed entries per
// scratch directory.
type CleanupData struct {
	Removed map[string]int `json:"removed"`
}

// StreamEvent is one line of a SUBSCRIBE stream.
type StreamEvent struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	if req.Command == "" {
		return nil, fmt.Errorf("failed to parse request: missing command")
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// decodePayload unmarshals a request payload, rejecting empty payloads.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
