package mcp

import (
	"fmt"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/ipc"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/1broseidon/floatdrop/internal/window"
)

// EmptyInput is the input for tools that take no arguments.
type EmptyInput struct{}

// AckOutput is returned by tools that only report success.
type AckOutput struct {
	OK bool `json:"ok"`
}

// WindowOutput is the output for toggle_minimize.
type WindowOutput struct {
	Window window.State `json:"window"`
}

// VisibilityOutput is the output for toggle_visibility.
type VisibilityOutput struct {
	Visible bool `json:"visible"`
}

// CaptureInput is the input for the capture tool. Leaving every field unset
// captures the whole screen.
type CaptureInput struct {
	X      int `json:"x,omitempty" jsonschema:"Left edge of the region in screen pixels"`
	Y      int `json:"y,omitempty" jsonschema:"Top edge of the region in screen pixels"`
	Width  int `json:"width,omitempty" jsonschema:"Region width in pixels, omit for the whole screen"`
	Height int `json:"height,omitempty" jsonschema:"Region height in pixels, omit for the whole screen"`
}

func (in CaptureInput) region() (*geometry.Rect, error) {
	if in == (CaptureInput{}) {
		return nil, nil
	}
	r := geometry.Rect{X: in.X, Y: in.Y, Width: in.Width, Height: in.Height}
	if r.Empty() {
		return nil, fmt.Errorf("region width and height must be positive")
	}
	return &r, nil
}

// ScreenshotsOutput is the output for screenshot_history.
type ScreenshotsOutput struct {
	Screenshots []capture.Shot `json:"screenshots"`
}

// CaptureOutput is the output for the capture tool.
type CaptureOutput struct {
	Screenshot capture.Shot `json:"screenshot"`
}

// StartFileDragInput is the input for the start_file_drag tool.
type StartFileDragInput struct {
	ID          string `json:"id,omitempty" jsonschema:"Relay file id"`
	Name        string `json:"name" jsonschema:"required,File name used for the local copy"`
	LocalPath   string `json:"local_path,omitempty" jsonschema:"Path of a local copy, used when it still exists"`
	DownloadURL string `json:"download_url,omitempty" jsonschema:"Relay download URL, used when no local copy exists"`
}

// StartFileDragOutput is the output for the start_file_drag tool.
type StartFileDragOutput struct {
	Path string `json:"path"`
}

// CopyTextInput is the input for the copy_text tool.
type CopyTextInput struct {
	Text string `json:"text" jsonschema:"required,Text to place on the clipboard"`
}

// CopyFileInput is the input for the copy_file tool.
type CopyFileInput struct {
	Path string `json:"path" jsonschema:"required,Absolute path of the file to place on the clipboard"`
}

// UploadFilesInput is the input for the upload_files tool.
type UploadFilesInput struct {
	Paths []string `json:"paths" jsonschema:"required,Local file paths to upload to the relay"`
}

// UploadFilesOutput is the output for the upload_files tool.
type UploadFilesOutput struct {
	Files []transfer.FileDescriptor `json:"files"`
}

// StateOutput is the output for get_state.
type StateOutput struct {
	State ipc.StateData `json:"state"`
}

// AppConfigOutput is the output for get_app_config.
type AppConfigOutput struct {
	Config ipc.AppConfigData `json:"config"`
}

// SmartPositionOutput is the output for smart_position.
type SmartPositionOutput struct {
	Moved bool `json:"moved"`
}

// CleanupOutput is the output for cleanup_temp.
type CleanupOutput struct {
	Removed map[string]int `json:"removed"`
}
