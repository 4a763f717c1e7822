package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/ipc"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/1broseidon/floatdrop/internal/window"
)

const (
	ServerName    = "floatdrop"
	ServerVersion = "0.1.0"
)

var log = logrus.WithField("component", "mcp")

// Daemon is the command surface the tools proxy to. *ipc.Client
// satisfies it.
type Daemon interface {
	Show() error
	Hide() error
	ToggleMinimize() (*window.State, error)
	ToggleVisibility() (bool, error)
	Capture(region *geometry.Rect) (*capture.Shot, error)
	ScreenshotHistory() ([]capture.Shot, error)
	StartFileDrag(desc transfer.FileDescriptor) (string, error)
	DragToExternal(p drag.Payload) error
	UploadFiles(paths []string) ([]transfer.FileDescriptor, error)
	GetState() (*ipc.StateData, error)
	GetAppConfig() (*ipc.AppConfigData, error)
	SmartPosition() (bool, error)
	CleanupTemp() (map[string]int, error)
}

var _ Daemon = (*ipc.Client)(nil)

// Server is the MCP server for driving the floatdrop daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
}

// NewServer creates a new MCP server backed by daemon.
func NewServer(daemon Daemon) *Server {
	s := &Server{daemon: daemon}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	log.Info("MCP server starting on stdio")
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "show_window",
		Description: "Show the floating drop window and restore its full opacity.",
	}, s.handleShow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hide_window",
		Description: "Hide the floating drop window.",
	}, s.handleHide)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "toggle_minimize",
		Description: "Switch the floating window between its normal and mini size. Returns the new window state.",
	}, s.handleToggleMinimize)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "toggle_visibility",
		Description: "Show the floating window when hidden, hide it when shown. Returns the new visibility.",
	}, s.handleToggleVisibility)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "capture",
		Description: "Capture a screenshot into the screenshots scratch directory. Pass x, y, width and height to capture a region; omit them for the whole screen. Returns its path and dimensions.",
	}, s.handleCapture)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "screenshot_history",
		Description: "List the screenshots still in the scratch directory, newest first.",
	}, s.handleScreenshotHistory)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "start_file_drag",
		Description: "Resolve a transferred file to a local path for dragging. Uses local_path when the file still exists, otherwise downloads download_url into the drag scratch directory.",
	}, s.handleStartFileDrag)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "copy_text",
		Description: "Place text on the system clipboard so it can be pasted into another application.",
	}, s.handleCopyText)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "copy_file",
		Description: "Place a local file on the system clipboard as a file reference (uri-list, file manager copy, html link and plain path).",
	}, s.handleCopyFile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "upload_files",
		Description: "Upload local files to the relay. Files that are missing or over the size limit are skipped; the successful uploads are returned.",
	}, s.handleUploadFiles)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_state",
		Description: "Return the floating window state and daemon status.",
	}, s.handleGetState)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_app_config",
		Description: "Return the daemon's relay URL, size limit and scratch directories.",
	}, s.handleGetAppConfig)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "smart_position",
		Description: "Move the floating window to the first screen corner not covered by other windows. Returns whether it moved.",
	}, s.handleSmartPosition)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "cleanup_temp",
		Description: "Sweep expired files from the scratch directories now. Returns the number removed per directory.",
	}, s.handleCleanupTemp)
}
