package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/transfer"
)

func (s *Server) handleShow(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	if err := s.daemon.Show(); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{OK: true}, nil
}

func (s *Server) handleHide(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	if err := s.daemon.Hide(); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{OK: true}, nil
}

func (s *Server) handleToggleMinimize(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, WindowOutput, error) {
	st, err := s.daemon.ToggleMinimize()
	if err != nil {
		return nil, WindowOutput{}, err
	}
	return nil, WindowOutput{Window: *st}, nil
}

func (s *Server) handleToggleVisibility(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, VisibilityOutput, error) {
	visible, err := s.daemon.ToggleVisibility()
	if err != nil {
		return nil, VisibilityOutput{}, err
	}
	return nil, VisibilityOutput{Visible: visible}, nil
}

func (s *Server) handleCapture(_ context.Context, _ *mcpsdk.CallToolRequest, args CaptureInput) (*mcpsdk.CallToolResult, CaptureOutput, error) {
	region, err := args.region()
	if err != nil {
		return nil, CaptureOutput{}, err
	}
	shot, err := s.daemon.Capture(region)
	if err != nil {
		return nil, CaptureOutput{}, err
	}
	log.WithField("path", shot.Path).Debug("capture tool finished")
	return nil, CaptureOutput{Screenshot: *shot}, nil
}

func (s *Server) handleScreenshotHistory(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ScreenshotsOutput, error) {
	shots, err := s.daemon.ScreenshotHistory()
	if err != nil {
		return nil, ScreenshotsOutput{}, err
	}
	if shots == nil {
		shots = []capture.Shot{}
	}
	return nil, ScreenshotsOutput{Screenshots: shots}, nil
}

func (s *Server) handleStartFileDrag(_ context.Context, _ *mcpsdk.CallToolRequest, args StartFileDragInput) (*mcpsdk.CallToolResult, StartFileDragOutput, error) {
	if strings.TrimSpace(args.Name) == "" {
		return nil, StartFileDragOutput{}, fmt.Errorf("name is required")
	}
	if args.LocalPath == "" && args.DownloadURL == "" {
		return nil, StartFileDragOutput{}, fmt.Errorf("one of local_path or download_url is required")
	}

	desc := transfer.FileDescriptor{
		ID:          args.ID,
		Name:        args.Name,
		Category:    transfer.CategoryOf(args.Name),
		MimeType:    transfer.MimeTypeOf(args.Name),
		LocalPath:   args.LocalPath,
		DownloadURL: args.DownloadURL,
	}
	path, err := s.daemon.StartFileDrag(desc)
	if err != nil {
		return nil, StartFileDragOutput{}, err
	}
	return nil, StartFileDragOutput{Path: path}, nil
}

func (s *Server) handleCopyText(_ context.Context, _ *mcpsdk.CallToolRequest, args CopyTextInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	if args.Text == "" {
		return nil, AckOutput{}, fmt.Errorf("text is required")
	}
	if err := s.daemon.DragToExternal(drag.Payload{Kind: drag.KindText, Text: args.Text}); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{OK: true}, nil
}

func (s *Server) handleCopyFile(_ context.Context, _ *mcpsdk.CallToolRequest, args CopyFileInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	if strings.TrimSpace(args.Path) == "" {
		return nil, AckOutput{}, fmt.Errorf("path is required")
	}
	// The daemon resolves relative paths against its own working directory.
	abs, err := filepath.Abs(args.Path)
	if err != nil {
		return nil, AckOutput{}, fmt.Errorf("failed to resolve %q: %w", args.Path, err)
	}

	p := drag.Payload{Kind: drag.KindFile, Path: abs, FileName: filepath.Base(abs)}
	if err := s.daemon.DragToExternal(p); err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{OK: true}, nil
}

func (s *Server) handleUploadFiles(_ context.Context, _ *mcpsdk.CallToolRequest, args UploadFilesInput) (*mcpsdk.CallToolResult, UploadFilesOutput, error) {
	if len(args.Paths) == 0 {
		return nil, UploadFilesOutput{}, fmt.Errorf("paths is required")
	}
	paths := make([]string, 0, len(args.Paths))
	for _, p := range args.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, UploadFilesOutput{}, fmt.Errorf("failed to resolve %q: %w", p, err)
		}
		paths = append(paths, abs)
	}

	files, err := s.daemon.UploadFiles(paths)
	if err != nil {
		return nil, UploadFilesOutput{}, err
	}
	if files == nil {
		files = []transfer.FileDescriptor{}
	}
	return nil, UploadFilesOutput{Files: files}, nil
}

func (s *Server) handleGetState(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StateOutput, error) {
	st, err := s.daemon.GetState()
	if err != nil {
		return nil, StateOutput{}, err
	}
	return nil, StateOutput{State: *st}, nil
}

func (s *Server) handleGetAppConfig(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, AppConfigOutput, error) {
	cfg, err := s.daemon.GetAppConfig()
	if err != nil {
		return nil, AppConfigOutput{}, err
	}
	return nil, AppConfigOutput{Config: *cfg}, nil
}

func (s *Server) handleSmartPosition(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, SmartPositionOutput, error) {
	moved, err := s.daemon.SmartPosition()
	if err != nil {
		return nil, SmartPositionOutput{}, err
	}
	return nil, SmartPositionOutput{Moved: moved}, nil
}

func (s *Server) handleCleanupTemp(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, CleanupOutput, error) {
	removed, err := s.daemon.CleanupTemp()
	if err != nil {
		return nil, CleanupOutput{}, err
	}
	if removed == nil {
		removed = map[string]int{}
	}
	return nil, CleanupOutput{Removed: removed}, nil
}
