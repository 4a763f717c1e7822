package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/1broseidon/floatdrop/internal/capture"
	"github.com/1broseidon/floatdrop/internal/drag"
	"github.com/1broseidon/floatdrop/internal/events"
	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/1broseidon/floatdrop/internal/runtimepath"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/1broseidon/floatdrop/internal/window"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "ipc")

// Service is the daemon surface driven over the socket.
type Service interface {
	Show()
	Hide()
	ToggleMinimize() window.State
	ToggleVisibility() bool
	Capture(ctx context.Context, region *geometry.Rect) (capture.Shot, error)
	ScreenshotHistory() ([]capture.Shot, error)
	StartFileDrag(ctx context.Context, desc transfer.FileDescriptor) (string, error)
	PrepareDragData(ctx context.Context, desc transfer.FileDescriptor) (drag.Payload, error)
	DragToExternal(p drag.Payload) error
	UploadFiles(ctx context.Context, paths []string) ([]transfer.FileDescriptor, error)
	AppConfig() AppConfigData
	State() StateData
	StartAutoHide()
	CancelAutoHide()
	SmartPosition() (bool, error)
	CleanupTemp() map[string]int
	Reload() error
	Subscribe() chan events.Event
	Unsubscribe(ch chan events.Event)
}

// Server handles IPC requests from clients
type Server struct {
	socketPath string
	listener   net.Listener
	svc        Service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server on the default socket path.
func NewServer(svc Service) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, svc), nil
}

// NewServerAt creates a server listening on socketPath.
func NewServerAt(socketPath string, svc Service) *Server {
	// Remove existing socket if present
	os.Remove(socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		svc:        svc,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SocketPath returns the unix socket path.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.WithField("socket", s.socketPath).Info("IPC server listening")

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			log.WithError(err).Warn("IPC accept error")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.WithError(err).Warn("IPC read error")
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.writeResponse(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	if req.Command == CommandSubscribe {
		s.streamEvents(conn, reader)
		return
	}

	resp := s.handleCommand(s.ctx, req)
	s.writeResponse(conn, resp)
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	logger := log.WithField("command", req.Command)
	logger.Debug("IPC command received")

	resp, err := s.dispatch(ctx, req)
	if err != nil {
		logger.WithError(err).Warn("IPC command failed")
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *Request) (*Response, error) {
	switch req.Command {
	case CommandShowWindow:
		s.svc.Show()
		return NewOKResponse(nil)
	case CommandHideWindow:
		s.svc.Hide()
		return NewOKResponse(nil)
	case CommandToggleMinimize:
		return NewOKResponse(s.svc.ToggleMinimize())
	case CommandToggleVisibility:
		return NewOKResponse(VisibilityData{Visible: s.svc.ToggleVisibility()})
	case CommandCapture:
		var p CapturePayload
		if len(req.Payload) > 0 {
			if err := decodePayload(req.Payload, &p); err != nil {
				return nil, err
			}
		}
		shot, err := s.svc.Capture(ctx, p.Region)
		if err != nil {
			return nil, err
		}
		return NewOKResponse(shot)
	case CommandScreenshots:
		shots, err := s.svc.ScreenshotHistory()
		if err != nil {
			return nil, err
		}
		return NewOKResponse(ScreenshotsData{Screenshots: shots})
	case CommandStartFileDrag:
		var p FilePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		path, err := s.svc.StartFileDrag(ctx, p.File)
		if err != nil {
			return nil, err
		}
		return NewOKResponse(PathData{Path: path})
	case CommandPrepareDragData:
		var p FilePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		payload, err := s.svc.PrepareDragData(ctx, p.File)
		if err != nil {
			return nil, err
		}
		return NewOKResponse(payload)
	case CommandDragToExternal:
		var p DragPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if err := s.svc.DragToExternal(p); err != nil {
			return nil, err
		}
		return NewOKResponse(nil)
	case CommandUploadFiles:
		var p UploadPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		if len(p.Paths) == 0 {
			return nil, errors.New("paths is required")
		}
		files, err := s.svc.UploadFiles(ctx, p.Paths)
		if err != nil {
			return nil, err
		}
		return NewOKResponse(UploadData{Files: files})
	case CommandGetAppConfig:
		return NewOKResponse(s.svc.AppConfig())
	case CommandGetState:
		return NewOKResponse(s.svc.State())
	case CommandStartAutoHide:
		s.svc.StartAutoHide()
		return NewOKResponse(nil)
	case CommandCancelAutoHide:
		s.svc.CancelAutoHide()
		return NewOKResponse(nil)
	case CommandSmartPosition:
		moved, err := s.svc.SmartPosition()
		if err != nil {
			return nil, err
		}
		return NewOKResponse(SmartPositionData{Moved: moved})
	case CommandCleanupTemp:
		return NewOKResponse(CleanupData{Removed: s.svc.CleanupTemp()})
	case CommandReload:
		if err := s.svc.Reload(); err != nil {
			return nil, fmt.Errorf("failed to reload config: %w", err)
		}
		return NewOKResponse(nil)
	default:
		return nil, fmt.Errorf("unknown command: %s", req.Command)
	}
}

// streamEvents acknowledges a SUBSCRIBE and writes one event per line
// until the client disconnects or the server stops.
func (s *Server) streamEvents(conn net.Conn, reader *bufio.Reader) {
	ch := s.svc.Subscribe()
	defer s.svc.Unsubscribe(ch)

	ok, _ := NewOKResponse(nil)
	if !s.writeResponse(conn, ok) {
		return
	}

	// Any read result means the client went away.
	gone := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, reader)
		close(gone)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-gone:
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := events.Marshal(ev)
			if err != nil {
				log.WithError(err).Warn("failed to marshal event")
				continue
			}
			if _, err := conn.Write(append(data, '\n')); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) bool {
	data, err := resp.Marshal()
	if err != nil {
		log.WithError(err).Error("failed to marshal response")
		return false
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		log.WithError(err).Warn("failed to send response")
		return false
	}
	return true
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}

// Wait blocks until all connections have finished after Stop.
func (s *Server) Wait() {
	s.wg.Wait()
}
