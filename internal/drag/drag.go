// Package drag prepares transferred files for drag-out into other
// applications and hands external drops to the system clipboard.
package drag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/floatdrop/internal/clipboard"
	"github.com/1broseidon/floatdrop/internal/events"
	"github.com/1broseidon/floatdrop/internal/transfer"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var log = logrus.WithField("component", "drag")

var (
	// ErrUnsupportedPayload is returned for payload kinds the clipboard
	// cannot carry.
	ErrUnsupportedPayload = errors.New("unsupported drag payload")
	// ErrInvalidImage is returned when image data cannot be decoded.
	ErrInvalidImage = errors.New("invalid image data")
)

// Kind identifies what a drag carries.
type Kind string

const (
	KindFile  Kind = "file"
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Payload is the data for a single drag gesture.
type Payload struct {
	Kind     Kind   `json:"type"`
	MimeType string `json:"mimeType,omitempty"`
	Path     string `json:"path,omitempty"`
	Text     string `json:"text,omitempty"`
	Data     []byte `json:"data,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
}

// Downloader fetches a remote file to a local path. transfer.Client
// satisfies it.
type Downloader interface {
	Download(ctx context.Context, rawURL, dest string, progress transfer.ProgressFunc) (int64, error)
}

// Config configures a Manager.
type Config struct {
	Downloader Downloader
	Clipboard  clipboard.Writer
	Events     events.Publisher
	// TempDir receives downloads for files that only exist remotely.
	TempDir string
	// ShareDir receives pasted image data so file targets can be offered
	// next to the PNG. Empty offers the PNG alone.
	ShareDir string
}

// Manager coordinates drag sessions. Concurrent drags of the same remote
// file write the same temp path and are not coordinated.
type Manager struct {
	downloader Downloader
	clipboard  clipboard.Writer
	events     events.Publisher
	tempDir    string
	shareDir   string
	now        func() time.Time
}

// NewManager returns a drag session manager.
func NewManager(cfg Config) *Manager {
	if cfg.Events == nil {
		cfg.Events = events.Discard
	}
	return &Manager{
		downloader: cfg.Downloader,
		clipboard:  cfg.Clipboard,
		events:     cfg.Events,
		tempDir:    cfg.TempDir,
		shareDir:   cfg.ShareDir,
		now:        time.Now,
	}
}

// TempDir returns the directory used for downloaded drag files.
func (m *Manager) TempDir() string {
	return m.tempDir
}

// StartFileDrag returns a local path for desc. A file already on disk is
// used as is; otherwise it is downloaded into the temp directory.
func (m *Manager) StartFileDrag(ctx context.Context, desc transfer.FileDescriptor) (string, error) {
	if !desc.Draggable() {
		return "", fmt.Errorf("%w: %s", transfer.ErrFileUnavailable, desc.Name)
	}
	if desc.HasLocalFile() {
		return desc.LocalPath, nil
	}
	if m.downloader == nil {
		return "", fmt.Errorf("%w: %s has no downloader", transfer.ErrFileUnavailable, desc.Name)
	}

	name := tempName(desc)
	dest := filepath.Join(m.tempDir, name)
	logger := log.WithFields(logrus.Fields{"file": name, "url": desc.DownloadURL})
	logger.Info("downloading file for drag")

	_, err := m.downloader.Download(ctx, desc.DownloadURL, dest, func(percent int) {
		m.events.Publish(events.New(events.DownloadProgress, events.ProgressPayload{
			Name:    name,
			Percent: percent,
			Overall: percent,
		}))
	})
	if err != nil {
		logger.WithError(err).Error("drag download failed")
		return "", fmt.Errorf("failed to prepare %s for drag: %w", desc.Name, err)
	}
	return dest, nil
}

// PrepareDragData resolves desc to a local file and describes it as a
// file payload.
func (m *Manager) PrepareDragData(ctx context.Context, desc transfer.FileDescriptor) (Payload, error) {
	path, err := m.StartFileDrag(ctx, desc)
	if err != nil {
		return Payload{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %s", transfer.ErrFileNotFound, path)
	}

	mimeType := desc.MimeType
	if mimeType == "" {
		mimeType = transfer.MimeTypeOf(path)
	}
	return Payload{
		Kind:     KindFile,
		MimeType: mimeType,
		Path:     path,
		FileName: filepath.Base(path),
		FileSize: info.Size(),
	}, nil
}

// HandleExternalDrag places p on the clipboard so it can be pasted into
// another application.
func (m *Manager) HandleExternalDrag(p Payload) error {
	if m.clipboard == nil {
		return fmt.Errorf("%w: no clipboard available", ErrUnsupportedPayload)
	}

	var (
		items []clipboard.Item
		err   error
	)
	switch p.Kind {
	case KindFile:
		items, err = fileItems(p.Path)
	case KindText:
		items, err = textItems(p)
	case KindImage:
		items, err = m.imageItems(p)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedPayload, p.Kind)
	}
	if err != nil {
		return err
	}

	if err := m.clipboard.Write(items); err != nil {
		return fmt.Errorf("failed to hand %s drag to clipboard: %w", p.Kind, err)
	}
	log.WithField("kind", p.Kind).Debug("external drag placed on clipboard")
	return nil
}

// fileItems offers the file as a URI list for file managers, the GNOME copy
// format, an HTML anchor and the bare path.
func fileItems(path string) ([]clipboard.Item, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", transfer.ErrFileNotFound)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %s", transfer.ErrFileNotFound, abs)
	}

	uri := FileURI(abs)
	anchor := fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(uri), html.EscapeString(filepath.Base(abs)))
	return []clipboard.Item{
		{Target: clipboard.TargetURIList, Data: []byte(uri + "\r\n")},
		{Target: clipboard.TargetGnomeFiles, Data: []byte("copy\n" + uri)},
		{Target: clipboard.TargetHTML, Data: []byte(anchor)},
		{Target: clipboard.TargetText, Data: []byte(abs)},
	}, nil
}

func textItems(p Payload) ([]clipboard.Item, error) {
	text := p.Text
	if text == "" {
		text = string(p.Data)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrUnsupportedPayload)
	}
	return []clipboard.Item{{Target: clipboard.TargetText, Data: []byte(text)}}, nil
}

// imageItems decodes the image from Path or Data and re-encodes it as PNG.
// Raw image data is also written to the share directory and offered as a
// file so file managers can accept the drop.
func (m *Manager) imageItems(p Payload) ([]clipboard.Item, error) {
	raw := p.Data
	if p.Path != "" {
		b, err := os.ReadFile(p.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", transfer.ErrFileNotFound, p.Path)
		}
		raw = b
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrInvalidImage)
	}

	pngData, err := ToPNG(raw)
	if err != nil {
		return nil, err
	}
	items := []clipboard.Item{{Target: clipboard.TargetPNG, Data: pngData}}
	if p.Path != "" || m.shareDir == "" {
		return items, nil
	}

	path := filepath.Join(m.shareDir, m.shareName(p.FileName))
	if err := os.WriteFile(path, pngData, 0o644); err != nil {
		log.WithError(err).WithField("path", path).Warn("failed to share image as file")
		return items, nil
	}
	files, err := fileItems(path)
	if err != nil {
		return items, nil
	}
	// URI targets only; a text target would paste the path into editors.
	return append(items, files[:2]...), nil
}

// shareName is the PNG file name for shared image data.
func (m *Manager) shareName(fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" || base == ".." {
		base = "image-" + m.now().Format("20060102-150405")
	}
	return base + ".png"
}

// ToPNG converts png, jpeg, gif, bmp or webp data to PNG.
func ToPNG(raw []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if format == "png" {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FileURI returns the file:// URI for an absolute path.
func FileURI(abs string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

func tempName(desc transfer.FileDescriptor) string {
	for _, candidate := range []string{desc.Name, desc.ID} {
		name := filepath.Base(strings.ReplaceAll(candidate, "\\", "/"))
		if name != "" && name != "." && name != "/" && name != ".." {
			return name
		}
	}
	return "download"
}
