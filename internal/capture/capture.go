// Package capture takes screenshots into the screenshots scratch directory
// and lists the capture history.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

var log = logrus.WithField("component", "capture")

// Format is the encoded image format.
type Format string

const (
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
)

const defaultQuality = 90

// ErrEmptyRegion is returned for regions with no area.
var ErrEmptyRegion = errors.New("capture region is empty")

// ParseFormat accepts png, jpg and jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	}
	return "", fmt.Errorf("unsupported screenshot format %q", s)
}

// Grabber captures screen pixels. platform.Backend satisfies it.
type Grabber interface {
	Capture(region *geometry.Rect) (image.Image, error)
}

// Options controls a single capture.
type Options struct {
	Format  Format
	Quality int
	// Region limits the capture; nil captures the whole screen.
	Region *geometry.Rect
	// MaxWidth and MaxHeight scale the image down to fit; 0 disables.
	MaxWidth  int
	MaxHeight int
}

// Shot describes a saved screenshot.
type Shot struct {
	FileName  string    `json:"fileName"`
	Path      string    `json:"filePath"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}

// Manager writes screenshots into dir.
type Manager struct {
	grabber  Grabber
	dir      string
	defaults Options
	now      func() time.Time
}

// NewManager returns a screenshot manager. defaults fills unset fields of
// per-call options.
func NewManager(g Grabber, dir string, defaults Options) *Manager {
	if defaults.Format == "" {
		defaults.Format = FormatPNG
	}
	if defaults.Quality <= 0 {
		defaults.Quality = defaultQuality
	}
	return &Manager{grabber: g, dir: dir, defaults: defaults, now: time.Now}
}

// Dir returns the screenshots directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Capture grabs the screen and saves it.
func (m *Manager) Capture(ctx context.Context, opts Options) (Shot, error) {
	opts = m.withDefaults(opts)
	if opts.Region != nil && opts.Region.Empty() {
		return Shot{}, ErrEmptyRegion
	}

	img, err := m.grabber.Capture(opts.Region)
	if err != nil {
		return Shot{}, fmt.Errorf("failed to capture screen: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Shot{}, err
	}

	img = Scale(img, opts.MaxWidth, opts.MaxHeight)

	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return Shot{}, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	created := m.now()
	f, path, err := m.create(created, opts.Format)
	if err != nil {
		return Shot{}, err
	}

	encErr := encode(f, img, opts)
	closeErr := f.Close()
	if encErr == nil {
		encErr = closeErr
	}
	if encErr != nil {
		os.Remove(path)
		return Shot{}, fmt.Errorf("failed to save screenshot: %w", encErr)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Shot{}, err
	}
	b := img.Bounds()
	shot := Shot{
		FileName:  filepath.Base(path),
		Path:      path,
		Size:      info.Size(),
		CreatedAt: created,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	log.WithFields(logrus.Fields{"path": path, "width": shot.Width, "height": shot.Height}).Info("screenshot saved")
	return shot, nil
}

// History lists saved screenshots, newest first.
func (m *Manager) History() ([]Shot, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	shots := make([]Shot, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isImageName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		shots = append(shots, Shot{
			FileName:  e.Name(),
			Path:      filepath.Join(m.dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(shots, func(i, j int) bool {
		return shots[i].CreatedAt.After(shots[j].CreatedAt)
	})
	return shots, nil
}

// Scale shrinks img to fit maxW x maxH keeping the aspect ratio. Images
// that already fit are returned unchanged.
func Scale(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
	}
	if scale >= 1 {
		return img
	}

	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func (m *Manager) withDefaults(opts Options) Options {
	if opts.Format == "" {
		opts.Format = m.defaults.Format
	}
	if opts.Quality <= 0 {
		opts.Quality = m.defaults.Quality
	}
	if opts.MaxWidth == 0 && opts.MaxHeight == 0 {
		opts.MaxWidth = m.defaults.MaxWidth
		opts.MaxHeight = m.defaults.MaxHeight
	}
	return opts
}

// create opens screenshot_<timestamp>.<ext>, adding a counter when two
// captures land in the same millisecond.
func (m *Manager) create(t time.Time, format Format) (*os.File, string, error) {
	base := "screenshot_" + Timestamp(t)
	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(m.dir, name+"."+string(format))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create screenshot file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("failed to create screenshot file for %s", base)
}

// Timestamp formats t as an ISO-8601 UTC time safe for file names, for
// example 2024-05-01T10-20-30-123Z.
func Timestamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s-%03dZ", t.Format("2006-01-02T15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

func encode(f *os.File, img image.Image, opts Options) error {
	if opts.Format == FormatJPG {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: opts.Quality})
	}
	return png.Encode(f, img)
}

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
