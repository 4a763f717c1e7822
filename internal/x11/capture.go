package x11

import (
	"fmt"
	"image"

	"github.com/1broseidon/floatdrop/internal/geometry"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"
)

// CaptureRoot grabs the root window. A non-nil region is clipped to the
// screen and cropped out of the grab.
func (c *Connection) CaptureRoot(region *geometry.Rect) (image.Image, error) {
	img, err := xgraphics.NewDrawable(c.XUtil, xproto.Drawable(c.Root))
	if err != nil {
		return nil, fmt.Errorf("failed to grab root window: %w", err)
	}
	if region == nil {
		return img, nil
	}

	b := img.Bounds()
	screen := geometry.Rect{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}
	clip := geometry.Intersect(screen, *region)
	if clip.Empty() {
		return nil, fmt.Errorf("capture region %+v is outside the screen", *region)
	}
	return img.SubImage(image.Rect(clip.X, clip.Y, clip.Right(), clip.Bottom())), nil
}
