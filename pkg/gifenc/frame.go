package gifenc

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// AddFrame submits an arbitrary image, converting it to RGBA and
// rescaling it to the session's dimensions when the bounds differ.
func (e *Encoder) AddFrame(m image.Image, timestamp float64) error {
	b := m.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, e.settings.Width, e.settings.Height))
	if b.Dx() == e.settings.Width && b.Dy() == e.settings.Height {
		xdraw.Draw(dst, dst.Rect, m, b.Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Rect, m, b, xdraw.Src, nil)
	}
	return e.AddFrameRGBA(dst.Pix, timestamp)
}
