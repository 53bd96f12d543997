package gifenc

import (
	"image"

	"github.com/razzie/gifenc/pkg/gifenc/internal"
)

// quantizedFrame crosses the stage boundary between palette mapping and
// delta optimization / block writing.
type quantizedFrame struct {
	index []uint8
	pal   *palette
	delay int
}

// renderedFrame is a fully optimized frame ready for serialization.
type renderedFrame struct {
	img      *image.Paletted
	delay    int
	disposal byte
}

// optimizer compares each quantized frame against its predecessor's
// displayed pixels. Pixels whose displayed color is unchanged are
// replaced with the palette's transparency index so the renderer keeps
// the previous frame's pixel, and the frame is cropped to the changed
// region. The first frame is always encoded in full.
type optimizer struct {
	width, height int
	prev          []byte // displayed RGB per pixel, 3 per pixel
}

func newOptimizer(s Settings) *optimizer {
	return &optimizer{width: s.Width, height: s.Height}
}

func (o *optimizer) optimize(qf *quantizedFrame) *renderedFrame {
	full := image.Rect(0, 0, o.width, o.height)
	out := &renderedFrame{
		delay:    qf.delay,
		disposal: internal.DisposalNone,
	}

	if o.prev == nil {
		o.prev = make([]byte, o.width*o.height*3)
		for i, idx := range qf.index {
			r, g, b := qf.pal.rgbAt(idx)
			o.prev[i*3], o.prev[i*3+1], o.prev[i*3+2] = r, g, b
		}
		out.img = &image.Paletted{
			Pix:     qf.index,
			Stride:  o.width,
			Rect:    full,
			Palette: qf.pal.colors,
		}
		return out
	}

	crop := image.Rectangle{}
	for i, idx := range qf.index {
		r, g, b := qf.pal.rgbAt(idx)
		if r == o.prev[i*3] && g == o.prev[i*3+1] && b == o.prev[i*3+2] {
			qf.index[i] = qf.pal.allocTransparent()
			continue
		}
		o.prev[i*3], o.prev[i*3+1], o.prev[i*3+2] = r, g, b
		px := image.Rect(i%o.width, i/o.width, i%o.width+1, i/o.width+1)
		if crop.Empty() {
			crop = px
		} else {
			crop = crop.Union(px)
		}
	}
	if crop.Empty() {
		// nothing changed; GIF frames cannot be empty
		crop = image.Rect(0, 0, 1, 1)
	}

	img := &image.Paletted{
		Pix:     qf.index,
		Stride:  o.width,
		Rect:    full,
		Palette: qf.pal.colors,
	}
	if !crop.Eq(full) {
		img = img.SubImage(crop).(*image.Paletted)
	}
	out.img = img
	return out
}
