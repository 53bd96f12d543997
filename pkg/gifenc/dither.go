package gifenc

// fsKernel is the Floyd-Steinberg error distribution: weight/16 at the
// given (dx, dy) offset. dx is mirrored on right-to-left rows.
var fsKernel = [4]struct{ weight, dx, dy int }{
	{7, 1, 0},
	{3, -1, 1},
	{5, 0, 1},
	{1, 1, 1},
}

// ditherer applies serpentine error-diffusion dithering to quantized
// pixels. Diffusion strength scales with quality. Temporally stable
// pixels keep the color they displayed in the previous frame instead of
// being re-dithered, so static regions neither flicker nor defeat the
// downstream transparency optimization.
type ditherer struct {
	width, height int

	// strength is a percentage; 0 disables dithering (fast mode).
	strength int

	prevPix    []byte // previous frame's original RGBA
	prevChosen []byte // previous frame's displayed RGB, 3 per pixel
}

func newDitherer(s Settings) *ditherer {
	d := &ditherer{
		width:    s.Width,
		height:   s.Height,
		strength: s.Quality,
	}
	if s.Fast {
		d.strength = 0
	}
	return d
}

// apply maps every pixel of f to a palette index, diffusing the
// quantization error of changed pixels to unvisited neighbors.
func (d *ditherer) apply(f *frame, pal *palette) []uint8 {
	n := d.width * d.height
	out := make([]uint8, n)
	chosen := make([]byte, n*3)

	if d.strength == 0 {
		for i := 0; i < n; i++ {
			idx := pal.index(f.pix[i*4], f.pix[i*4+1], f.pix[i*4+2])
			out[i] = idx
			chosen[i*3], chosen[i*3+1], chosen[i*3+2] = pal.rgbAt(idx)
		}
		d.prevPix, d.prevChosen = f.pix, chosen
		return out
	}

	acc := make([]int32, n*3)
	for y := 0; y < d.height; y++ {
		x, xEnd, dir := 0, d.width, 1
		if y&1 == 1 {
			x, xEnd, dir = d.width-1, -1, -1
		}
		for ; x != xEnd; x += dir {
			i := y*d.width + x
			base := i * 4

			var idx uint8
			if d.prevPix != nil && d.stablePixel(f.pix, base) {
				// re-pick the previously displayed color so static
				// regions stay byte-identical across frames
				idx = pal.index(d.prevChosen[i*3], d.prevChosen[i*3+1], d.prevChosen[i*3+2])
			} else {
				wr := clamp255(int32(f.pix[base]) + acc[i*3])
				wg := clamp255(int32(f.pix[base+1]) + acc[i*3+1])
				wb := clamp255(int32(f.pix[base+2]) + acc[i*3+2])
				idx = pal.index(wr, wg, wb)
			}
			out[i] = idx
			pr, pg, pb := pal.rgbAt(idx)
			chosen[i*3], chosen[i*3+1], chosen[i*3+2] = pr, pg, pb

			qr := int32(f.pix[base]) - int32(pr)
			qg := int32(f.pix[base+1]) - int32(pg)
			qb := int32(f.pix[base+2]) - int32(pb)
			for _, k := range fsKernel {
				nx, ny := x+k.dx*dir, y+k.dy
				if nx < 0 || nx >= d.width || ny >= d.height {
					continue
				}
				j := (ny*d.width + nx) * 3
				s := int32(k.weight) * int32(d.strength)
				acc[j] += qr * s / 1600
				acc[j+1] += qg * s / 1600
				acc[j+2] += qb * s / 1600
			}
		}
	}

	d.prevPix, d.prevChosen = f.pix, chosen
	return out
}

// stablePixel reports whether the RGB at base is unchanged since the
// previous frame.
func (d *ditherer) stablePixel(pix []byte, base int) bool {
	return pix[base] == d.prevPix[base] &&
		pix[base+1] == d.prevPix[base+1] &&
		pix[base+2] == d.prevPix[base+2]
}

func clamp255(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
