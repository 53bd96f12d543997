package gifenc

import (
	"container/heap"
	"image"
	"image/color"
	"sort"

	"github.com/ericpauley/go-quantize/quantize"
)

// palette is an ordered set of up to 256 colors plus an optional
// transparency index. Lookups are cached per exact RGB value.
type palette struct {
	colors      color.Palette
	transparent int
	cache       map[uint32]uint8
}

func newPalette(colors color.Palette) *palette {
	return &palette{
		colors:      colors,
		transparent: -1,
		cache:       make(map[uint32]uint8),
	}
}

func (p *palette) rgbAt(i uint8) (r, g, b uint8) {
	c := p.colors[i].(color.RGBA)
	return c.R, c.G, c.B
}

// index maps an RGB value to its nearest palette entry under a
// luma-weighted squared distance. The transparency slot never matches.
func (p *palette) index(r, g, b uint8) uint8 {
	key := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	if i, ok := p.cache[key]; ok {
		return i
	}
	best, bestDist := 0, int(^uint(0)>>1)
	for i, c := range p.colors {
		if i == p.transparent {
			continue
		}
		e := c.(color.RGBA)
		dr, dg, db := int(r)-int(e.R), int(g)-int(e.G), int(b)-int(e.B)
		dist := 2*dr*dr + 4*dg*dg + 3*db*db
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	p.cache[key] = uint8(best)
	return uint8(best)
}

// allocTransparent returns the palette's transparency index, appending a
// fully transparent entry when none exists yet.
func (p *palette) allocTransparent() uint8 {
	if p.transparent < 0 {
		p.colors = append(p.colors, color.RGBA{})
		p.transparent = len(p.colors) - 1
	}
	return uint8(p.transparent)
}

// quantizer derives a limited palette per frame, or once per session when
// a shared palette is requested. It never fails on image content.
type quantizer struct {
	width, height int
	maxColors     int
	sampleStep    int
	fast          bool
	global        bool
	shared        *palette
}

func newQuantizer(s Settings) *quantizer {
	q := &quantizer{
		width:  s.Width,
		height: s.Height,
		// capped at 255 so a transparency slot always fits
		maxColors:  8 + s.Quality*247/100,
		sampleStep: 1,
		fast:       s.Fast,
		global:     s.GlobalPalette,
	}
	if s.Quality < 50 {
		q.sampleStep = 2
	}
	return q
}

// paletteFor returns the palette the given frame's pixels map into.
// The shared palette, once built from the first frame, reserves its
// transparency slot up front because the global color table is serialized
// before any delta optimization runs.
func (q *quantizer) paletteFor(f *frame) *palette {
	if q.shared != nil {
		return q.shared
	}
	var p *palette
	if q.fast {
		p = newPalette(q.fastPalette(f))
	} else {
		p = newPalette(medianCut(f.pix, q.maxColors, q.sampleStep))
	}
	if q.global {
		p.allocTransparent()
		q.shared = p
	}
	return p
}

// fastPalette delegates palette selection to the cheaper median-cut
// heuristic from go-quantize, trading fidelity for throughput.
func (q *quantizer) fastPalette(f *frame) color.Palette {
	img := &image.RGBA{
		Pix:    f.pix,
		Stride: q.width * 4,
		Rect:   image.Rect(0, 0, q.width, q.height),
	}
	mcq := quantize.MedianCutQuantizer{}
	pal := mcq.Quantize(make(color.Palette, 0, q.maxColors), img)
	out := make(color.Palette, len(pal))
	for i, c := range pal {
		r, g, b, _ := c.RGBA()
		out[i] = color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff}
	}
	return out
}

// colorBox is one median-cut partition of the frame's color histogram.
// entries hold {r, g, b, pixel count}.
type colorBox struct {
	entries  [][4]int
	min, max [3]int
	index    int // maintained by boxHeap
}

func newColorBox(entries [][4]int) *colorBox {
	b := &colorBox{entries: entries}
	b.shrink()
	return b
}

func (b *colorBox) shrink() {
	for ch := 0; ch < 3; ch++ {
		b.min[ch], b.max[ch] = b.entries[0][ch], b.entries[0][ch]
	}
	for _, e := range b.entries[1:] {
		for ch := 0; ch < 3; ch++ {
			if e[ch] < b.min[ch] {
				b.min[ch] = e[ch]
			}
			if e[ch] > b.max[ch] {
				b.max[ch] = e[ch]
			}
		}
	}
}

func (b *colorBox) longestSideIndex() int {
	side, ch := b.max[0]-b.min[0], 0
	for i := 1; i < 3; i++ {
		if d := b.max[i] - b.min[i]; d > side {
			side, ch = d, i
		}
	}
	return ch
}

func (b *colorBox) longestSideLength() int {
	ch := b.longestSideIndex()
	return b.max[ch] - b.min[ch]
}

// split cuts the box at the pixel-count median along its longest side.
func (b *colorBox) split() (*colorBox, *colorBox) {
	ch := b.longestSideIndex()
	sort.Slice(b.entries, func(i, j int) bool {
		return b.entries[i][ch] < b.entries[j][ch]
	})
	total := 0
	for _, e := range b.entries {
		total += e[3]
	}
	half, cut := 0, 1
	for i, e := range b.entries[:len(b.entries)-1] {
		half += e[3]
		if half*2 >= total {
			cut = i + 1
			break
		}
	}
	return newColorBox(b.entries[:cut]), newColorBox(b.entries[cut:])
}

// mean is the pixel-count weighted average color of the box.
func (b *colorBox) mean() color.RGBA {
	var r, g, bl, n int
	for _, e := range b.entries {
		r += e[0] * e[3]
		g += e[1] * e[3]
		bl += e[2] * e[3]
		n += e[3]
	}
	return color.RGBA{
		R: uint8(r / n),
		G: uint8(g / n),
		B: uint8(bl / n),
		A: 0xff,
	}
}

// boxHeap orders boxes by longest side so the widest box is split first.
type boxHeap []*colorBox

func (h boxHeap) Len() int { return len(h) }

func (h boxHeap) Less(i, j int) bool {
	return h[i].longestSideLength() > h[j].longestSideLength()
}

func (h boxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *boxHeap) Push(x any) {
	b := x.(*colorBox)
	b.index = len(*h)
	*h = append(*h, b)
}

func (h *boxHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	*h = old[:n-1]
	return b
}

// medianCut builds a palette of up to maxColors entries from the RGBA
// pixel stream, sampling every step-th pixel into an RGB histogram.
func medianCut(pix []byte, maxColors, step int) color.Palette {
	hist := make(map[uint32]int)
	for i := 0; i+3 < len(pix); i += 4 * step {
		key := uint32(pix[i])<<16 | uint32(pix[i+1])<<8 | uint32(pix[i+2])
		hist[key]++
	}
	entries := make([][4]int, 0, len(hist))
	for key, n := range hist {
		entries = append(entries, [4]int{
			int(key >> 16 & 0xff),
			int(key >> 8 & 0xff),
			int(key & 0xff),
			n,
		})
	}
	// map iteration order must not leak into the palette: identical
	// frames have to produce identical palettes for delta optimization
	sort.Slice(entries, func(i, j int) bool {
		return entries[i][0]<<16|entries[i][1]<<8|entries[i][2] <
			entries[j][0]<<16|entries[j][1]<<8|entries[j][2]
	})

	h := &boxHeap{}
	heap.Push(h, newColorBox(entries))
	for h.Len() < maxColors {
		b := (*h)[0]
		if b.longestSideLength() == 0 || len(b.entries) < 2 {
			// widest box is a single color, nothing left to split
			break
		}
		heap.Pop(h)
		left, right := b.split()
		heap.Push(h, left)
		heap.Push(h, right)
	}

	pal := make(color.Palette, 0, h.Len())
	for _, b := range *h {
		pal = append(pal, b.mean())
	}
	return pal
}
