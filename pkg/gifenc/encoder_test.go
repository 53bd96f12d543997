package gifenc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEncoder(t *testing.T, s Settings) (*Encoder, *bytes.Buffer) {
	t.Helper()
	e, err := New(s)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, e.SetWriterOutput(&buf))
	return e, &buf
}

func TestNewRejectsBadSettings(t *testing.T) {
	for _, s := range []Settings{
		{Width: 0, Height: 10},
		{Width: 10, Height: -1},
		{Width: 10, Height: 10, Quality: 101},
		{Width: 10, Height: 10, Repeat: -2},
	} {
		_, err := New(s)
		assert.Error(t, err, "settings %+v", s)
	}
}

func TestLifecycleStateChecks(t *testing.T) {
	e, err := New(Settings{Width: 2, Height: 2})
	require.NoError(t, err)

	pix := solidPix(4, 255, 0, 0, 255)
	assert.ErrorIs(t, e.AddFrameRGBA(pix, 0), ErrInvalidState)
	assert.ErrorIs(t, e.Finish(), ErrInvalidState)

	var buf bytes.Buffer
	require.NoError(t, e.SetWriterOutput(&buf))
	assert.ErrorIs(t, e.SetWriterOutput(&buf), ErrInvalidState)
	assert.ErrorIs(t, e.SetFileOutput("unused.gif"), ErrInvalidState)

	require.NoError(t, e.AddFrameRGBA(pix, 0))
	require.NoError(t, e.Finish())
	assert.ErrorIs(t, e.AddFrameRGBA(pix, 1), ErrInvalidState)
	assert.ErrorIs(t, e.Finish(), ErrInvalidState)
}

func TestAddFrameValidation(t *testing.T) {
	e, _ := newTestEncoder(t, Settings{Width: 2, Height: 2})
	defer e.Finish()

	assert.ErrorIs(t, e.AddFrameRGBA(make([]byte, 15), 0), ErrDimensionMismatch)
	assert.ErrorIs(t, e.AddFrameRGBA(solidPix(4, 0, 0, 0, 255), -0.1), ErrOutOfOrder)

	require.NoError(t, e.AddFrameRGBA(solidPix(4, 0, 0, 0, 255), 1))
	assert.ErrorIs(t, e.AddFrameRGBA(solidPix(4, 0, 0, 0, 255), 0.5), ErrOutOfOrder)
}

func TestFinishWithoutFrames(t *testing.T) {
	e, buf := newTestEncoder(t, Settings{Width: 2, Height: 2})
	assert.ErrorIs(t, e.Finish(), ErrNoFrames)
	assert.Zero(t, buf.Len(), "empty session must not write any output")
}

func TestEncodeTwoFrames(t *testing.T) {
	e, buf := newTestEncoder(t, Settings{Width: 2, Height: 2, Quality: 100})
	require.NoError(t, e.AddFrameRGBA(solidPix(4, 255, 0, 0, 255), 0))
	require.NoError(t, e.AddFrameRGBA(solidPix(4, 0, 0, 255, 255), 0.5))
	require.NoError(t, e.Finish())

	g, err := gif.DecodeAll(buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 2)
	assert.Equal(t, 2, g.Config.Width)
	assert.Equal(t, 2, g.Config.Height)
	assert.Equal(t, 0, g.LoopCount)

	// the first delay settles from the second frame's timestamp and the
	// last frame inherits it
	assert.Equal(t, []int{50, 50}, g.Delay)

	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	assert.Equal(t, red, color.RGBAModel.Convert(g.Image[0].At(0, 0)))
	assert.Equal(t, blue, color.RGBAModel.Convert(g.Image[1].At(1, 1)))
}

func TestSoloFrameDelay(t *testing.T) {
	e, buf := newTestEncoder(t, Settings{Width: 2, Height: 2})
	require.NoError(t, e.AddFrameRGBA(solidPix(4, 0, 255, 0, 255), 0))
	require.NoError(t, e.Finish())

	g, err := gif.DecodeAll(buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 1)
	assert.Equal(t, []int{10}, g.Delay)
}

func TestIdenticalFramesCollapseToTransparency(t *testing.T) {
	e, buf := newTestEncoder(t, Settings{Width: 8, Height: 8})
	pix := gradientPix(8, 8)
	for i := 0; i < 4; i++ {
		require.NoError(t, e.AddFrameRGBA(pix, float64(i)*0.1))
	}
	require.NoError(t, e.Finish())

	g, err := gif.DecodeAll(buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 4)
	for i, m := range g.Image[1:] {
		assert.Equal(t, image.Rect(0, 0, 1, 1), m.Bounds(), "frame %d", i+1)
		_, _, _, a := m.At(0, 0).RGBA()
		assert.Zero(t, a, "frame %d must be fully transparent", i+1)
	}
}

func TestRepeatedContentStaysSmall(t *testing.T) {
	encode := func(frames int) int {
		e, buf := newTestEncoder(t, Settings{Width: 16, Height: 16, GlobalPalette: true})
		pix := gradientPix(16, 16)
		for i := 0; i < frames; i++ {
			require.NoError(t, e.AddFrameRGBA(pix, float64(i)*0.1))
		}
		require.NoError(t, e.Finish())
		return buf.Len()
	}
	small, large := encode(2), encode(10)
	assert.Less(t, large-small, 400, "repeated frames should add only collapsed deltas")
}

func TestRepeatSettings(t *testing.T) {
	for _, tc := range []struct {
		repeat int
		loop   int
	}{
		{repeat: 0, loop: 0},
		{repeat: 3, loop: 3},
	} {
		e, buf := newTestEncoder(t, Settings{Width: 2, Height: 2, Repeat: tc.repeat})
		require.NoError(t, e.AddFrameRGBA(solidPix(4, 10, 20, 30, 255), 0))
		require.NoError(t, e.Finish())
		raw := buf.Bytes()
		g, err := gif.DecodeAll(buf)
		require.NoError(t, err)
		assert.Equal(t, tc.loop, g.LoopCount, "repeat=%d", tc.repeat)
		assert.True(t, bytes.Contains(raw, []byte("NETSCAPE2.0")), "repeat=%d", tc.repeat)
	}

	// -1 plays once: no loop extension at all
	e, buf := newTestEncoder(t, Settings{Width: 2, Height: 2, Repeat: -1})
	require.NoError(t, e.AddFrameRGBA(solidPix(4, 10, 20, 30, 255), 0))
	require.NoError(t, e.Finish())
	assert.False(t, bytes.Contains(buf.Bytes(), []byte("NETSCAPE2.0")))
}

func TestGlobalPalette(t *testing.T) {
	e, buf := newTestEncoder(t, Settings{Width: 4, Height: 4, GlobalPalette: true})
	require.NoError(t, e.AddFrameRGBA(gradientPix(4, 4), 0))
	require.NoError(t, e.AddFrameRGBA(solidPix(16, 200, 100, 50, 255), 0.2))
	require.NoError(t, e.Finish())

	g, err := gif.DecodeAll(buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 2)
	assert.NotNil(t, g.Config.ColorModel, "global color table must be present")
}

func TestAddFrameRescales(t *testing.T) {
	e, buf := newTestEncoder(t, Settings{Width: 2, Height: 2})
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		if i%4 == 1 || i%4 == 3 {
			src.Pix[i] = 255 // solid green
		}
	}
	require.NoError(t, e.AddFrame(src, 0))
	require.NoError(t, e.Finish())

	g, err := gif.DecodeAll(buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 1)
	green := color.RGBA{G: 255, A: 255}
	assert.Equal(t, green, color.RGBAModel.Convert(g.Image[0].At(0, 0)))
}

func TestAbortReleasesSession(t *testing.T) {
	e, _ := newTestEncoder(t, Settings{Width: 2, Height: 2})
	require.NoError(t, e.AddFrameRGBA(solidPix(4, 1, 2, 3, 255), 0))

	// Abort blocks until both pipeline goroutines have exited
	require.NoError(t, e.Abort())
	assert.ErrorIs(t, e.AddFrameRGBA(solidPix(4, 1, 2, 3, 255), 1), ErrInvalidState)
	assert.ErrorIs(t, e.Finish(), ErrInvalidState)
	require.NoError(t, e.Abort())
}

func TestAbortBeforeDestination(t *testing.T) {
	e, err := New(Settings{Width: 2, Height: 2})
	require.NoError(t, err)
	require.NoError(t, e.Abort())
	var buf bytes.Buffer
	assert.ErrorIs(t, e.SetWriterOutput(&buf), ErrInvalidState)
}

func TestAbortClosesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.gif")
	e, err := New(Settings{Width: 2, Height: 2})
	require.NoError(t, err)
	require.NoError(t, e.SetFileOutput(path))
	require.NoError(t, e.AddFrameRGBA(solidPix(4, 9, 9, 9, 255), 0))
	require.NoError(t, e.Abort())
	require.NoError(t, os.Remove(path))
}

// failingWriter accepts limit bytes, then fails every write.
type failingWriter struct {
	limit int
	err   error
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		n := w.limit
		w.limit = 0
		return n, w.err
	}
	w.limit -= len(p)
	return len(p), nil
}

func TestWriteErrorLatches(t *testing.T) {
	errSink := errors.New("sink failed")
	e, err := New(Settings{Width: 8, Height: 8})
	require.NoError(t, err)
	require.NoError(t, e.SetWriterOutput(&failingWriter{limit: 16, err: errSink}))

	var got error
	for i := 0; i < 50 && got == nil; i++ {
		got = e.AddFrameRGBA(gradientPix(8, 8), float64(i)*0.1)
	}
	if got != nil {
		assert.ErrorIs(t, got, errSink)
		// the latched error surfaces again, the session stays failed
		assert.ErrorIs(t, e.AddFrameRGBA(gradientPix(8, 8), 100), errSink)
	}
	assert.ErrorIs(t, e.Finish(), errSink)
	assert.ErrorIs(t, e.AddFrameRGBA(gradientPix(8, 8), 101), ErrInvalidState)
}

func TestSetFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.gif")

	e, err := New(Settings{Width: 2, Height: 2})
	require.NoError(t, err)
	require.NoError(t, e.SetFileOutput(path))
	require.NoError(t, e.AddFrameRGBA(solidPix(4, 1, 2, 3, 255), 0))
	require.NoError(t, e.Finish())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = gif.DecodeAll(f)
	assert.NoError(t, err)
}

func TestSetFileOutputErrors(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "taken.gif")
	require.NoError(t, os.WriteFile(existing, nil, 0o644))

	e, err := New(Settings{Width: 2, Height: 2})
	require.NoError(t, err)
	assert.ErrorIs(t, e.SetFileOutput(existing), fs.ErrExist)

	assert.ErrorIs(t, e.SetFileOutput(filepath.Join(dir, "no", "such", "dir.gif")), fs.ErrNotExist)

	// a failed destination leaves the session usable
	require.NoError(t, e.SetFileOutput(filepath.Join(dir, "ok.gif")))
	require.NoError(t, e.AddFrameRGBA(solidPix(4, 0, 0, 0, 255), 0))
	require.NoError(t, e.Finish())
}
