// Package gifenc encodes sequences of timestamped RGBA frames into
// animated GIF files. One Encoder produces one GIF: set a destination,
// add frames in timestamp order, then Finish. Frames are quantized,
// dithered and delta-optimized concurrently with submission.
package gifenc

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/razzie/gifenc/pkg/gifenc/internal"
)

type sessionState int

const (
	stateCreated sessionState = iota
	stateDestinationSet
	stateFinished
)

// Encoder is a single encoding session. Its methods are not safe for
// concurrent use; the session expects one producer.
type Encoder struct {
	settings Settings

	mtx   sync.Mutex
	state sessionState

	queue  *frameQueue
	sink   io.Writer
	closer io.Closer
	done   chan struct{}

	errMtx sync.Mutex
	err    error

	// frames counts written frames; owned by the write stage until done
	// is closed, then read by Finish.
	frames int
}

// New creates an encoding session in the Created state.
func New(settings Settings) (*Encoder, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &Encoder{settings: settings}, nil
}

// SetFileOutput sets the destination file and starts the pipeline. Legal
// exactly once, before any frame is added. The file is created
// exclusively; a missing parent directory, a permission problem or an
// existing file surface as the wrapped fs sentinel errors.
func (e *Encoder) SetFileOutput(path string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.state != stateCreated {
		return ErrInvalidState
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("gifenc: %w", err)
	}
	e.sink, e.closer = f, f
	e.start()
	return nil
}

// SetWriterOutput streams the GIF to an arbitrary sink instead of a
// file. Same once-only rule as SetFileOutput.
func (e *Encoder) SetWriterOutput(w io.Writer) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.state != stateCreated {
		return ErrInvalidState
	}
	e.sink = w
	e.start()
	return nil
}

func (e *Encoder) start() {
	e.queue = newFrameQueue(e.settings.Width, e.settings.Height)
	e.done = make(chan struct{})
	quantized := make(chan *quantizedFrame, 1)
	go e.runQuantize(quantized)
	go e.runWrite(quantized)
	e.state = stateDestinationSet
}

// AddFrameRGBA submits one frame. pixels must hold width*height*4 bytes
// of RGBA data and timestamp (in seconds) must not precede the previous
// frame. Blocks while the frame queue is full.
func (e *Encoder) AddFrameRGBA(pixels []byte, timestamp float64) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.state != stateDestinationSet {
		return ErrInvalidState
	}
	if err := e.failed(); err != nil {
		return err
	}
	return e.queue.submit(pixels, timestamp)
}

// Finish drains the pipeline, flushes and closes the output, and moves
// the session to its terminal state. It blocks until every queued frame
// has been encoded. A session that produced no frames fails with
// ErrNoFrames.
func (e *Encoder) Finish() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.state != stateDestinationSet {
		return ErrInvalidState
	}
	e.queue.close()
	<-e.done
	e.state = stateFinished

	err := e.failed()
	if err == nil && e.frames == 0 {
		err = ErrNoFrames
	}
	if e.closer != nil {
		if cerr := e.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("gifenc: %w", cerr)
		}
	}
	return err
}

// Abort discards the session without finalizing the output: the pipeline
// is drained, the sink is closed and the session moves to its terminal
// state. Bytes already written are left for the caller to remove.
// Aborting a finished session is a no-op.
func (e *Encoder) Abort() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.state == stateFinished {
		return nil
	}
	if e.state == stateDestinationSet {
		e.queue.close()
		<-e.done
	}
	e.state = stateFinished
	if e.closer != nil {
		if err := e.closer.Close(); err != nil {
			return fmt.Errorf("gifenc: %w", err)
		}
	}
	return nil
}

// runQuantize is the first pipeline stage: timing reconciliation, palette
// construction and dithering. It feeds the write stage through a depth-1
// channel so quantizing frame N+1 overlaps with writing frame N.
func (e *Encoder) runQuantize(out chan<- *quantizedFrame) {
	defer close(out)
	rec := &timingReconciler{}
	quant := newQuantizer(e.settings)
	dith := newDitherer(e.settings)
	emit := func(f *frame, delay int) {
		if e.failed() != nil {
			return
		}
		pal := quant.paletteFor(f)
		out <- &quantizedFrame{index: dith.apply(f, pal), pal: pal, delay: delay}
	}
	for f := range e.queue.ch {
		if settled, delay, ok := rec.push(f); ok {
			emit(settled, delay)
		}
	}
	if settled, delay, ok := rec.flush(); ok {
		emit(settled, delay)
	}
}

// runWrite is the second pipeline stage: delta optimization and block
// serialization. The first write error is latched; later frames are
// drained without work so the producer never blocks forever.
func (e *Encoder) runWrite(in <-chan *quantizedFrame) {
	defer close(e.done)
	opt := newOptimizer(e.settings)
	w := internal.NewEncoder(e.sink, e.settings.Width, e.settings.Height)
	w.SetLoopCount(e.settings.Repeat)
	for qf := range in {
		if e.failed() != nil {
			continue
		}
		if e.frames == 0 && e.settings.GlobalPalette {
			w.SetGlobalPalette(qf.pal.colors)
		}
		rf := opt.optimize(qf)
		if err := w.WriteFrame(rf.img, rf.delay, rf.disposal); err != nil {
			e.setErr(fmt.Errorf("gifenc: %w", err))
			continue
		}
		e.frames++
	}
	if e.failed() == nil && e.frames > 0 {
		if err := w.Close(); err != nil {
			e.setErr(fmt.Errorf("gifenc: %w", err))
		}
	}
}

func (e *Encoder) setErr(err error) {
	e.errMtx.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMtx.Unlock()
}

func (e *Encoder) failed() error {
	e.errMtx.Lock()
	defer e.errMtx.Unlock()
	return e.err
}
