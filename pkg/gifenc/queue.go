package gifenc

import "sync"

// queueDepth bounds how many submitted frames may wait for the pipeline.
// A full queue blocks the producer instead of dropping frames.
const queueDepth = 4

// frame is an immutable snapshot of one submitted RGBA raster.
// The pixel slice is owned by the queue and never mutated after submit.
type frame struct {
	pix       []byte
	timestamp float64
}

// frameQueue is the bounded, ordered holding area between the caller and
// the encoding pipeline. It validates buffers and timestamp ordering at
// the submission boundary so a rejected frame is never enqueued.
type frameQueue struct {
	mtx    sync.Mutex
	ch     chan *frame
	pixLen int
	lastTS float64
	closed bool
}

func newFrameQueue(width, height int) *frameQueue {
	return &frameQueue{
		ch:     make(chan *frame, queueDepth),
		pixLen: width * height * 4,
	}
}

// submit enqueues a copy of pixels for encoding. It blocks once queueDepth
// frames are waiting. Timestamps are accepted when non-negative and not
// older than the previously accepted frame; equal timestamps are legal and
// coalesce further down the pipeline.
func (q *frameQueue) submit(pixels []byte, timestamp float64) error {
	q.mtx.Lock()
	if q.closed {
		q.mtx.Unlock()
		return ErrInvalidState
	}
	if len(pixels) != q.pixLen {
		q.mtx.Unlock()
		return ErrDimensionMismatch
	}
	if timestamp < q.lastTS {
		q.mtx.Unlock()
		return ErrOutOfOrder
	}
	q.lastTS = timestamp
	q.mtx.Unlock()

	pix := make([]byte, len(pixels))
	copy(pix, pixels)
	q.ch <- &frame{pix: pix, timestamp: timestamp}
	return nil
}

// close signals that no further frames will arrive. Safe to call once.
func (q *frameQueue) close() {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
