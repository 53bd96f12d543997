package gifenc

import "errors"

var (
	// ErrInvalidState is returned when an operation is not legal in the
	// session's current lifecycle state (destination already set, frame
	// added before a destination exists, anything after Finish).
	ErrInvalidState = errors.New("gifenc: operation not allowed in current state")

	// ErrDimensionMismatch is returned by AddFrameRGBA when the pixel
	// buffer length is not width*height*4.
	ErrDimensionMismatch = errors.New("gifenc: pixel buffer does not match width*height*4")

	// ErrOutOfOrder is returned when a frame's timestamp is negative or
	// older than the previously accepted frame.
	ErrOutOfOrder = errors.New("gifenc: frame timestamps must be non-negative and non-decreasing")

	// ErrNoFrames is returned by Finish when no frame was ever added.
	ErrNoFrames = errors.New("gifenc: no frames were added")
)
