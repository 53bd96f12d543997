package gifenc

import "fmt"

const DefaultQuality = 90

// Settings configures a single encoding session. Width and Height are
// fixed for the lifetime of the session.
type Settings struct {
	Width  int
	Height int

	// Quality ranges from 1 (smallest output) to 100 (best fidelity).
	// Zero means DefaultQuality.
	Quality int

	// Fast trades palette fidelity for throughput and disables dithering.
	Fast bool

	// Repeat controls looping: -1 plays once, 0 loops forever,
	// n > 0 repeats the animation n extra times.
	Repeat int

	// GlobalPalette derives a single shared color table from the first
	// frame and reuses it for the whole animation instead of building a
	// palette per frame.
	GlobalPalette bool
}

func (s *Settings) validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("gifenc: width and height must be greater than 0")
	}
	if s.Quality == 0 {
		s.Quality = DefaultQuality
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("gifenc: quality must be between 1 and 100")
	}
	if s.Repeat < -1 {
		return fmt.Errorf("gifenc: repeat must be -1, 0 or positive")
	}
	return nil
}
