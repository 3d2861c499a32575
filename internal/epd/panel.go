// Package epd drives a 1-bit SSD16xx-class e-paper panel over SPI using
// periph.io: a packed framebuffer, the controller command sequences, and
// the full/partial waveform trade-off.
package epd

import "errors"

// Panel geometry. Width is a multiple of 8 so every row starts on a byte
// boundary of the framebuffer.
const (
	Width      = 296
	Height     = 128
	ByteStride = Width / 8
	BufferSize = Width * Height / 8
)

// Color is a 1-bit pixel value.
type Color uint8

const (
	Dark  Color = 0
	Light Color = 1

	// Invalid is returned by Framebuffer.Pixel for out-of-range queries.
	Invalid Color = 0xFF
)

func (c Color) String() string {
	switch c {
	case Dark:
		return "dark"
	case Light:
		return "light"
	default:
		return "invalid"
	}
}

// RefreshMode selects the waveform a caller asks for.
type RefreshMode int

const (
	Full RefreshMode = iota
	Partial
)

func (m RefreshMode) String() string {
	if m == Full {
		return "full"
	}
	return "partial"
}

// State is the lifecycle state of a Driver.
type State int

const (
	Uninitialized State = iota
	Ready
	Sleeping
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Sleeping:
		return "sleeping"
	default:
		return "uninitialized"
	}
}

var (
	// ErrNotInitialized is returned by operations that need a Ready driver.
	ErrNotInitialized = errors.New("epd: not initialized")
	// ErrInvalidParameter reports an out-of-range coordinate or a malformed
	// argument. Drawing code treats it as a no-op.
	ErrInvalidParameter = errors.New("epd: invalid parameter")
	// ErrHardwareTimeout reports that the busy line did not drop in time.
	// It is logged and never returned by Init, Refresh or Wakeup.
	ErrHardwareTimeout = errors.New("epd: busy timeout")
	// ErrInitFailed wraps bus or pin failures during Init and Wakeup.
	ErrInitFailed = errors.New("epd: init failed")
)
