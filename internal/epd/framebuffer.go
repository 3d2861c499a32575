package epd

import "image"

// Framebuffer is the packed 1-bit bitmap pushed to the panel RAM.
//
// Pixels are stored row-major, 8 per byte, most significant bit first:
//
//	byteIndex = (y*Width + x) / 8
//	mask      = 0x80 >> (x % 8)
//
// A set bit is Light, a cleared bit is Dark.
type Framebuffer struct {
	buf [BufferSize]byte
}

// NewFramebuffer returns a framebuffer cleared to Light.
func NewFramebuffer() *Framebuffer {
	f := &Framebuffer{}
	f.Clear()
	return f
}

// Clear sets every pixel to Light.
func (f *Framebuffer) Clear() {
	for i := range f.buf {
		f.buf[i] = 0xFF
	}
}

// SetPixel writes c at (x, y). Any non-Dark color is stored as Light.
// Out-of-range coordinates leave the buffer untouched and return
// ErrInvalidParameter.
func (f *Framebuffer) SetPixel(x, y int, c Color) error {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return ErrInvalidParameter
	}
	i := (y*Width + x) >> 3
	mask := byte(0x80 >> (x & 7))
	if c == Dark {
		f.buf[i] &^= mask
	} else {
		f.buf[i] |= mask
	}
	return nil
}

// Pixel returns the stored color at (x, y), or Invalid when out of range.
func (f *Framebuffer) Pixel(x, y int) Color {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return Invalid
	}
	if f.buf[(y*Width+x)>>3]&(0x80>>(x&7)) != 0 {
		return Light
	}
	return Dark
}

// Bytes returns the packed pixel data. The slice aliases the framebuffer.
func (f *Framebuffer) Bytes() []byte {
	return f.buf[:]
}

// Snapshot returns a copy of the packed pixel data.
func (f *Framebuffer) Snapshot() []byte {
	out := make([]byte, BufferSize)
	copy(out, f.buf[:])
	return out
}

// Bounds reports the panel rectangle.
func (f *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}
