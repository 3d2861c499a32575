package epd

import (
	"bytes"
	"image"
	"testing"
)

func TestNewFramebufferIsLight(t *testing.T) {
	f := NewFramebuffer()
	for i, b := range f.Bytes() {
		if b != 0xFF {
			t.Fatalf("byte %d = 0x%02X, want 0xFF", i, b)
		}
	}
	if len(f.Bytes()) != BufferSize {
		t.Errorf("len = %d, want %d", len(f.Bytes()), BufferSize)
	}
}

func TestSetPixelRoundTrip(t *testing.T) {
	f := NewFramebuffer()
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			c := Color((x + y) & 1)
			if err := f.SetPixel(x, y, c); err != nil {
				t.Fatalf("SetPixel(%d,%d) error = %v", x, y, err)
			}
		}
	}
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if got, want := f.Pixel(x, y), Color((x+y)&1); got != want {
				t.Fatalf("Pixel(%d,%d) = %s, want %s", x, y, got, want)
			}
		}
	}
}

func TestOutOfRangeAccess(t *testing.T) {
	f := NewFramebuffer()
	_ = f.SetPixel(3, 3, Dark)
	before := f.Snapshot()

	points := []image.Point{
		{-1, 0}, {0, -1}, {Width, 0}, {0, Height},
		{Width, Height}, {-100, -100}, {Width + 7, 5},
	}
	for _, p := range points {
		if err := f.SetPixel(p.X, p.Y, Dark); err != ErrInvalidParameter {
			t.Errorf("SetPixel(%v) error = %v, want ErrInvalidParameter", p, err)
		}
		if got := f.Pixel(p.X, p.Y); got != Invalid {
			t.Errorf("Pixel(%v) = %s, want invalid", p, got)
		}
	}
	if !bytes.Equal(before, f.Bytes()) {
		t.Error("out-of-range SetPixel modified the buffer")
	}
}

func TestPackingLayout(t *testing.T) {
	tests := []struct {
		name      string
		x, y      int
		wantIndex int
		wantByte  byte
	}{
		{"origin", 0, 0, 0, 0x7F},
		{"last bit of first byte", 7, 0, 0, 0xFE},
		{"second row", 9, 1, (1*Width + 9) / 8, 0xBF},
		{"last pixel", Width - 1, Height - 1, BufferSize - 1, 0xFE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramebuffer()
			_ = f.SetPixel(tt.x, tt.y, Dark)
			if got := f.Bytes()[tt.wantIndex]; got != tt.wantByte {
				t.Errorf("byte[%d] = 0x%02X, want 0x%02X", tt.wantIndex, got, tt.wantByte)
			}
			_ = f.SetPixel(tt.x, tt.y, Light)
			if got := f.Bytes()[tt.wantIndex]; got != 0xFF {
				t.Errorf("byte[%d] after Light = 0x%02X, want 0xFF", tt.wantIndex, got)
			}
		})
	}
}

func TestClear(t *testing.T) {
	f := NewFramebuffer()
	for x := 0; x < Width; x++ {
		_ = f.SetPixel(x, 10, Dark)
	}
	f.Clear()
	for x := 0; x < Width; x++ {
		if f.Pixel(x, 10) != Light {
			t.Fatalf("Pixel(%d,10) not light after Clear", x)
		}
	}
}

func TestFramebufferBounds(t *testing.T) {
	if got := NewFramebuffer().Bounds(); got != image.Rect(0, 0, Width, Height) {
		t.Errorf("Bounds() = %v", got)
	}
}
