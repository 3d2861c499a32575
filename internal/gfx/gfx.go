// Package gfx draws lines, rectangles, placeholder text and QR codes onto a
// 1-bit canvas using only pixel writes.
package gfx

import (
	"image"

	"openeink/internal/epd"
)

// Canvas is a pixel-addressable 1-bit surface. *epd.Framebuffer is one.
type Canvas interface {
	SetPixel(x, y int, c epd.Color) error
	Bounds() image.Rectangle
}

// Glyph renders a single character with its top-left corner at (x, y).
type Glyph interface {
	DrawGlyph(p *Painter, x, y int, r rune, size int, c epd.Color)
}

// BoxGlyph draws every character as an unfilled square of side size-2.
type BoxGlyph struct{}

func (BoxGlyph) DrawGlyph(p *Painter, x, y int, _ rune, size int, c epd.Color) {
	_ = p.Rect(x, y, size-2, size-2, c, false)
}

// Painter draws primitives onto a Canvas. Pixels falling outside the canvas
// are clipped.
type Painter struct {
	Canvas Canvas
	Glyph  Glyph
}

// NewPainter returns a Painter using BoxGlyph.
func NewPainter(c Canvas) *Painter {
	return &Painter{Canvas: c, Glyph: BoxGlyph{}}
}

func (p *Painter) set(x, y int, c epd.Color) {
	_ = p.Canvas.SetPixel(x, y, c)
}

// Line draws an endpoint-inclusive Bresenham line. Endpoints are put in a
// canonical order first so Line(a, b) and Line(b, a) set the same pixels.
func (p *Painter) Line(x0, y0, x1, y1 int, c epd.Color) {
	if x0 > x1 || (x0 == x1 && y0 > y1) {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}

	dx := x1 - x0
	dy := y1 - y0
	sy := 1
	if dy < 0 {
		dy = -dy
		sy = -1
	}
	err := dx - dy

	for {
		p.set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0++
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Rect draws a w x h rectangle at (x, y). Outline mode draws the four edges
// with Line.
func (p *Painter) Rect(x, y, w, h int, c epd.Color, filled bool) error {
	if w <= 0 || h <= 0 {
		return epd.ErrInvalidParameter
	}
	if filled {
		for j := y; j < y+h; j++ {
			for i := x; i < x+w; i++ {
				p.set(i, j, c)
			}
		}
		return nil
	}
	right, bottom := x+w-1, y+h-1
	p.Line(x, y, right, y, c)
	p.Line(x, bottom, right, bottom, c)
	p.Line(x, y, x, bottom, c)
	p.Line(right, y, right, bottom, c)
	return nil
}

// Text draws s starting at (x, y), one glyph cell of width size per rune.
// A newline or reaching the right edge returns to x and moves down by
// size+2. Text below the bottom edge is dropped.
func (p *Painter) Text(x, y int, s string, size int, c epd.Color) error {
	if size < 3 {
		return epd.ErrInvalidParameter
	}
	b := p.Canvas.Bounds()
	cx, cy := x, y
	for _, r := range s {
		if r == '\n' {
			cx = x
			cy += size + 2
		} else {
			p.Glyph.DrawGlyph(p, cx, cy, r, size, c)
			cx += size
		}
		if cx >= b.Max.X {
			cx = x
			cy += size + 2
		}
		if cy >= b.Max.Y {
			break
		}
	}
	return nil
}
