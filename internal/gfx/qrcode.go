package gfx

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"openeink/internal/epd"
)

// QRBitmap encodes payload as a QR code without the quiet zone. true is a
// dark module.
func QRBitmap(payload string) ([][]bool, error) {
	if payload == "" {
		return nil, epd.ErrInvalidParameter
	}
	q, err := qrcode.New(payload, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("gfx: qrcode: %w", err)
	}
	q.DisableBorder = true
	return q.Bitmap(), nil
}

// Bitmap draws bits with its top-left corner at (x, y), each cell as a
// scale x scale block.
func (p *Painter) Bitmap(x, y int, bits [][]bool, scale int) error {
	if scale <= 0 {
		return epd.ErrInvalidParameter
	}
	for row, line := range bits {
		for col, dark := range line {
			c := epd.Light
			if dark {
				c = epd.Dark
			}
			_ = p.Rect(x+col*scale, y+row*scale, scale, scale, c, true)
		}
	}
	return nil
}
