// Package convert turns packed 1-bit frames into images for previews and
// debug dumps.
package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"openeink/internal/epd"
)

const (
	MinScale = 1
	MaxScale = 8
)

// Unpack expands a packed frame into an 8-bit grayscale image.
//
// Layout matches epd.Framebuffer: row-major, MSB-first,
//
//	byteIndex = (y*w + x) >> 3
//	mask      = 0x80 >> (x & 7)
//
// A set bit is white, a cleared bit black.
func Unpack(buf []byte, w, h int) (*image.Gray, error) {
	if w <= 0 || h <= 0 || w%8 != 0 {
		return nil, fmt.Errorf("convert: bad geometry %dx%d", w, h)
	}
	if len(buf) != w*h/8 {
		return nil, fmt.Errorf("convert: expected %d bytes for %dx%d, got %d", w*h/8, w, h, len(buf))
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	// Write Pix directly through the stride instead of calling Set per pixel.
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x := range row {
			if buf[(y*w+x)>>3]&(0x80>>(x&7)) != 0 {
				row[x] = 0xFF
			}
		}
	}
	return img, nil
}

// UnpackFrame unpacks a full panel frame.
func UnpackFrame(buf []byte) (*image.Gray, error) {
	return Unpack(buf, epd.Width, epd.Height)
}

// Scale enlarges src by an integer factor with nearest-neighbour sampling so
// pixels stay crisp.
func Scale(src image.Image, factor int) (image.Image, error) {
	if factor < MinScale || factor > MaxScale {
		return nil, fmt.Errorf("convert: scale %d out of range [%d,%d]", factor, MinScale, MaxScale)
	}
	if factor == 1 {
		return src, nil
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst, nil
}

// PNG renders a packed panel frame as PNG at the given scale.
func PNG(buf []byte, scale int) ([]byte, error) {
	img, err := UnpackFrame(buf)
	if err != nil {
		return nil, err
	}
	scaled, err := Scale(img, scale)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := png.Encode(&out, scaled); err != nil {
		return nil, fmt.Errorf("convert: png encode: %w", err)
	}
	return out.Bytes(), nil
}

// Dump writes frame.bin (raw packed bytes) and preview.png into dir,
// replacing previous files atomically.
func Dump(dir string, buf []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("convert: create dump dir: %w", err)
	}
	pngData, err := PNG(buf, 1)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, "frame.bin"), buf); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "preview.png"), pngData)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".openeink-dump-*.tmp")
	if err != nil {
		return fmt.Errorf("convert: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("convert: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("convert: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("convert: rename %s: %w", path, err)
	}
	return nil
}
