// Package imaging normalizes edition cover scans: the format is checked from
// the bytes, large scans are shrunk and everything is stored as JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/erazemk/polica/internal/model"
)

// Cover bounds. Covers are displayed next to listings and never need more.
const (
	MaxWidth    = 400
	MaxHeight   = 600
	JPEGQuality = 80
)

// MaxUploadBytes bounds raw uploads before decoding.
const MaxUploadBytes = 8 << 20

// Cover is a processed cover image.
type Cover struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

var decoders = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
}

// ProcessCover validates and re-encodes a cover. Formats other than JPEG and
// PNG are ErrValidation.
func ProcessCover(data []byte) (*Cover, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", model.ErrValidation)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", model.ErrValidation, MaxUploadBytes)
	}

	detected := http.DetectContentType(data)
	decode, ok := decoders[detected]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image format %s", model.ErrValidation, detected)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", model.ErrValidation, err)
	}
	img = fit(img, MaxWidth, MaxHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Cover{Data: buf.Bytes(), MIME: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

// fit scales img down, keeping its aspect ratio, until it fits in maxW by
// maxH. Images that already fit are returned unchanged.
func fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
