// Package imagecodec decodes uploaded image bytes, composites the computed
// foreground mask as an alpha channel, and encodes results as PNG.
package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode sniffs and decodes raw image bytes into an NRGBA buffer anchored
// at the origin. Format detection is delegated to the registered decoders
// (JPEG, PNG, GIF, BMP, TIFF, WebP).
func Decode(data []byte) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return toNRGBA(img), nil
}

// ApplyMask composites mask as the alpha channel over a copy of src. The
// mask is scaled to src's exact dimensions first, so the output always
// matches the input image size.
func ApplyMask(src *image.NRGBA, mask *image.Gray) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	scaled := mask
	if mask.Bounds().Dx() != w || mask.Bounds().Dy() != h {
		scaled = toGray(resize.Resize(uint(w), uint(h), mask, resize.Bilinear))
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(out.Pix, src.Pix)
	for y := 0; y < h; y++ {
		row := y * out.Stride
		maskRow := y * scaled.Stride
		for x := 0; x < w; x++ {
			out.Pix[row+x*4+3] = scaled.Pix[maskRow+x]
		}
	}
	return out
}

// EncodePNG serializes img as PNG. PNG is the only output format because it
// is lossless and carries transparency.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return nrgba
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
