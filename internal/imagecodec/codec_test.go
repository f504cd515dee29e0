package imagecodec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testImage(t *testing.T, width, height int) *image.NRGBA {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 13 % 256),
				G: uint8(y * 29 % 256),
				B: uint8((x + y) * 7 % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestDecodePNG(t *testing.T) {
	src := testImage(t, 8, 5)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	decoded, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 5 {
		t.Fatalf("unexpected dimensions %v", decoded.Bounds())
	}
	if !bytes.Equal(decoded.Pix, src.Pix) {
		t.Error("decoded pixels differ from source")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("definitely not an image")); err == nil {
		t.Fatal("expected error for non-image bytes")
	}
}

func TestApplyMaskSetsAlphaAndKeepsDimensions(t *testing.T) {
	src := testImage(t, 6, 4)
	mask := image.NewGray(image.Rect(0, 0, 6, 4))
	for i := range mask.Pix {
		mask.Pix[i] = 100
	}

	out := ApplyMask(src, mask)
	if out.Bounds().Dx() != 6 || out.Bounds().Dy() != 4 {
		t.Fatalf("unexpected output dimensions %v", out.Bounds())
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			px := out.NRGBAAt(x, y)
			want := src.NRGBAAt(x, y)
			if px.R != want.R || px.G != want.G || px.B != want.B {
				t.Fatalf("color channels changed at (%d,%d): got %v want %v", x, y, px, want)
			}
			if px.A != 100 {
				t.Fatalf("expected alpha 100 at (%d,%d), got %d", x, y, px.A)
			}
		}
	}
}

func TestApplyMaskResizesMaskToSource(t *testing.T) {
	src := testImage(t, 20, 10)
	mask := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}

	out := ApplyMask(src, mask)
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 10 {
		t.Fatalf("mask resize changed output dimensions: %v", out.Bounds())
	}
	if out.NRGBAAt(10, 5).A != 255 {
		t.Errorf("expected fully opaque center, got alpha %d", out.NRGBAAt(10, 5).A)
	}
}

func TestEncodePNGRoundTripIsLossless(t *testing.T) {
	src := testImage(t, 9, 9)
	// Give it a non-trivial alpha channel.
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = uint8(i % 256)
	}

	data, err := EncodePNG(src)
	if err != nil {
		t.Fatalf("EncodePNG returned error: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode of encoded PNG failed: %v", err)
	}
	if !bytes.Equal(decoded.Pix, src.Pix) {
		t.Error("PNG round trip altered pixel data")
	}
}
