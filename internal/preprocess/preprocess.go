// Package preprocess converts decoded images into the fixed-shape tensor
// the segmentation model expects, and model logits back into a gray mask.
package preprocess

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
)

const (
	// Size is the model input edge length. Inputs are resized to exactly
	// Size x Size; aspect ratio is intentionally not preserved, matching
	// the model's training contract.
	Size = 1024

	channels  = 3
	planeLen  = Size * Size
	tensorLen = channels * planeLen
)

// ImageNet channel statistics used to normalize model input.
var (
	mean = [channels]float32{0.485, 0.456, 0.406}
	std  = [channels]float32{0.229, 0.224, 0.225}
)

// ToTensor resizes img to Size x Size, scales pixels to [0,1], normalizes
// each channel, and lays the result out as a single-batch NCHW float32
// tensor (1 x 3 x Size x Size).
func ToTensor(img image.Image) []float32 {
	resized := resize.Resize(Size, Size, img, resize.Bilinear)

	data := make([]float32, tensorLen)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			i := y*Size + x
			data[i] = (float32(r>>8)/255.0 - mean[0]) / std[0]
			data[planeLen+i] = (float32(g>>8)/255.0 - mean[1]) / std[1]
			data[2*planeLen+i] = (float32(b>>8)/255.0 - mean[2]) / std[2]
		}
	}
	return data
}

// MaskFromLogits applies a sigmoid to the model's raw logits and maps the
// resulting probabilities onto a Size x Size gray image.
func MaskFromLogits(logits []float32) (*image.Gray, error) {
	if len(logits) < planeLen {
		return nil, fmt.Errorf("mask output has %d values, want at least %d", len(logits), planeLen)
	}

	mask := image.NewGray(image.Rect(0, 0, Size, Size))
	for i := 0; i < planeLen; i++ {
		p := 1.0 / (1.0 + math.Exp(float64(-logits[i])))
		mask.Pix[i] = uint8(p*255.0 + 0.5)
	}
	return mask, nil
}

// TensorLen reports the expected input tensor length.
func TensorLen() int { return tensorLen }
