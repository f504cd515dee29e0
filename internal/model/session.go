package model

// Session is a single loaded instance of the segmentation model. Predict
// takes a normalized NCHW input tensor and returns the raw logits of the
// model's final output. Implementations must be safe for concurrent use.
type Session interface {
	Predict(input []float32) ([]float32, error)
	Close() error
}
