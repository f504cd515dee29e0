// Package usecase orchestrates the background-removal pipeline: decode,
// preprocess, infer, composite, encode. Every request is stateless and
// independent; nothing is cached or retried.
package usecase

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/bg-removal/internal/config"
	"github.com/example/bg-removal/internal/imagecodec"
	"github.com/example/bg-removal/internal/logging"
	"github.com/example/bg-removal/internal/preprocess"
)

// ModelRunner is the slice of the model manager the pipeline needs.
type ModelRunner interface {
	EnsureLoaded(ctx context.Context) error
	Reload(ctx context.Context) error
	Infer(ctx context.Context, input []float32) ([]float32, error)
	Status() (loaded bool, device, modelName string)
}

// Result is a processed image: PNG bytes plus the output dimensions,
// which always equal the input image's dimensions.
type Result struct {
	PNG    []byte
	Width  int
	Height int
}

// RemovalUseCase runs the removal pipeline against a shared model handle.
type RemovalUseCase struct {
	model  ModelRunner
	client *http.Client
	logger *zap.Logger
}

// NewRemovalUseCase constructs the pipeline. URL downloads share one HTTP
// client with the fixed timeout.
func NewRemovalUseCase(model ModelRunner, logger *zap.Logger) *RemovalUseCase {
	return &RemovalUseCase{
		model:  model,
		client: &http.Client{Timeout: config.DownloadTimeout},
		logger: logger.Named("removal_usecase"),
	}
}

// RemoveFromUpload validates an uploaded file's declared content type and
// size, then runs the pipeline. Validation happens before any decoding.
func (uc *RemovalUseCase) RemoveFromUpload(ctx context.Context, data []byte, contentType string, size int64) (*Result, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, newError(KindValidation, "file must be an image, got content type %q", contentType)
	}
	if size > config.MaxUploadSize {
		return nil, newError(KindValidation, "file size must be less than %d MB", config.MaxUploadSize/(1<<20))
	}
	return uc.process(ctx, data)
}

// RemoveFromURL fetches the image at imageURL with a bounded timeout and
// runs the pipeline. A failed fetch or a non-image response is rejected
// before any decoding.
func (uc *RemovalUseCase) RemoveFromURL(ctx context.Context, imageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, wrapError(KindDownload, err)
	}

	resp, err := uc.client.Do(req)
	if err != nil {
		return nil, newError(KindDownload, "failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(KindDownload, "failed to download image: status %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, newError(KindDownload, "URL does not point to an image (content type %q)", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindDownload, "failed to read image body: %v", err)
	}
	return uc.process(ctx, data)
}

// ReloadModel discards the current model handle and loads a fresh one.
func (uc *RemovalUseCase) ReloadModel(ctx context.Context) error {
	if err := uc.model.Reload(ctx); err != nil {
		return wrapError(KindModelLoad, err)
	}
	return nil
}

// ModelStatus reports the shared handle's loaded/device/name facts.
func (uc *RemovalUseCase) ModelStatus() (loaded bool, device, modelName string) {
	return uc.model.Status()
}

func (uc *RemovalUseCase) process(ctx context.Context, data []byte) (*Result, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.remove_background", requestID)

	if err := uc.model.EnsureLoaded(ctx); err != nil {
		opLogger.Error("model unavailable", zap.Error(err))
		return nil, newError(KindUnavailable, "AI model not available, try calling /load-model first: %v", err)
	}

	img, err := imagecodec.Decode(data)
	if err != nil {
		opLogger.Error("decode failed", zap.Error(err))
		return nil, wrapError(KindInternal, logging.NewOperationError("usecase.decode_image", requestID, err))
	}
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	tensor := preprocess.ToTensor(img)
	logits, err := uc.model.Infer(ctx, tensor)
	if err != nil {
		opLogger.Error("inference failed", zap.Error(err))
		return nil, wrapError(KindInference, logging.NewOperationError("usecase.infer", requestID, err))
	}

	mask, err := preprocess.MaskFromLogits(logits)
	if err != nil {
		opLogger.Error("mask conversion failed", zap.Error(err))
		return nil, wrapError(KindInference, logging.NewOperationError("usecase.mask", requestID, err))
	}

	png, err := imagecodec.EncodePNG(imagecodec.ApplyMask(img, mask))
	if err != nil {
		opLogger.Error("encode failed", zap.Error(err))
		return nil, wrapError(KindInternal, logging.NewOperationError("usecase.encode_png", requestID, err))
	}

	opLogger.Info("background removed",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("png_bytes", len(png)))
	return &Result{PNG: png, Width: width, Height: height}, nil
}
