package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/bg-removal/internal/config"
	"github.com/example/bg-removal/internal/handlers"
	"github.com/example/bg-removal/internal/model"
	"github.com/example/bg-removal/internal/preprocess"
	"github.com/example/bg-removal/internal/usecase"
)

type fakeSession struct{}

func (fakeSession) Predict(input []float32) ([]float32, error) {
	// Zero logits: sigmoid yields a uniform 0.5 probability mask.
	return make([]float32, preprocess.Size*preprocess.Size), nil
}

func (fakeSession) Close() error { return nil }

func buildTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := model.NewManager(config.ModelConfig{Name: "test/model"}, zap.NewNop(),
		model.WithLoader(func(ctx context.Context) (model.Session, string, error) {
			return fakeSession{}, "cpu", nil
		}))
	t.Cleanup(manager.Close)

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadSize
	handlers.RegisterRoutes(router, usecase.NewRemovalUseCase(manager, zap.NewNop()))
	return router
}

func TestUploadPipelineEndToEnd(t *testing.T) {
	router := buildTestRouter(t)

	// A colored subject on a 16x12 canvas.
	src := image.NewNRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 30, G: 144, B: 255, A: 255})
		}
	}
	var fixture bytes.Buffer
	if err := png.Encode(&fixture, src); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="subject.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(fixture.Bytes()); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/remove-background", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body=%s)", resp.Code, resp.Body.String())
	}

	out, err := png.Decode(bytes.NewReader(resp.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a PNG: %v", err)
	}
	if out.Bounds().Dx() != 16 || out.Bounds().Dy() != 12 {
		t.Fatalf("output is %dx%d, want 16x12", out.Bounds().Dx(), out.Bounds().Dy())
	}

	nonOpaque := false
	for y := 0; y < 12 && !nonOpaque; y++ {
		for x := 0; x < 16; x++ {
			if _, _, _, a := out.At(x, y).RGBA(); a>>8 < 255 {
				nonOpaque = true
				break
			}
		}
	}
	if !nonOpaque {
		t.Error("expected at least one non-opaque pixel in the output")
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	logger := zap.NewNop()
	router := buildTestRouter(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	server := &http.Server{Handler: router}

	signalCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- serveHTTPServerWithOptions(server, 2*time.Second, logger, listener, signalCh)
	}()

	addr := listener.Addr().String()
	waitForServer(t, addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d body %s", resp.StatusCode, body)
	}

	signalCh <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server did not shut down cleanly: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after shutdown signal")
	}
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s did not become ready", addr)
}
