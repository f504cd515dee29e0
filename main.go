package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/bg-removal/internal/config"
	"github.com/example/bg-removal/internal/handlers"
	"github.com/example/bg-removal/internal/logging"
	"github.com/example/bg-removal/internal/model"
	"github.com/example/bg-removal/internal/usecase"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.Server.Reload)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Model.AuthToken != "" {
		logger.Info("using Hugging Face authentication token")
	} else {
		logger.Info("no HF token found, set HF_TOKEN if the model download fails")
	}

	manager := model.NewManager(cfg.Model, logger)
	defer manager.Close()

	// Best-effort warm-up: a failed startup load is logged and the model
	// is loaded lazily on the first request instead.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	if err := manager.EnsureLoaded(warmCtx); err != nil {
		logger.Warn("failed to load model on startup, it can be loaded later via /load-model",
			zap.Error(err))
	}
	warmCancel()

	uc := usecase.NewRemovalUseCase(manager, logger)

	if cfg.Server.Reload {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestLogger(logger))
	router.Use(cors.Default())
	router.MaxMultipartMemory = config.MaxUploadSize

	handlers.RegisterRoutes(router, uc)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	loaded, device, modelName := manager.Status()
	logger.Info("background removal API listening",
		zap.String("addr", addr),
		zap.String("model", modelName),
		zap.Bool("model_loaded", loaded),
		zap.String("device", device),
		zap.Int("workers", cfg.Server.Workers))

	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
