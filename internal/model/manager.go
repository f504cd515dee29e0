// Package model owns the process-wide segmentation model handle: loading
// it from the configured artifact, selecting a compute device once, and
// running single-image inference calls against it.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/bg-removal/internal/config"
)

// ErrNotLoaded is returned by Infer when no model handle exists.
var ErrNotLoaded = errors.New("model not loaded")

// Loader produces a fresh session and reports the device it runs on.
type Loader func(ctx context.Context) (Session, string, error)

// Manager holds the single model handle for the process. The handle is
// swapped under the write lock and read under read locks, so concurrent
// requests observe either a fully loaded session or none at all.
type Manager struct {
	cfg    config.ModelConfig
	logger *zap.Logger
	loader Loader

	mu      sync.RWMutex
	session Session
	device  string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLoader replaces the default ONNX loader. Used by tests.
func WithLoader(loader Loader) Option {
	return func(m *Manager) { m.loader = loader }
}

// NewManager constructs a manager; no model is loaded yet.
func NewManager(cfg config.ModelConfig, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		logger: logger.Named("model_manager"),
	}
	m.loader = m.loadORT
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureLoaded loads the model on first call and is a no-op afterwards.
// A load failure is surfaced to the caller, never retried silently.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.session != nil
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		return nil
	}
	return m.loadLocked(ctx)
}

// Reload discards the current handle and forces a fresh load.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		if err := m.session.Close(); err != nil {
			m.logger.Warn("failed to close previous session", zap.Error(err))
		}
		m.session = nil
		m.device = ""
	}
	return m.loadLocked(ctx)
}

func (m *Manager) loadLocked(ctx context.Context) error {
	m.logger.Info("loading model", zap.String("model", m.cfg.Name))

	session, device, err := m.loader(ctx)
	if err != nil {
		m.logger.Error("model load failed", zap.Error(err))
		return fmt.Errorf("load model %s: %w", m.cfg.Name, err)
	}

	m.session = session
	m.device = device
	m.logger.Info("model loaded", zap.String("model", m.cfg.Name), zap.String("device", device))
	return nil
}

// Infer runs one forward pass. The read lock only guards the handle swap;
// the session serializes its own Run calls.
func (m *Manager) Infer(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrNotLoaded
	}
	return m.session.Predict(input)
}

// Status reports whether a handle is loaded, the selected device, and the
// configured model name.
func (m *Manager) Status() (loaded bool, device, modelName string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil, m.device, m.cfg.Name
}

// Close releases the current handle, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			m.logger.Warn("failed to close session", zap.Error(err))
		}
		m.session = nil
		m.device = ""
	}
}

// loadORT is the default loader: fetch the artifact if absent, initialize
// the runtime, pick a device, and open a session.
func (m *Manager) loadORT(ctx context.Context) (Session, string, error) {
	path, err := ensureArtifact(ctx, m.cfg, m.logger)
	if err != nil {
		return nil, "", err
	}

	if err := initRuntime(m.cfg.SharedLib); err != nil {
		return nil, "", err
	}

	opts, device, err := sessionOptions()
	if err != nil {
		return nil, "", err
	}
	defer opts.Destroy()

	session, err := newORTSession(path, m.cfg.InputName, m.cfg.OutputNames, opts)
	if err != nil {
		return nil, "", err
	}
	return session, device, nil
}
