//go:build !llamacpp

package dispatch

import (
	"context"
	"fmt"
)

// LocalDispatcher is a stub implementation used when the llamacpp build tag
// is not set. It reports Available()=false so callers fall back to the
// heuristic backend.
type LocalDispatcher struct {
	modelPath string
}

// LocalConfig configures the local dispatcher.
type LocalConfig struct {
	// LibPath is the directory containing yzma shared libraries (.so/.dylib).
	// Falls back to YZMA_LIB env var at runtime.
	LibPath string

	// ModelPath is the path to the GGUF embedding model file.
	ModelPath string

	// GPULayers is the number of layers to offload to GPU (0 = CPU only).
	GPULayers int

	// ContextSize is the context window size in tokens.
	ContextSize int

	// PlanLength caps the number of actions per proposal. Zero means 3.
	PlanLength int
}

// NewLocalDispatcher creates a new LocalDispatcher. In the stub build
// (without the llamacpp tag), this dispatcher is always unavailable.
func NewLocalDispatcher(cfg LocalConfig) *LocalDispatcher {
	return &LocalDispatcher{modelPath: cfg.ModelPath}
}

// Propose returns an error because the local backend is not compiled in.
func (d *LocalDispatcher) Propose(_ context.Context, _ Request) (Response, error) {
	return Response{}, fmt.Errorf("%w: build with -tags llamacpp", ErrUnavailable)
}

// Available returns false because the local backend is not compiled in
// without the llamacpp build tag.
func (d *LocalDispatcher) Available() bool {
	return false
}

// Close is a no-op for the stub dispatcher.
func (d *LocalDispatcher) Close() error {
	return nil
}
