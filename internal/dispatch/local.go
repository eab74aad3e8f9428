//go:build llamacpp

package dispatch

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"

	"github.com/nvandessel/swarmlod/internal/vecmath"
)

// Package-level library initialization. llama.Load() and llama.Init() are
// process-global operations that must only happen once.
var (
	libOnce    sync.Once
	libLoadErr error
)

func loadLib(libPath string) error {
	libOnce.Do(func() {
		if err := llama.Load(libPath); err != nil {
			libLoadErr = fmt.Errorf("loading yzma shared library from %q: %w", libPath, err)
			return
		}
		llama.LogSet(llama.LogSilent())
		llama.Init()
	})
	return libLoadErr
}

// LocalDispatcher proposes plans using a local GGUF embedding model via
// hybridgroup/yzma (purego): candidates are ranked by embedding similarity
// against the agent's situation. Thread-safe: all model access is serialized
// via mutex. Contexts are created per embed call and freed immediately.
type LocalDispatcher struct {
	libPath     string
	modelPath   string
	gpuLayers   int
	contextSize int
	planLength  int

	mu      sync.Mutex
	model   llama.Model
	vocab   llama.Vocab
	nEmbd   int32
	loadErr error
	once    sync.Once
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

// NewLocalDispatcher creates a new LocalDispatcher. The model is not loaded
// until first use.
func NewLocalDispatcher(cfg LocalConfig) *LocalDispatcher {
	ctxSize := cfg.ContextSize
	if ctxSize <= 0 {
		ctxSize = 512
	}
	libPath := cfg.LibPath
	if libPath == "" {
		libPath = os.Getenv("YZMA_LIB")
	}
	return &LocalDispatcher{
		libPath:     libPath,
		modelPath:   cfg.ModelPath,
		gpuLayers:   cfg.GPULayers,
		contextSize: ctxSize,
		planLength:  cfg.PlanLength,
	}
}

func (d *LocalDispatcher) resolveLibPath() string {
	if d.libPath != "" {
		return d.libPath
	}
	return os.Getenv("YZMA_LIB")
}

// loadModel lazy-loads the embedding model on first use.
func (d *LocalDispatcher) loadModel() error {
	d.once.Do(func() {
		if d.modelPath == "" {
			d.loadErr = fmt.Errorf("no model path configured")
			return
		}
		libPath := d.resolveLibPath()
		if libPath == "" {
			d.loadErr = fmt.Errorf("no library path configured (set LibPath or YZMA_LIB)")
			return
		}
		if err := loadLib(libPath); err != nil {
			d.loadErr = err
			return
		}

		modelParams := llama.ModelDefaultParams()
		gpuLayers := d.gpuLayers
		if gpuLayers > math.MaxInt32 {
			gpuLayers = math.MaxInt32
		}
		modelParams.NGpuLayers = int32(gpuLayers)

		model, err := llama.ModelLoadFromFile(d.modelPath, modelParams)
		if err != nil {
			d.loadErr = fmt.Errorf("loading model %s: %w", d.modelPath, err)
			return
		}
		if model == 0 {
			d.loadErr = fmt.Errorf("loading model %s: returned null handle", d.modelPath)
			return
		}

		d.model = model
		d.vocab = llama.ModelGetVocab(model)
		d.nEmbd = int32(llama.ModelNEmbd(model))
	})
	return d.loadErr
}

// Available returns true if both the library directory and model file exist
// on disk. This is a cheap check that does not load the model or library.
func (d *LocalDispatcher) Available() bool {
	libPath := d.resolveLibPath()
	if libPath == "" || d.modelPath == "" {
		return false
	}
	if info, err := os.Stat(libPath); err != nil || !info.IsDir() {
		return false
	}
	_, err := os.Stat(d.modelPath)
	return err == nil
}

// Propose embeds the agent's situation and every candidate action, then
// returns the candidates ranked by cosine similarity.
func (d *LocalDispatcher) Propose(ctx context.Context, req Request) (Response, error) {
	if len(req.Candidates) == 0 {
		return Response{}, nil
	}

	situation := req.Observation
	if len(req.Memories) > 0 {
		situation += " remembering " + strings.Join(req.Memories, " ")
	}
	target, err := d.embed(ctx, situation)
	if err != nil {
		return Response{}, fmt.Errorf("embedding situation: %w", err)
	}

	type scored struct {
		action string
		score  float64
		pos    int
	}
	ranked := make([]scored, len(req.Candidates))
	for i, c := range req.Candidates {
		vec, err := d.embed(ctx, c)
		if err != nil {
			return Response{}, fmt.Errorf("embedding candidate %q: %w", c, err)
		}
		ranked[i] = scored{action: c, score: vecmath.Cosine(target, vec), pos: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].pos < ranked[j].pos
	})

	n := d.planLength
	if n <= 0 {
		n = 3
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	actions := make([]string, n)
	for i := 0; i < n; i++ {
		actions[i] = ranked[i].action
	}
	// Top score in [-1, 1] mapped to [0, 1].
	return Response{Actions: actions, Confidence: (ranked[0].score + 1) / 2}, nil
}

// embed returns a dense vector embedding for the given text. Creates a fresh
// llama context per call and frees it immediately.
func (d *LocalDispatcher) embed(ctx context.Context, text string) ([]float32, error) {
	if err := d.loadModel(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tokens := llama.Tokenize(d.vocab, text, true, true)

	ctxParams := llama.ContextDefaultParams()
	nTokens := len(tokens) + 64
	if nTokens > math.MaxUint32 {
		nTokens = math.MaxUint32
	}
	ctxParams.NCtx = uint32(nTokens)

	lctx, err := llama.InitFromModel(d.model, ctxParams)
	if err != nil {
		return nil, fmt.Errorf("creating embedding context: %w", err)
	}
	defer func() { _ = llama.Free(lctx) }()

	llama.SetEmbeddings(lctx, true)

	batch := llama.BatchGetOne(tokens)
	if _, err := llama.Decode(lctx, batch); err != nil {
		return nil, fmt.Errorf("decoding tokens: %w", err)
	}

	rawVec, err := llama.GetEmbeddingsSeq(lctx, 0, d.nEmbd)
	if err != nil {
		return nil, fmt.Errorf("getting embeddings: %w", err)
	}

	// Copy before release (rawVec points to memory owned by lctx).
	vec := make([]float32, len(rawVec))
	copy(vec, rawVec)
	return vec, nil
}

// Close frees the loaded model.
func (d *LocalDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.model != 0 {
		llama.ModelFree(d.model)
		d.model = 0
	}
	return nil
}
