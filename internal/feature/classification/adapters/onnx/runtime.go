// Package onnx implements the inference runtime on top of ONNX Runtime.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	ort "github.com/yalue/onnxruntime_go"

	"photo_classifier/internal/feature/classification/domain/entity"
	"photo_classifier/internal/feature/classification/usecase"
)

// Config holds ONNX Runtime settings.
type Config struct {
	SharedLibraryPath string // path to libonnxruntime; empty uses the platform default
	IntraOpThreads    int    // 0 lets ONNX Runtime decide
}

// Runtime creates graphs backed by ONNX Runtime and counts the native handles it has handed out.
type Runtime struct {
	threads int
	live    atomic.Int64
}

var _ usecase.Runtime = (*Runtime)(nil)

// NewRuntime initializes the ONNX Runtime environment.
// Close must be called once the process stops serving.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	return &Runtime{threads: cfg.IntraOpThreads}, nil
}

// Close tears down the ONNX Runtime environment.
func (r *Runtime) Close() error {
	if n := r.live.Load(); n != 0 {
		slog.Warn("closing ONNX runtime with live handles", "live", n)
	}
	return ort.DestroyEnvironment()
}

// LiveHandles reports how many native objects are currently alive.
func (r *Runtime) LiveHandles() int64 {
	return r.live.Load()
}

// ImportGraph parses the ONNX model and binds the named input and output nodes.
func (r *Runtime) ImportGraph(graph []byte, inputName, outputName string) (usecase.Graph, error) {
	if len(graph) == 0 {
		return nil, errors.New("model data is empty")
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if r.threads > 0 {
		if err := opts.SetIntraOpNumThreads(r.threads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSessionWithONNXData(graph, []string{inputName}, []string{outputName}, opts)
	if err != nil {
		_ = opts.Destroy()
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}

	r.live.Add(2)
	return &graphHandle{rt: r, opts: opts, sess: sess}, nil
}

// graphHandle owns the parsed model. In ONNX Runtime the parsed graph and
// its executor are one native object, so it lives here rather than in the session.
type graphHandle struct {
	rt   *Runtime
	opts *ort.SessionOptions
	sess *ort.DynamicAdvancedSession
	once sync.Once
}

func (g *graphHandle) NewSession() (usecase.Session, error) {
	return &session{graph: g}, nil
}

func (g *graphHandle) Close() error {
	var err error
	g.once.Do(func() {
		err = errors.Join(g.sess.Destroy(), g.opts.Destroy())
		g.rt.live.Add(-2)
	})
	return err
}

// session is one execution scope. It destroys any output tensor the caller
// did not release itself.
type session struct {
	graph   *graphHandle
	mu      sync.Mutex
	handles []*tensor
}

func (s *session) Run(input *entity.ImageTensor) (usecase.Tensor, error) {
	rt := s.graph.rt

	in, err := ort.NewTensor(ort.NewShape(input.Shape()...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	rt.live.Add(1)
	defer func() {
		if err := in.Destroy(); err != nil {
			slog.Warn("failed to destroy input tensor", "error", err)
		}
		rt.live.Add(-1)
	}()

	outs := []ort.Value{nil}
	if err := s.graph.sess.Run([]ort.Value{in}, outs); err != nil {
		return nil, fmt.Errorf("onnx run failed: %w", err)
	}
	if outs[0] == nil {
		return nil, errors.New("no output from model")
	}
	rt.live.Add(1)

	out, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		err := outs[0].Destroy()
		rt.live.Add(-1)
		return nil, errors.Join(fmt.Errorf("unexpected output tensor type %T", outs[0]), err)
	}

	t := &tensor{rt: rt, t: out}
	s.mu.Lock()
	s.handles = append(s.handles, t)
	s.mu.Unlock()
	return t, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, t := range s.handles {
		errs = append(errs, t.Close())
	}
	s.handles = nil
	return errors.Join(errs...)
}

type tensor struct {
	rt   *Runtime
	t    *ort.Tensor[float32]
	once sync.Once
}

func (t *tensor) Shape() []int64 {
	return []int64(t.t.GetShape())
}

func (t *tensor) Data() []float32 {
	return t.t.GetData()
}

func (t *tensor) Close() error {
	var err error
	t.once.Do(func() {
		err = t.t.Destroy()
		t.rt.live.Add(-1)
	})
	return err
}
