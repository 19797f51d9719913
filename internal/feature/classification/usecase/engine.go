package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"photo_classifier/internal/feature/classification/domain"
	"photo_classifier/internal/feature/classification/domain/entity"
)

const (
	// DefaultInferenceTimeout はグラフ実行の既定の上限時間です。
	DefaultInferenceTimeout = 30 * time.Second
	// DefaultMaxConcurrent は同時に実行できる推論数の既定値です。
	DefaultMaxConcurrent = 4
)

// Engine は呼び出しごとにグラフ・セッション・テンソルを生成し、実行後に必ず解放します。
// 実行枠はグラフ実行が実際に終わるまで保持されるため、タイムアウトで放棄された実行も上限に数えられます。
type Engine struct {
	runtime Runtime
	timeout time.Duration
	slots   int64
	sem     *semaphore.Weighted
}

// EngineがGraphRunnerを実装していることをコンパイル時に検証します。
var _ GraphRunner = (*Engine)(nil)

// NewEngine はEngineを生成します。timeoutが0以下の場合はDefaultInferenceTimeoutを、
// maxConcurrentが0以下の場合はDefaultMaxConcurrentを使用します。
func NewEngine(rt Runtime, timeout time.Duration, maxConcurrent int) *Engine {
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Engine{
		runtime: rt,
		timeout: timeout,
		slots:   int64(maxConcurrent),
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

type runResult struct {
	probs []float32
	err   error
}

// Run はグラフを1回実行し、[1, N] 出力の N 個の値を返します。
// タイムアウト時も実行中のゴルーチンは完了後にすべてのリソースを解放します。
func (e *Engine) Run(ctx context.Context, graph []byte, input *entity.ImageTensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExecution, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// 空き枠の待機もタイムアウトに含める
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for inference slot: %w", domain.ErrExecution, err)
	}

	ch := make(chan runResult, 1)
	go func() {
		defer e.sem.Release(1)
		probs, err := e.execute(graph, input)
		ch <- runResult{probs: probs, err: err}
	}()

	select {
	case r := <-ch:
		return r.probs, r.err
	case <-ctx.Done():
		slog.Warn("graph execution abandoned", "timeout", e.timeout, "error", ctx.Err())
		return nil, fmt.Errorf("%w: %w", domain.ErrExecution, ctx.Err())
	}
}

// Drain は実行中のグラフがすべて終わるまで待ち、以降の実行を受け付けなくします。
// ランタイムを閉じる前に呼び出します。
func (e *Engine) Drain(ctx context.Context) error {
	if err := e.sem.Acquire(ctx, e.slots); err != nil {
		return fmt.Errorf("graph executions still running: %w", err)
	}
	return nil
}

// Verify はグラフを一度インポートして破棄し、起動時にモデルの不備を検出します。
func (e *Engine) Verify(graph []byte) error {
	g, err := e.runtime.ImportGraph(graph, InputNode, OutputNode)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGraphImport, err)
	}
	release("graph", g)
	return nil
}

func (e *Engine) execute(graph []byte, input *entity.ImageTensor) (probs []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			probs = nil
			err = fmt.Errorf("%w: panic: %v", domain.ErrExecution, r)
		}
	}()

	g, err := e.runtime.ImportGraph(graph, InputNode, OutputNode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGraphImport, err)
	}
	defer release("graph", g)

	s, err := g.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %v", domain.ErrExecution, err)
	}
	defer release("session", s)

	out, err := s.Run(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExecution, err)
	}
	defer release("output tensor", out)

	shape := out.Shape()
	if len(shape) != 2 || shape[0] != 1 {
		return nil, &domain.ShapeMismatchError{Shape: append([]int64(nil), shape...)}
	}

	n := int(shape[1])
	data := out.Data()
	if n < 0 || len(data) < n {
		return nil, fmt.Errorf("%w: output holds %d values for shape %v", domain.ErrExecution, len(data), shape)
	}

	probs = make([]float32, n)
	copy(probs, data[:n])
	return probs, nil
}

// release はリソースを解放し、失敗した場合は警告ログを出力します。
func release(kind string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to release inference resource", "resource", kind, "error", err)
	}
}
