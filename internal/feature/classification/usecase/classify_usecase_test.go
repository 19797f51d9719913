package usecase_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo_classifier/internal/feature/classification/adapters/preprocess"
	"photo_classifier/internal/feature/classification/domain"
	"photo_classifier/internal/feature/classification/domain/entity"
	"photo_classifier/internal/feature/classification/usecase"
)

// mockPreprocessor はPreprocessorインターフェースのモック実装です。
type mockPreprocessor struct {
	NormalizeFunc func(imagePath string) (*entity.ImageTensor, error)
}

func (m *mockPreprocessor) Normalize(imagePath string) (*entity.ImageTensor, error) {
	return m.NormalizeFunc(imagePath)
}

// mockRunner はGraphRunnerインターフェースのモック実装です。
type mockRunner struct {
	RunFunc  func(ctx context.Context, graph []byte, input *entity.ImageTensor) ([]float32, error)
	RunCalls atomic.Int64
}

func (m *mockRunner) Run(ctx context.Context, graph []byte, input *entity.ImageTensor) ([]float32, error) {
	m.RunCalls.Add(1)
	return m.RunFunc(ctx, graph, input)
}

func testArtifact() *entity.Artifact {
	return entity.NewArtifact("tensor_model.onnx", "digest", []byte("stub-graph"))
}

// writeRedPNG は 299x299 の純粋な赤色PNGを書き出します。
func writeRedPNG(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 299, 299))
	for y := 0; y < 299; y++ {
		for x := 0; x < 299; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "red.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestClassifyUsecase_EndToEnd(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{OutShape: []int64{1, 2}, OutData: []float32{0.7, 0.3}}
	uc := usecase.NewClassifyUsecase(testArtifact(), preprocess.NewImagePreprocessor(), usecase.NewEngine(rt, time.Second, 1))

	got, err := uc.Classify(context.Background(), writeRedPNG(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"70.00%", "30.00%", "0"}, got)
	assert.Equal(t, int64(0), rt.Live())

	in := rt.lastIn.Load()
	require.NotNil(t, in)
	assert.Equal(t, []int64{1, 299, 299, 3}, in.Shape())
	assert.Equal(t, float32(1), in.At(150, 150, 0))
	assert.Equal(t, float32(0), in.At(150, 150, 1))
}

func TestClassifyUsecase_Classify(t *testing.T) {
	t.Parallel()

	tensor := entity.NewImageTensor(1, 1)
	okPre := func(string) (*entity.ImageTensor, error) { return tensor, nil }

	testCases := []struct {
		name        string
		preFunc     func(string) (*entity.ImageTensor, error)
		runFunc     func(ctx context.Context, graph []byte, input *entity.ImageTensor) ([]float32, error)
		expected    []string
		expectedErr error
		runCalls    int64
	}{
		{
			name:    "success: formatted result",
			preFunc: okPre,
			runFunc: func(ctx context.Context, graph []byte, input *entity.ImageTensor) ([]float32, error) {
				if string(graph) != "stub-graph" || input != tensor {
					return nil, errors.New("unexpected arguments")
				}
				return []float32{0.2, 0.8}, nil
			},
			expected: []string{"20.00%", "80.00%", "1"},
			runCalls: 1,
		},
		{
			name:        "error: decode failure skips inference",
			preFunc:     func(string) (*entity.ImageTensor, error) { return nil, domain.ErrDecode },
			expectedErr: domain.ErrDecode,
			runCalls:    0,
		},
		{
			name:    "error: shape mismatch propagates",
			preFunc: okPre,
			runFunc: func(context.Context, []byte, *entity.ImageTensor) ([]float32, error) {
				return nil, &domain.ShapeMismatchError{Shape: []int64{2, 5}}
			},
			expectedErr: domain.ErrShapeMismatch,
			runCalls:    1,
		},
		{
			name:    "error: empty output is not formatted",
			preFunc: okPre,
			runFunc: func(context.Context, []byte, *entity.ImageTensor) ([]float32, error) {
				return []float32{}, nil
			},
			expectedErr: domain.ErrEmptyProbabilities,
			runCalls:    1,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			runner := &mockRunner{RunFunc: tc.runFunc}
			uc := usecase.NewClassifyUsecase(testArtifact(), &mockPreprocessor{NormalizeFunc: tc.preFunc}, runner)

			got, err := uc.Classify(context.Background(), "/tmp/whatever.png")

			assert.Equal(t, tc.runCalls, runner.RunCalls.Load())
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, got, "no partial result on failure")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestClassifyUsecase_Drain(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{OutShape: []int64{1, 1}, OutData: []float32{1}}
	uc := usecase.NewClassifyUsecase(testArtifact(), &mockPreprocessor{}, usecase.NewEngine(rt, time.Second, 1))
	assert.NoError(t, uc.Drain(context.Background()))

	// 待機に対応しないrunnerでは何もしない
	plain := usecase.NewClassifyUsecase(testArtifact(), &mockPreprocessor{}, &mockRunner{})
	assert.NoError(t, plain.Drain(context.Background()))
}

func TestClassifyUsecase_ModelDigest(t *testing.T) {
	t.Parallel()

	uc := usecase.NewClassifyUsecase(testArtifact(), &mockPreprocessor{}, &mockRunner{})
	assert.Equal(t, "digest", uc.ModelDigest())
}
