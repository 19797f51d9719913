package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"photo_classifier/internal/feature/classification/domain/entity"
)

// classifyUsecase は前処理・推論・整形を順に実行するパイプラインです。
type classifyUsecase struct {
	artifact     *entity.Artifact
	preprocessor Preprocessor
	runner       GraphRunner
}

// Drainer は実行中の推論の完了を待てるGraphRunnerです。
type Drainer interface {
	Drain(ctx context.Context) error
}

// NewClassifyUsecase はclassifyUsecaseの新しいインスタンスを生成します。
// artifactは読み取り専用として全リクエストで共有されます。
// 同時実行数の制限はrunner側で行います。
func NewClassifyUsecase(artifact *entity.Artifact, p Preprocessor, r GraphRunner) *classifyUsecase {
	return &classifyUsecase{
		artifact:     artifact,
		preprocessor: p,
		runner:       r,
	}
}

// ModelDigest は使用中のモデルのダイジェストを返します。
func (u *classifyUsecase) ModelDigest() string {
	return u.artifact.Digest
}

// Classify は画像ファイルを分類し、N個の百分率文字列と最大確率のインデックスを返します。
// いずれかの段階で失敗した場合、部分的な結果は返しません。
func (u *classifyUsecase) Classify(ctx context.Context, imagePath string) ([]string, error) {
	tensor, err := u.preprocessor.Normalize(imagePath)
	if err != nil {
		return nil, fmt.Errorf("preprocess failed: %w", err)
	}
	slog.Debug("image normalized", "path", imagePath, "shape", tensor.Shape())

	probs, err := u.runner.Run(ctx, u.artifact.Bytes(), tensor)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	slog.Debug("graph executed", "path", imagePath, "labels", len(probs))

	result, err := Format(probs)
	if err != nil {
		return nil, fmt.Errorf("format failed: %w", err)
	}
	return result, nil
}

// Drain は実行中の推論がすべて終わるまで待ちます。runnerが待機に対応しない場合は何もしません。
func (u *classifyUsecase) Drain(ctx context.Context) error {
	if d, ok := u.runner.(Drainer); ok {
		return d.Drain(ctx)
	}
	return nil
}
