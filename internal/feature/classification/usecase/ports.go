// Package usecase はclassificationフィーチャーの推論パイプラインを実装します。
package usecase

import (
	"context"

	"photo_classifier/internal/feature/classification/domain/entity"
)

const (
	// InputNode はモデルの入力ノード名です。
	InputNode = "main_input"
	// OutputNode はソフトマックス適用後の出力ノード名です。
	OutputNode = "main_output"
)

// Preprocessor は画像ファイルを正規化テンソルに変換します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Preprocessor interface {
	Normalize(imagePath string) (*entity.ImageTensor, error)
}

// GraphRunner はグラフのバイト列と入力テンソルから確率ベクトルを得ます。
type GraphRunner interface {
	Run(ctx context.Context, graph []byte, input *entity.ImageTensor) ([]float32, error)
}

// Runtime は推論エンジンのネイティブ実装を抽象化します。
// Runtimeが返すGraph、Session、TensorはすべてCloseで解放する必要があります。
type Runtime interface {
	// ImportGraph はシリアライズされたグラフを読み込み、入出力ノードを名前で束縛します。
	ImportGraph(graph []byte, inputName, outputName string) (Graph, error)
}

// Graph は読み込み済みの計算グラフです。
type Graph interface {
	NewSession() (Session, error)
	Close() error
}

// Session はグラフを1回実行するための実行コンテキストです。
type Session interface {
	// Run は入力テンソルを与えてグラフを実行し、出力テンソルを返します。
	// 入力用のネイティブテンソルはRun内で生成・解放されます。
	Run(input *entity.ImageTensor) (Tensor, error)
	Close() error
}

// Tensor は推論エンジンが所有する出力テンソルです。
type Tensor interface {
	Shape() []int64
	// Data はネイティブメモリを参照する可能性があるため、Close前にコピーしてください。
	Data() []float32
	Close() error
}
