// Package entity はclassificationフィーチャーのドメインモデルを定義します。
package entity

const (
	// ImageHeight はモデルが期待する入力画像の高さです。
	ImageHeight = 299
	// ImageWidth はモデルが期待する入力画像の幅です。
	ImageWidth = 299
	// Channels はR, G, Bの3チャンネルです。
	Channels = 3
)

// ImageTensor は形状 [1, H, W, 3] の正規化済み画像テンソルを表します。
// Data は行優先（y, x, c）のフラットな配列で、値は 0.0 ~ 1.0 の範囲です。
// 列優先 [0][x][y] で入力を作る前処理に合わせて書き出されたモデルでは、空間次元の転置が必要です。
type ImageTensor struct {
	Height int
	Width  int
	Data   []float32
}

// NewImageTensor は指定サイズのゼロ埋めテンソルを生成します。
func NewImageTensor(height, width int) *ImageTensor {
	return &ImageTensor{
		Height: height,
		Width:  width,
		Data:   make([]float32, height*width*Channels),
	}
}

// Shape はテンソルの4次元形状を返します。
func (t *ImageTensor) Shape() []int64 {
	return []int64{1, int64(t.Height), int64(t.Width), Channels}
}

// Index は (y, x, c) に対応するフラット配列上の位置を返します。
func (t *ImageTensor) Index(y, x, c int) int {
	return (y*t.Width+x)*Channels + c
}

// At は (y, x, c) の値を返します。
func (t *ImageTensor) At(y, x, c int) float32 {
	return t.Data[t.Index(y, x, c)]
}

// Set は (y, x, c) に値を書き込みます。
func (t *ImageTensor) Set(y, x, c int, v float32) {
	t.Data[t.Index(y, x, c)] = v
}
