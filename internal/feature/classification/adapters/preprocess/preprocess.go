// Package preprocess は画像ファイルをモデル入力用の正規化テンソルに変換します。
package preprocess

import (
	"fmt"
	"image"
	_ "image/gif"  // GIFデコーダを登録
	_ "image/jpeg" // JPEGデコーダを登録
	_ "image/png"  // PNGデコーダを登録
	"os"

	"github.com/nfnt/resize"

	"photo_classifier/internal/feature/classification/domain"
	"photo_classifier/internal/feature/classification/domain/entity"
	"photo_classifier/internal/feature/classification/usecase"
)

// ImagePreprocessor は画像を固定サイズにリサイズし、RGB値を 0.0 ~ 1.0 に正規化します。
// 既定では各要素は元画像のちょうど1画素から取得されます（最近傍の点サンプリング）。
type ImagePreprocessor struct {
	height   int
	width    int
	filtered bool
	interp   resize.InterpolationFunction
}

// ImagePreprocessorがusecase.Preprocessorを実装していることをコンパイル時に検証します。
var _ usecase.Preprocessor = (*ImagePreprocessor)(nil)

// NewImagePreprocessor は 299x299、最近傍の点サンプリングを行うImagePreprocessorを生成します。
func NewImagePreprocessor() *ImagePreprocessor {
	return &ImagePreprocessor{
		height: entity.ImageHeight,
		width:  entity.ImageWidth,
	}
}

// WithInterpolation はnfnt/resizeのフィルタで拡大縮小するコピーを返します。
// フィルタは縮小時に複数の画素を混ぜるため、1画素からの取得にはなりません。
func (p *ImagePreprocessor) WithInterpolation(interp resize.InterpolationFunction) *ImagePreprocessor {
	cp := *p
	cp.filtered = true
	cp.interp = interp
	return &cp
}

// Normalize は画像ファイルを読み込み、形状 [1, H, W, 3] のテンソルを返します。
// アスペクト比は維持せず、切り抜きも行いません。アルファチャンネルは無視されます。
func (p *ImagePreprocessor) Normalize(imagePath string) (*entity.ImageTensor, error) {
	img, err := decode(imagePath)
	if err != nil {
		return nil, err
	}
	return p.FromImage(img), nil
}

// FromImage はデコード済みの画像からテンソルを生成します。
func (p *ImagePreprocessor) FromImage(img image.Image) *entity.ImageTensor {
	if p.filtered {
		img = resize.Resize(uint(p.width), uint(p.height), img, p.interp)
	}
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	t := entity.NewImageTensor(p.height, p.width)
	for y := 0; y < p.height; y++ {
		sy := b.Min.Y + sourceIndex(y, p.height, srcH)
		for x := 0; x < p.width; x++ {
			sx := b.Min.X + sourceIndex(x, p.width, srcW)
			r, g, bl, _ := img.At(sx, sy).RGBA()
			t.Set(y, x, 0, float32(r>>8)/255.0)
			t.Set(y, x, 1, float32(g>>8)/255.0)
			t.Set(y, x, 2, float32(bl>>8)/255.0)
		}
	}
	return t
}

// sourceIndex は出力座標 i の画素中心に対応する元画像の座標を返します。
// 出力と元画像の大きさが等しい場合は i をそのまま返します。
func sourceIndex(i, dst, src int) int {
	return (2*i + 1) * src / (2 * dst)
}

func decode(imagePath string) (image.Image, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecode, imagePath, err)
	}
	return img, nil
}
