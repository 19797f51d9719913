package usecase

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"photo_classifier/internal/feature/classification/domain"
)

// Format は各確率を小数点以下2桁の百分率文字列に変換し、最後に最大確率のインデックスを追加します。
// 結果の長さは常に len(probs)+1 です。
func Format(probs []float32) ([]string, error) {
	best, err := ArgMax(probs)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(probs)+1)
	for _, p := range probs {
		out = append(out, Percent(p))
	}
	out = append(out, strconv.Itoa(best))
	return out, nil
}

// Percent は確率 p を "12.35%" の形式に変換します。
// 積 p*100 は float32 で計算し、小数点以下2桁へは四捨五入（ちょうど中間の値は0から遠い側）で丸めます。
// 例: 0.12125 は積がちょうど 12.125 となり "12.13%" になります。
func Percent(p float32) string {
	v := float64(p * 100)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 2, 64) + "%"
	}
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// ArgMax は最大値の最初のインデックスを返します。同値の場合は先頭側が優先されます。
func ArgMax(probs []float32) (int, error) {
	if len(probs) == 0 {
		return 0, domain.ErrEmptyProbabilities
	}
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best, nil
}
