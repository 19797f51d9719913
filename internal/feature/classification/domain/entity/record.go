package entity

import "time"

// ClassificationRecord は成功した分類の履歴を表します。
type ClassificationRecord struct {
	ID             uint
	FileName       string    // 保存されたアップロードファイル名
	ModelDigest    string    // 分類に使用したモデルのダイジェスト
	PredictedIndex int       // 最大確率クラスのインデックス
	Result         []string  // フォーマット済みの結果（N個の百分率 + インデックス）
	CreatedAt      time.Time // 分類日時
}
