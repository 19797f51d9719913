package dto

// ClassificationRecordResponse は分類履歴のレスポンスDTOです。
type ClassificationRecordResponse struct {
	ID             uint     `json:"id"`
	FileName       string   `json:"file_name"`       // 保存されたファイル名
	ModelDigest    string   `json:"model_digest"`    // モデルのBLAKE2bダイジェスト
	PredictedIndex int      `json:"predicted_index"` // 最大確率のラベル番号
	Result         []string `json:"result"`          // 分類結果（確率 + 番号）
	CreatedAt      string   `json:"created_at"`      // RFC3339
}
