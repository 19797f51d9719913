package router

import (
	classifyhandler "photo_classifier/internal/feature/classification/transport/handler"
	"photo_classifier/internal/platform/http/handler"
	jwtmw "photo_classifier/internal/platform/jwt"

	"github.com/gin-gonic/gin"
)

// NewRouter はルーティングを設定したgin.Engineを生成します。
// jwtSecretが空でない場合、分類と履歴のルートにJWT認証を適用します。
func NewRouter(classify *classifyhandler.ClassifyHandler, model handler.ModelInfo, jwtSecret string) *gin.Engine {
	r := gin.Default()
	// multipartをメモリに保持する上限
	r.MaxMultipartMemory = classifyhandler.MaxUploadBytes

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health(model))
	r.HEAD("/healthz", handler.Health(model))

	api := r.Group("/")
	if jwtSecret != "" {
		// → リクエストヘッダーに JWT が必要になる
		api.Use(jwtmw.AuthRequired(jwtSecret))
	}
	{
		// 画像分類（従来のフォーム送信先）
		api.POST("/html/image", classify.Classify)
		api.POST("/v1/classify", classify.Classify)
		// 分類履歴
		api.GET("/v1/history", classify.History)
	}

	return r
}
