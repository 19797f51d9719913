// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ModelInfo は読み込み済みモデルの情報を返します。
type ModelInfo interface {
	ModelDigest() string
}

// Health はサービスヘルスチェック用の /healthz エンドポイントを返します。
// モデルは起動時に読み込まれるため、プロセスが応答していればモデルは利用可能です。
func Health(model ModelInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 明示的にキャッシュを防止
		c.Header("Cache-Control", "no-store")

		switch c.Request.Method {
		case http.MethodHead:
			c.Status(http.StatusOK)
		case http.MethodOptions:
			c.Status(http.StatusNoContent)
		default:
			c.JSON(http.StatusOK, gin.H{"status": "ok", "model": model.ModelDigest()})
		}
	}
}
