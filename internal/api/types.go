// Package api はHTTPレスポンスで共有する型を定義します。
package api

// ErrorResponse はエラー時のレスポンスボディです。
type ErrorResponse struct {
	Error string `json:"error"`
}
