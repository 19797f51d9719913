// Package handler はclassificationフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"photo_classifier/internal/api"
	"photo_classifier/internal/feature/classification/domain"
	"photo_classifier/internal/feature/classification/domain/entity"
	"photo_classifier/internal/feature/classification/transport/http/dto"

	"github.com/gin-gonic/gin"
)

// MaxUploadBytes はアップロード画像の最大サイズです。
const MaxUploadBytes = 10 << 20

// エラーメッセージ
const (
	msgFileRequired  = "file is required"
	msgFileTooLarge  = "file is too large"
	msgUnreadable    = "unsupported or unreadable image"
	msgTimeout       = "classification timed out"
	msgClassifyError = "classification failed"
	msgHistoryError  = "failed to load history"
)

// Classifier は画像ファイルを分類するユースケースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type Classifier interface {
	Classify(ctx context.Context, imagePath string) ([]string, error)
}

// UploadStore はアップロードファイルを保存し、保存名とパスを返します。
type UploadStore interface {
	Save(fh *multipart.FileHeader) (name string, path string, err error)
}

// HistoryRepository は分類履歴の永続化を行います。
type HistoryRepository interface {
	Save(ctx context.Context, r *entity.ClassificationRecord) error
	Recent(ctx context.Context, limit int) ([]entity.ClassificationRecord, error)
}

// ClassifyHandler は画像分類のHTTPリクエストを処理します。
type ClassifyHandler struct {
	classifier  Classifier
	store       UploadStore
	history     HistoryRepository
	modelDigest string
}

// NewClassifyHandler はClassifyHandlerを生成します。historyがnilの場合、履歴は記録しません。
func NewClassifyHandler(classifier Classifier, store UploadStore, history HistoryRepository, modelDigest string) *ClassifyHandler {
	return &ClassifyHandler{
		classifier:  classifier,
		store:       store,
		history:     history,
		modelDigest: modelDigest,
	}
}

// Classify はmultipartの"file"フィールドで受け取った画像を分類し、結果の文字列配列を返します。
//
// エンドポイント例:
// POST /html/image
// POST /v1/classify
func (h *ClassifyHandler) Classify(c *gin.Context) {
	if c.Request.ContentLength > MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: msgFileTooLarge})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: msgFileTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msgFileRequired})
		return
	}

	name, path, err := h.store.Save(fh)
	if err != nil {
		slog.Error("failed to store upload", "filename", fh.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgClassifyError})
		return
	}

	result, err := h.classifier.Classify(c.Request.Context(), path)
	if err != nil {
		status, msg := statusFor(err)
		slog.Warn("classification failed", "file", name, "status", status, "error", err)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}

	h.record(c.Request.Context(), name, result)
	c.JSON(http.StatusOK, result)
}

// statusFor はエラーをHTTPステータスとメッセージに変換します。
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrDecode):
		return http.StatusBadRequest, msgUnreadable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout
	default:
		return http.StatusInternalServerError, msgClassifyError
	}
}

// record は分類結果を履歴に保存します。失敗してもレスポンスには影響しません。
func (h *ClassifyHandler) record(ctx context.Context, name string, result []string) {
	if h.history == nil || len(result) == 0 {
		return
	}
	idx, err := strconv.Atoi(result[len(result)-1])
	if err != nil {
		slog.Warn("unexpected result tail", "file", name, "error", err)
		return
	}
	rec := &entity.ClassificationRecord{
		FileName:       name,
		ModelDigest:    h.modelDigest,
		PredictedIndex: idx,
		Result:         result,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.history.Save(ctx, rec); err != nil {
		slog.Error("failed to save classification record", "file", name, "error", err)
	}
}

// History は直近の分類履歴を新しい順に返します。
//
// エンドポイント例:
// GET /v1/history?limit=20
func (h *ClassifyHandler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, []dto.ClassificationRecordResponse{})
		return
	}
	// 不正な値は0となり、リポジトリ側でデフォルト値に置き換えられる
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		slog.Error("failed to load history", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: msgHistoryError})
		return
	}

	out := make([]dto.ClassificationRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, dto.ClassificationRecordResponse{
			ID:             r.ID,
			FileName:       r.FileName,
			ModelDigest:    r.ModelDigest,
			PredictedIndex: r.PredictedIndex,
			Result:         r.Result,
			CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}
