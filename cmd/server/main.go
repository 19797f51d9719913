package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"photo_classifier/internal/app/config"
	"photo_classifier/internal/app/di"
	"photo_classifier/internal/app/router"
	"photo_classifier/internal/feature/classification/adapters"
	"photo_classifier/internal/feature/classification/adapters/onnx"
	"photo_classifier/internal/feature/classification/adapters/upload"
	"photo_classifier/internal/feature/classification/transport/handler"
	infradb "photo_classifier/internal/platform/db"
	infraredis "photo_classifier/internal/platform/redis"
)

func main() {
	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// モデル（読み込めない場合は起動しない）
	model, err := di.LoadModel(cfg.ModelDir)
	if err != nil {
		return err
	}

	// ONNX Runtime
	rt, err := onnx.NewRuntime(onnx.Config{SharedLibraryPath: cfg.ORTLibrary, IntraOpThreads: cfg.IntraOpThreads})
	if err != nil {
		return err
	}

	pipeline, err := di.NewPipeline(model, rt, cfg.InferenceTimeout, cfg.MaxConcurrent)
	if err != nil {
		_ = rt.Close()
		return err
	}
	defer func() {
		// 放棄された推論も含め、実行中のグラフが終わってからランタイムを閉じる
		ctx, cancel := context.WithTimeout(context.Background(), cfg.InferenceTimeout+5*time.Second)
		defer cancel()
		if err := di.CloseInference(ctx, pipeline, rt); err != nil {
			slog.Error("failed to close ONNX runtime", "error", err, "live_handles", rt.LiveHandles())
			return
		}
		slog.Info("ONNX runtime closed", "live_handles", rt.LiveHandles())
	}()

	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(ctx, cfg.Redis); err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", err)
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}

	// DB（任意）
	var db *gorm.DB
	if tmp, err := infradb.Open(cfg.DB, &adapters.ClassificationModel{}); err != nil {
		if !errors.Is(err, infradb.ErrDisabled) {
			return err
		}
		slog.Warn("DB_DRIVER is not set. Classification history is disabled.")
	} else {
		db = tmp
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
	}

	store, err := upload.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	// Handler
	classifier := di.NewClassifier(pipeline, rdb, cfg.CacheTTL)
	classifyH := handler.NewClassifyHandler(classifier, store, di.NewHistoryRepository(db), pipeline.ModelDigest())

	// ルータ生成
	r := router.NewRouter(classifyH, pipeline, cfg.JWTSecret)

	// JWT_SECRETチェック（開発中の注意喚起）
	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET is not set. Classification endpoints are public.")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "model", pipeline.ModelDigest())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.InferenceTimeout+5*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
