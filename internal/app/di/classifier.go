// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"photo_classifier/internal/feature/classification/adapters"
	"photo_classifier/internal/feature/classification/adapters/artifact"
	"photo_classifier/internal/feature/classification/adapters/preprocess"
	"photo_classifier/internal/feature/classification/domain/entity"
	"photo_classifier/internal/feature/classification/transport/handler"
	"photo_classifier/internal/feature/classification/usecase"
	"photo_classifier/internal/platform/cache"
)

// Pipeline is the classify usecase as seen by the transport layer.
type Pipeline interface {
	handler.Classifier
	ModelDigest() string
	// Drain waits for running graph executions, including abandoned ones.
	Drain(ctx context.Context) error
}

// LoadModel reads the model graph from dir.
func LoadModel(dir string) (*entity.Artifact, error) {
	return artifact.Load(os.DirFS(dir))
}

// NewPipeline wires preprocessing, the inference engine and formatting together.
// The graph is imported once up front so that a broken model stops startup.
func NewPipeline(a *entity.Artifact, rt usecase.Runtime, timeout time.Duration, maxConcurrent int) (Pipeline, error) {
	engine := usecase.NewEngine(rt, timeout, maxConcurrent)
	if err := engine.Verify(a.Bytes()); err != nil {
		return nil, fmt.Errorf("model %s: %w", a.Name, err)
	}
	return usecase.NewClassifyUsecase(a, preprocess.NewImagePreprocessor(), engine), nil
}

// CloseInference waits for running graph executions and then closes the runtime.
// If they do not finish before ctx ends, the runtime is left open.
func CloseInference(ctx context.Context, p Pipeline, rt io.Closer) error {
	if err := p.Drain(ctx); err != nil {
		return fmt.Errorf("runtime left open: %w", err)
	}
	return rt.Close()
}

// NewClassifier wraps the pipeline with the Redis result cache.
// A nil rdb returns a decorator that always delegates.
func NewClassifier(p Pipeline, rdb *redis.Client, ttl time.Duration) handler.Classifier {
	return cache.NewCachingClassifier(rdb, ttl, p, "classify", p.ModelDigest())
}

// NewHistoryRepository returns a gorm-backed history, or nil when no database is configured.
func NewHistoryRepository(db *gorm.DB) handler.HistoryRepository {
	if db == nil {
		return nil
	}
	return adapters.NewHistoryRepository(db)
}
