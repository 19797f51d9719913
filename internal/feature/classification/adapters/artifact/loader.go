// Package artifact loads the serialized model graph from the model filesystem.
package artifact

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"

	"golang.org/x/crypto/blake2b"

	"photo_classifier/internal/feature/classification/domain"
	"photo_classifier/internal/feature/classification/domain/entity"
)

// ModelFile is the fixed name of the model graph inside the model filesystem.
const ModelFile = "tensor_model.onnx"

// Load reads ModelFile from fsys.
// Content is not validated here; a corrupt graph surfaces as domain.ErrGraphImport at import time.
func Load(fsys fs.FS) (*entity.Artifact, error) {
	b, err := fs.ReadFile(fsys, ModelFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read [%s]: %v", domain.ErrResourceLoad, ModelFile, err)
	}

	a := entity.NewArtifact(ModelFile, Digest(b), b)
	slog.Info("model artifact loaded", "file", ModelFile, "bytes", a.Size(), "digest", a.Digest)
	return a, nil
}

// Digest returns the hex encoded BLAKE2b-256 sum of b.
func Digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
