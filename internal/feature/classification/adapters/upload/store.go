// Package upload はアップロードされた画像をローカルディスクに保存します。
package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore はアップロードファイルを重複しない名前でディレクトリに保存します。
type DiskStore struct {
	dir string
}

// NewDiskStore はディレクトリを作成し、DiskStoreを生成します。
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir は保存先ディレクトリを返します。
func (s *DiskStore) Dir() string {
	return s.dir
}

// FileName は元のファイル名の拡張子を維持した、ハイフンなしUUIDのファイル名を返します。
func FileName(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

// Save はアップロードファイルを保存し、保存名とフルパスを返します。
func (s *DiskStore) Save(fh *multipart.FileHeader) (string, string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := FileName(fh.Filename)
	path := filepath.Join(s.dir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return name, path, nil
}
