package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-content-annotator/internal/fsutil"
)

// FilesystemStorage resolves content asset paths on the shared asset volume.
// Asset paths arrive the way the platform stores them, e.g.
// "/public/image/post/postFile-1761494663889.png", and are resolved under baseDir.
type FilesystemStorage struct {
	baseDir string
	fs      fsutil.FileSystem
}

// NewFilesystemStorage creates a new filesystem asset store
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	return NewFilesystemStorageWithFS(baseDir, fsutil.OSFileSystem{})
}

// NewFilesystemStorageWithFS creates a filesystem asset store over fsys
func NewFilesystemStorageWithFS(baseDir string, fsys fsutil.FileSystem) (*FilesystemStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	return &FilesystemStorage{
		baseDir: abs,
		fs:      fsys,
	}, nil
}

// BaseDir returns the absolute base directory
func (s *FilesystemStorage) BaseDir() string {
	return s.baseDir
}

// Resolve maps an asset key to an absolute path under the base directory
func (s *FilesystemStorage) Resolve(key string) (string, error) {
	rel := strings.TrimLeft(key, `/\`)
	if rel == "" {
		return "", fmt.Errorf("%w: empty asset path", ErrInvalidKey)
	}

	path := filepath.Join(s.baseDir, filepath.FromSlash(rel))

	// Security: prevent directory traversal
	within, err := filepath.Rel(s.baseDir, path)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal detected", ErrInvalidKey)
	}

	return path, nil
}

// GetMetadata returns metadata for the regular file at the given key
func (s *FilesystemStorage) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	path, err := s.Resolve(key)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidKey, key)
	}

	return &Metadata{
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
	}, nil
}
