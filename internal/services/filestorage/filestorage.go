package filestorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmi-project/dmi-gateway/internal/config"
)

var ErrStorageDisabled = errors.New("file storage is disabled")

type FileInfo struct {
	Name      string
	Extension string
	MimeType  string
	Content   []byte
}

func (f FileInfo) Filename() string {
	return f.Name + f.Extension
}

// FileStorage archives uploaded media.
type FileStorage interface {
	Upload(ctx context.Context, file FileInfo) (string, error)
	GetFile(ctx context.Context, filename string) (*FileInfo, error)
}

// NewFileStorage returns the configured backend, or ErrStorageDisabled when
// archiving is turned off.
func NewFileStorage(ctx context.Context, cfg *config.StorageConfig) (FileStorage, error) {
	switch cfg.FilesystemType {
	case config.FilesystemLocal:
		return NewLocalFileStorage(cfg.AssetsDir)
	case config.FilesystemS3:
		return NewS3FileStorage(ctx, cfg.S3)
	case config.FilesystemNone, "":
		return nil, ErrStorageDisabled
	}

	return nil, fmt.Errorf("invalid filesystem type %s", cfg.FilesystemType)
}
