package filestorage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type LocalFileStorage struct {
	assetsDir string
}

func NewLocalFileStorage(assetsDir string) (*LocalFileStorage, error) {
	if assetsDir == "" {
		return nil, fmt.Errorf("assets dir is not set")
	}

	return &LocalFileStorage{assetsDir: assetsDir}, nil
}

// Upload writes the file under the assets dir and returns its path. Names
// are content hashes, so an existing file is left as is.
func (u *LocalFileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	filedest := filepath.Join(u.assetsDir, file.Filename())
	if err := os.MkdirAll(filepath.Dir(filedest), 0o755); err != nil {
		return "", err
	}

	if _, err := os.Stat(filedest); err == nil {
		return filedest, nil
	}

	tmp, err := os.CreateTemp(u.assetsDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(file.Content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to save content to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), filedest); err != nil {
		return "", err
	}
	return filedest, nil
}

func (u *LocalFileStorage) GetFile(ctx context.Context, filename string) (*FileInfo, error) {
	if filename != filepath.Base(filename) {
		return nil, errors.New("invalid filename")
	}

	content, err := os.ReadFile(filepath.Join(u.assetsDir, filename))
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(filename)
	return &FileInfo{
		Name:      filename[:len(filename)-len(ext)],
		Extension: ext,
		Content:   content,
	}, nil
}
