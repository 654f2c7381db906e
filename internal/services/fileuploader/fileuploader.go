package fileuploader

import (
	"context"
	"mime"
	"strings"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/services/filestorage"
	"github.com/dmi-project/dmi-gateway/internal/utils/hashutil"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

const uploadTimeout = 2 * time.Minute

// Result reports where an archived upload ended up.
type Result struct {
	Hash     string
	Location string
	Err      error
}

// Uploader archives accepted uploads off the request path.
type Uploader struct {
	wp          *workerpool.WorkerPool
	filestorage filestorage.FileStorage
	hash        func([]byte) string
	logger      *zap.Logger
}

func NewFileUploader(storage filestorage.FileStorage, maxWorkers int, logger *zap.Logger) *Uploader {
	return &Uploader{
		wp:          workerpool.New(maxWorkers),
		filestorage: storage,
		hash:        hashutil.Blake3Hash,
		logger:      logger.Named("fileuploader"),
	}
}

// Stop waits for queued uploads to finish.
func (w *Uploader) Stop() {
	w.wp.StopWait()
}

// UploadBytes queues content for archiving under its BLAKE3 hash. Hashing
// happens on the worker. When response is non-nil it receives exactly one
// Result.
func (w *Uploader) UploadBytes(content []byte, mimeType string, response chan<- Result) {
	w.wp.Submit(func() {
		w.upload(filestorage.FileInfo{
			Name:      w.hash(content),
			Extension: extensionFor(mimeType),
			MimeType:  mimeType,
			Content:   content,
		}, response)
	})
}

func (w *Uploader) upload(file filestorage.FileInfo, response chan<- Result) {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	location, err := w.filestorage.Upload(ctx, file)
	if err != nil {
		w.logger.Warn("failed to archive upload", zap.String("hash", file.Name), zap.Error(err))
	} else {
		w.logger.Debug("archived upload", zap.String("hash", file.Name), zap.String("location", location))
	}

	if response != nil {
		response <- Result{Hash: file.Name, Location: location, Err: err}
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "video/quicktime":
		return ".mov"
	case "video/x-msvideo":
		return ".avi"
	case "video/x-ms-wmv", "video/x-ms-asf":
		return ".wmv"
	}

	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return "." + mimeType[i+1:]
	}
	return ""
}
