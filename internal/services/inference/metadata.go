package inference

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/dmi-project/dmi-gateway/internal/types"

	_ "golang.org/x/image/bmp"
)

// ExtractMetadata describes an accepted upload. Image dimensions are read
// from the header only; video details come from the detector when known.
func ExtractMetadata(media *types.MediaInput) *types.MediaMetadata {
	meta := &types.MediaMetadata{
		MimeType: media.MimeType,
		Size:     int64(len(media.Content)),
		Format:   formatOf(media.MimeType),
	}

	if media.Kind == types.MediaKindImage {
		if cfg, format, err := image.DecodeConfig(bytes.NewReader(media.Content)); err == nil {
			meta.Width = cfg.Width
			meta.Height = cfg.Height
			meta.Format = format
		}
	}

	return meta
}

func formatOf(mime string) string {
	switch mime {
	case "video/quicktime":
		return "mov"
	case "video/x-msvideo":
		return "avi"
	case "video/x-ms-wmv", "video/x-ms-asf":
		return "wmv"
	}

	if i := strings.IndexByte(mime, '/'); i >= 0 {
		return mime[i+1:]
	}
	return mime
}
