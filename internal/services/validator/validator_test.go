package validator

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type source struct {
	upload *types.Upload
	body   []byte
	reads  int
}

func (s *source) Upload() *types.Upload {
	s.reads++
	return s.upload
}

func (s *source) Body() ([]byte, error) {
	s.reads++
	return s.body, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func mp4Bytes() []byte {
	return append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 0, 0}, make([]byte, 64)...)
}

func TestValidateMedia(t *testing.T) {
	v := NewValidator(1024, 50)
	img := pngBytes(t)

	tests := []struct {
		name     string
		endpoint types.Endpoint
		upload   *types.Upload
		code     types.Code
		kind     types.MediaKind
	}{
		{"missing file", types.EndpointAIMedia, nil, types.CodeFileMissing, ""},
		{"truncated upload", types.EndpointDeepfake, &types.Upload{Filename: "big.mp4", Size: 4096, Truncated: true}, types.CodeFileTooLarge, ""},
		{"over limit", types.EndpointAIMedia, &types.Upload{Filename: "a.png", Size: 2048, Content: make([]byte, 2048)}, types.CodeFileTooLarge, ""},
		{"text file", types.EndpointAIMedia, &types.Upload{Filename: "a.txt", Size: 5, Content: []byte("hello")}, types.CodeFileUnsupported, ""},
		{"video on ai media", types.EndpointAIMedia, &types.Upload{Filename: "v.mp4", Size: 80, Content: mp4Bytes()}, types.CodeFileUnsupported, ""},
		{"video on deepfake", types.EndpointDeepfake, &types.Upload{Filename: "v.mp4", Size: 80, Content: mp4Bytes()}, types.CodeSuccess, types.MediaKindVideo},
		{"png on ai media", types.EndpointAIMedia, &types.Upload{Filename: "a.png", Size: int64(len(img)), Content: img}, types.CodeSuccess, types.MediaKindImage},
		{"png with lying header", types.EndpointDeepfake, &types.Upload{Filename: "a.png", DeclaredMIME: "text/plain", Size: int64(len(img)), Content: img}, types.CodeSuccess, types.MediaKindImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := v.Validate(tt.endpoint, &source{upload: tt.upload})
			assert.Equal(t, tt.code, types.CodeOf(err))
			if tt.code == types.CodeSuccess {
				require.NotNil(t, req.Media)
				assert.Equal(t, tt.kind, req.Media.Kind)
				assert.Equal(t, tt.endpoint, req.Endpoint)
			}
		})
	}
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, "image/png", DetectMIME(pngBytes(t), "application/octet-stream"))
	assert.Equal(t, "video/mp4", DetectMIME(mp4Bytes(), ""))
	assert.Equal(t, "image/bmp", DetectMIME([]byte{0x00, 0x01, 0x02}, "image/BMP; q=1"))
	assert.Equal(t, "application/octet-stream", DetectMIME([]byte{0x00, 0x01, 0x02}, ""))
}

func TestValidateText(t *testing.T) {
	v := NewValidator(1024, 50)
	long := strings.Repeat("a", 50)

	tests := []struct {
		name      string
		body      string
		code      types.Code
		highlight bool
	}{
		{"not json", `{"text":`, types.CodeBadJSON, false},
		{"array body", `[1,2]`, types.CodeBadJSON, false},
		{"number text", `{"text": 42}`, types.CodeBadJSON, false},
		{"missing text", `{}`, types.CodeTextMissing, false},
		{"null text", `{"text": null}`, types.CodeTextMissing, false},
		{"empty text", `{"text": ""}`, types.CodeTextMissing, false},
		{"short text", `{"text": "short"}`, types.CodeTextTooShort, false},
		{"padded short text", `{"text": "   ` + strings.Repeat("b", 49) + `   "}`, types.CodeTextTooShort, false},
		{"whitespace only", `{"text": "` + strings.Repeat(" ", 80) + `"}`, types.CodeTextTooShort, false},
		{"exactly minimum", `{"text": "` + long + `"}`, types.CodeSuccess, false},
		{"multibyte counts runes", `{"text": "` + strings.Repeat("é", 50) + `"}`, types.CodeSuccess, false},
		{"highlight", `{"text": "` + long + `", "highlight": true}`, types.CodeSuccess, true},
		{"bad highlight", `{"text": "` + long + `", "highlight": "yes"}`, types.CodeBadJSON, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := v.Validate(types.EndpointAIText, &source{body: []byte(tt.body)})
			assert.Equal(t, tt.code, types.CodeOf(err))
			if tt.code == types.CodeSuccess {
				require.NotNil(t, req.Text)
				assert.Equal(t, tt.highlight, req.Text.Highlight)
			}
		})
	}
}

func TestValidateTooShortMessage(t *testing.T) {
	_, err := NewValidator(1024, 50).Validate(types.EndpointAIText, &source{body: []byte(`{"text":"short"}`)})

	var gwErr *types.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Message, "50 characters")
}
