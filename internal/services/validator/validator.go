package validator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/gabriel-vasile/mimetype"
)

const octetStream = "application/octet-stream"

var (
	imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/bmp"}
	videoTypes = []string{"video/mp4", "video/quicktime", "video/x-msvideo", "video/x-ms-wmv", "video/x-ms-asf"}
	knownTypes = append(append([]string{}, imageTypes...), videoTypes...)
)

// AllowedTypes returns the MIME allow-list of a media endpoint.
func AllowedTypes(endpoint types.Endpoint) []string {
	switch endpoint {
	case types.EndpointDeepfake:
		return append(append([]string{}, imageTypes...), videoTypes...)
	case types.EndpointAIMedia:
		return append([]string{}, imageTypes...)
	}
	return nil
}

type Validator struct {
	maxUploadBytes int64
	minTextLength  int
	now            func() time.Time
}

func NewValidator(maxUploadBytes int64, minTextLength int) *Validator {
	return &Validator{
		maxUploadBytes: maxUploadBytes,
		minTextLength:  minTextLength,
		now:            time.Now,
	}
}

func (v *Validator) MaxUploadBytes() int64 {
	return v.maxUploadBytes
}

// Validate applies the endpoint's checks in order and returns the first
// failure. The source is only read here, after admission.
func (v *Validator) Validate(endpoint types.Endpoint, source types.InputSource) (*types.InferenceRequest, error) {
	req := &types.InferenceRequest{Endpoint: endpoint, ReceivedAt: v.now().UTC()}

	switch endpoint {
	case types.EndpointDeepfake, types.EndpointAIMedia:
		media, err := v.validateMedia(endpoint, source.Upload())
		if err != nil {
			return nil, err
		}
		req.Media = media
	case types.EndpointAIText:
		body, err := source.Body()
		if err != nil {
			return nil, types.WrapError(types.CodeBadJSON, err)
		}
		text, err := v.validateText(body)
		if err != nil {
			return nil, err
		}
		req.Text = text
	default:
		return nil, types.NewError(types.CodeProcessingError, "")
	}

	return req, nil
}

func (v *Validator) validateMedia(endpoint types.Endpoint, upload *types.Upload) (*types.MediaInput, error) {
	if upload == nil {
		return nil, types.NewError(types.CodeFileMissing, "")
	}
	if upload.Truncated || upload.Size > v.maxUploadBytes || int64(len(upload.Content)) > v.maxUploadBytes {
		return nil, types.NewError(types.CodeFileTooLarge, "")
	}

	mime := DetectMIME(upload.Content, upload.DeclaredMIME)
	allowed := AllowedTypes(endpoint)
	if !isAllowed(mime, allowed) {
		return nil, types.NewError(types.CodeFileUnsupported,
			"Unsupported file type. Supported types: "+strings.Join(allowed, ", "))
	}

	kind := types.MediaKindImage
	if strings.HasPrefix(mime, "video/") {
		kind = types.MediaKindVideo
	}

	return &types.MediaInput{
		Filename: upload.Filename,
		MimeType: mime,
		Kind:     kind,
		Content:  upload.Content,
	}, nil
}

// DetectMIME sniffs content. The declared type is trusted only when the
// content is unrecognisable.
func DetectMIME(content []byte, declared string) string {
	detected := mimetype.Detect(content)
	for _, candidate := range knownTypes {
		if detected.Is(candidate) {
			return candidate
		}
	}

	mime := baseType(detected.String())
	if mime == octetStream && declared != "" {
		return strings.ToLower(baseType(declared))
	}
	return mime
}

func baseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

func isAllowed(mime string, allowed []string) bool {
	for _, a := range allowed {
		if mime == a {
			return true
		}
	}
	return false
}

type textBody struct {
	Text      json.RawMessage `json:"text"`
	Highlight json.RawMessage `json:"highlight"`
}

func (v *Validator) validateText(body []byte) (*types.TextInput, error) {
	var parsed textBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, types.WrapError(types.CodeBadJSON, err)
	}

	if len(parsed.Text) == 0 || string(parsed.Text) == "null" {
		return nil, types.NewError(types.CodeTextMissing, "")
	}

	var text string
	if err := json.Unmarshal(parsed.Text, &text); err != nil {
		return nil, types.NewError(types.CodeBadJSON, "The 'text' field must be a string.")
	}
	if text == "" {
		return nil, types.NewError(types.CodeTextMissing, "")
	}

	if utf8.RuneCountInString(strings.TrimSpace(text)) < v.minTextLength {
		return nil, types.NewError(types.CodeTextTooShort,
			fmt.Sprintf("Text is too short for reliable analysis. Please provide at least %d characters.", v.minTextLength))
	}

	highlight := false
	if len(parsed.Highlight) > 0 && string(parsed.Highlight) != "null" {
		if err := json.Unmarshal(parsed.Highlight, &highlight); err != nil {
			return nil, types.NewError(types.CodeBadJSON, "The 'highlight' field must be a boolean.")
		}
	}

	return &types.TextInput{Text: text, Highlight: highlight}, nil
}
