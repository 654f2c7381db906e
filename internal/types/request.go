package types

import (
	"time"

	"github.com/google/uuid"
)

// Endpoint identifies one of the public inference endpoints.
type Endpoint string

const (
	EndpointDeepfake Endpoint = "deepfake_detection"
	EndpointAIText   Endpoint = "ai_text_detection"
	EndpointAIMedia  Endpoint = "ai_media_detection"
)

func (e Endpoint) IsMedia() bool {
	return e == EndpointDeepfake || e == EndpointAIMedia
}

func (e Endpoint) Valid() bool {
	switch e {
	case EndpointDeepfake, EndpointAIText, EndpointAIMedia:
		return true
	}
	return false
}

// MediaKind is the broad class of an uploaded file.
type MediaKind string

const (
	MediaKindImage MediaKind = "Image"
	MediaKindVideo MediaKind = "Video"
)

// Upload is the multipart "file" part as received. Truncated is set when the
// request body hit the transport cap before the part could be read.
type Upload struct {
	Filename     string
	DeclaredMIME string
	Size         int64
	Content      []byte
	Truncated    bool
}

// InputSource gives the validator lazy access to the payload so nothing is
// read before the key and quota checks pass.
type InputSource interface {
	// Upload returns nil when no file part was sent.
	Upload() *Upload
	Body() ([]byte, error)
}

// Call is one inbound request to a public endpoint.
type Call struct {
	Endpoint  Endpoint
	APIKey    string
	Method    string
	ClientIP  string
	UserAgent string
	Input     InputSource
}

type MediaInput struct {
	Filename string
	MimeType string
	Kind     MediaKind
	Content  []byte
}

type TextInput struct {
	Text      string
	Highlight bool
}

// InferenceRequest is a validated call ready for dispatch.
type InferenceRequest struct {
	Endpoint   Endpoint
	KeyID      uuid.UUID
	Media      *MediaInput
	Text       *TextInput
	ReceivedAt time.Time
}
