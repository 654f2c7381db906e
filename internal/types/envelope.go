package types

import "errors"

// Envelope is the body of every public API response.
type Envelope struct {
	Success  bool           `json:"success"`
	Code     Code           `json:"code"`
	Result   any            `json:"result,omitempty"`
	Metadata *MediaMetadata `json:"metadata,omitempty"`
	Message  string         `json:"message,omitempty"`
}

func (e *Envelope) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

func NewSuccessEnvelope(code Code, result any, metadata *MediaMetadata) *Envelope {
	return &Envelope{Success: true, Code: code, Result: result, Metadata: metadata}
}

// NewErrorEnvelope renders err for a caller. Uncoded errors and processing
// errors only ever expose the generic message.
func NewErrorEnvelope(err error) *Envelope {
	code := CodeOf(err)
	message := code.Message()

	var gwErr *Error
	if code != CodeProcessingError && errors.As(err, &gwErr) && gwErr.Message != "" {
		message = gwErr.Message
	}

	return &Envelope{Success: false, Code: code, Message: message}
}

type DeepfakeResult struct {
	IsDeepfake           bool     `json:"is_deepfake"`
	ConfidenceScore      float64  `json:"confidence_score"`
	FileType             string   `json:"file_type"`
	FramesAnalyzed       *int     `json:"frames_analyzed,omitempty"`
	FakeFrames           *int     `json:"fake_frames,omitempty"`
	FakeFramesPercentage *float64 `json:"fake_frames_percentage,omitempty"`
}

type AIMediaScores struct {
	AIGenerated float64 `json:"ai_generated"`
	Real        float64 `json:"real"`
}

type AIMediaResult struct {
	IsAIGenerated    bool          `json:"is_ai_generated"`
	Prediction       string        `json:"prediction"`
	ConfidenceScores AIMediaScores `json:"confidence_scores"`
}

type AITextScores struct {
	Human float64 `json:"Human"`
	AI    float64 `json:"AI"`
}

type AITextResult struct {
	IsAIGenerated    bool         `json:"is_ai_generated"`
	SourcePrediction string       `json:"source_prediction"`
	ConfidenceScores AITextScores `json:"confidence_scores"`
	HighlightedText  *string      `json:"highlighted_text,omitempty"`
}

type MediaMetadata struct {
	MimeType string   `json:"mime_type"`
	Size     int64    `json:"size"`
	Format   string   `json:"format"`
	Width    int      `json:"width,omitempty"`
	Height   int      `json:"height,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Codec    string   `json:"codec,omitempty"`
}
