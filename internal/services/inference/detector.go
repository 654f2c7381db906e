package inference

import (
	"context"

	"github.com/dmi-project/dmi-gateway/internal/types"
)

// Detector is the model-serving collaborator. Implementations return the
// raw pipeline outputs; normalization happens in the Dispatcher.
type Detector interface {
	DetectDeepfake(ctx context.Context, media *types.MediaInput) (*DeepfakeOutput, error)
	DetectAIMedia(ctx context.Context, media *types.MediaInput) (*AIMediaOutput, error)
	DetectAIText(ctx context.Context, text *types.TextInput) (*AITextOutput, error)
}

type DeepfakeStatistics struct {
	IsDeepfake           bool    `json:"is_deepfake" msgpack:"is_deepfake"`
	Confidence           float64 `json:"confidence" msgpack:"confidence"`
	TotalFrames          int     `json:"total_frames" msgpack:"total_frames"`
	FakeFrames           int     `json:"fake_frames" msgpack:"fake_frames"`
	FakeFramesPercentage float64 `json:"fake_frames_percentage" msgpack:"fake_frames_percentage"`
}

type DeepfakeOutput struct {
	FacesDetected bool               `json:"faces_detected" msgpack:"faces_detected"`
	Statistics    DeepfakeStatistics `json:"statistics" msgpack:"statistics"`
	Duration      *float64           `json:"duration,omitempty" msgpack:"duration,omitempty"`
	Codec         string             `json:"codec,omitempty" msgpack:"codec,omitempty"`
}

type AIMediaOutput struct {
	Prediction      string  `json:"prediction" msgpack:"prediction"`
	FakeProbability float64 `json:"fake_probability" msgpack:"fake_probability"`
	RealProbability float64 `json:"real_probability" msgpack:"real_probability"`
}

type AITextOutput struct {
	Prediction      string             `json:"prediction" msgpack:"prediction"`
	Confidence      map[string]float64 `json:"confidence" msgpack:"confidence"`
	HighlightedText string             `json:"highlighted_text,omitempty" msgpack:"highlighted_text,omitempty"`
}
