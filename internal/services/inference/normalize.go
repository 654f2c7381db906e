package inference

import (
	"errors"

	"github.com/dmi-project/dmi-gateway/internal/types"
)

var errMissingHumanScore = errors.New("text detector returned no Human score")

func NormalizeDeepfake(media *types.MediaInput, out *DeepfakeOutput) *types.Envelope {
	meta := ExtractMetadata(media)
	meta.Duration = out.Duration
	meta.Codec = out.Codec

	if !out.FacesDetected {
		zero := 0
		return types.NewSuccessEnvelope(types.CodeMediaContainsNoFaces, &types.DeepfakeResult{
			IsDeepfake:      false,
			ConfidenceScore: 0,
			FileType:        string(media.Kind),
			FramesAnalyzed:  &zero,
			FakeFrames:      &zero,
		}, meta)
	}

	stats := out.Statistics
	return types.NewSuccessEnvelope(types.CodeSuccess, &types.DeepfakeResult{
		IsDeepfake:           stats.IsDeepfake,
		ConfidenceScore:      stats.Confidence,
		FileType:             string(media.Kind),
		FramesAnalyzed:       &stats.TotalFrames,
		FakeFrames:           &stats.FakeFrames,
		FakeFramesPercentage: &stats.FakeFramesPercentage,
	}, meta)
}

func NormalizeAIMedia(media *types.MediaInput, out *AIMediaOutput) *types.Envelope {
	return types.NewSuccessEnvelope(types.CodeSuccess, &types.AIMediaResult{
		IsAIGenerated: out.Prediction == "fake",
		Prediction:    out.Prediction,
		ConfidenceScores: types.AIMediaScores{
			AIGenerated: out.FakeProbability,
			Real:        out.RealProbability,
		},
	}, ExtractMetadata(media))
}

func NormalizeAIText(text *types.TextInput, out *AITextOutput) (*types.Envelope, error) {
	human, ok := out.Confidence["Human"]
	if !ok {
		return nil, errMissingHumanScore
	}
	human = clamp(human)

	ai, ok := out.Confidence["AI"]
	if !ok {
		ai = 1 - human
	}

	result := &types.AITextResult{
		IsAIGenerated:    out.Prediction != "Human",
		SourcePrediction: out.Prediction,
		ConfidenceScores: types.AITextScores{Human: human, AI: clamp(ai)},
	}
	if text.Highlight && out.HighlightedText != "" {
		highlighted := out.HighlightedText
		result.HighlightedText = &highlighted
	}

	return types.NewSuccessEnvelope(types.CodeSuccess, result, nil), nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
