package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/types"

	"go.uber.org/zap"
)

var errEmptyOutput = errors.New("detector returned no output")

type Dispatcher struct {
	detector Detector
	timeout  time.Duration
	logger   *zap.Logger
}

func NewDispatcher(detector Detector, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		detector: detector,
		timeout:  timeout,
		logger:   logger.Named("inference"),
	}
}

type dispatchResult struct {
	envelope *types.Envelope
	err      error
}

// Dispatch runs the detector for req and normalizes its output. The wait is
// bounded by the dispatcher timeout even if the detector ignores ctx. Every
// failure surfaces as SYS_PROCESSING_ERROR.
func (d *Dispatcher) Dispatch(ctx context.Context, req *types.InferenceRequest) (*types.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan dispatchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- dispatchResult{err: fmt.Errorf("detector panicked: %v", r)}
			}
		}()

		envelope, err := d.run(ctx, req)
		done <- dispatchResult{envelope: envelope, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			d.logger.Error("inference failed", zap.String("endpoint", string(req.Endpoint)), zap.Error(res.err))
			return nil, types.WrapError(types.CodeProcessingError, res.err)
		}
		return res.envelope, nil
	case <-ctx.Done():
		d.logger.Error("inference timed out", zap.String("endpoint", string(req.Endpoint)), zap.Duration("timeout", d.timeout))
		return nil, types.WrapError(types.CodeProcessingError, ctx.Err())
	}
}

func (d *Dispatcher) run(ctx context.Context, req *types.InferenceRequest) (*types.Envelope, error) {
	switch req.Endpoint {
	case types.EndpointDeepfake:
		if req.Media == nil {
			return nil, errors.New("deepfake request without media")
		}
		out, err := d.detector.DetectDeepfake(ctx, req.Media)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errEmptyOutput
		}
		return NormalizeDeepfake(req.Media, out), nil

	case types.EndpointAIMedia:
		if req.Media == nil {
			return nil, errors.New("ai media request without media")
		}
		out, err := d.detector.DetectAIMedia(ctx, req.Media)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errEmptyOutput
		}
		return NormalizeAIMedia(req.Media, out), nil

	case types.EndpointAIText:
		if req.Text == nil {
			return nil, errors.New("ai text request without text")
		}
		out, err := d.detector.DetectAIText(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errEmptyOutput
		}
		return NormalizeAIText(req.Text, out)
	}

	return nil, fmt.Errorf("unknown endpoint %q", req.Endpoint)
}
