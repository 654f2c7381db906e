package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	TaskDeepfake = "deepfake_detection"
	TaskAIMedia  = "ai_media_detection"
	TaskAIText   = "ai_text_detection"
)

// FrameExchanger sends one request frame and returns the reply frame.
// *tcpclient.TCPClient satisfies it.
type FrameExchanger interface {
	Exchange(ctx context.Context, payload []byte) ([]byte, error)
}

// TaskRequest is the msgpack body sent to the inference worker.
type TaskRequest struct {
	Task      string `msgpack:"task"`
	Filename  string `msgpack:"filename,omitempty"`
	MimeType  string `msgpack:"mime_type,omitempty"`
	Content   []byte `msgpack:"content,omitempty"`
	Text      string `msgpack:"text,omitempty"`
	Highlight bool   `msgpack:"highlight,omitempty"`
}

// TaskResponse carries either an error or the task's raw output.
type TaskResponse struct {
	Error  string             `msgpack:"error,omitempty"`
	Result msgpack.RawMessage `msgpack:"result,omitempty"`
}

type TCPDetector struct {
	client FrameExchanger
}

func NewTCPDetector(client FrameExchanger) *TCPDetector {
	return &TCPDetector{client: client}
}

func (d *TCPDetector) DetectDeepfake(ctx context.Context, media *types.MediaInput) (*DeepfakeOutput, error) {
	var out DeepfakeOutput
	if err := d.call(ctx, mediaTask(TaskDeepfake, media), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *TCPDetector) DetectAIMedia(ctx context.Context, media *types.MediaInput) (*AIMediaOutput, error) {
	var out AIMediaOutput
	if err := d.call(ctx, mediaTask(TaskAIMedia, media), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *TCPDetector) DetectAIText(ctx context.Context, text *types.TextInput) (*AITextOutput, error) {
	var out AITextOutput
	req := &TaskRequest{Task: TaskAIText, Text: text.Text, Highlight: text.Highlight}
	if err := d.call(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func mediaTask(task string, media *types.MediaInput) *TaskRequest {
	return &TaskRequest{
		Task:     task,
		Filename: media.Filename,
		MimeType: media.MimeType,
		Content:  media.Content,
	}
}

func (d *TCPDetector) call(ctx context.Context, req *TaskRequest, out any) error {
	payload, err := msgpack.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", req.Task, err)
	}

	reply, err := d.client.Exchange(ctx, payload)
	if err != nil {
		return fmt.Errorf("%s exchange failed: %w", req.Task, err)
	}

	var resp TaskResponse
	if err := msgpack.Unmarshal(reply, &resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.Task, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%s failed: %w", req.Task, errors.New(resp.Error))
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("%s returned no result", req.Task)
	}

	if err := msgpack.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", req.Task, err)
	}
	return nil
}
