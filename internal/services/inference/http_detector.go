package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/dmi-project/dmi-gateway/internal/types"
)

const maxErrorBody = 4 << 10

// HTTPDetector calls an inference service exposing one POST route per
// pipeline. Media goes up as multipart "file", text as JSON.
type HTTPDetector struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDetector(baseURL string, client *http.Client) *HTTPDetector {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDetector{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (d *HTTPDetector) DetectDeepfake(ctx context.Context, media *types.MediaInput) (*DeepfakeOutput, error) {
	var out DeepfakeOutput
	if err := d.postMedia(ctx, "/deepfake-detection", media, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDetector) DetectAIMedia(ctx context.Context, media *types.MediaInput) (*AIMediaOutput, error) {
	var out AIMediaOutput
	if err := d.postMedia(ctx, "/ai-media-detection", media, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDetector) DetectAIText(ctx context.Context, text *types.TextInput) (*AITextOutput, error) {
	body, err := json.Marshal(map[string]any{"text": text.Text, "highlight": text.Highlight})
	if err != nil {
		return nil, err
	}

	var out AITextOutput
	if err := d.do(ctx, "/ai-text-detection", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *HTTPDetector) postMedia(ctx context.Context, path string, media *types.MediaInput, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, media.Filename))
	header.Set("Content-Type", media.MimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(media.Content); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	return d.do(ctx, path, writer.FormDataContentType(), &buf, out)
}

func (d *HTTPDetector) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("inference service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode inference response: %w", err)
	}
	return nil
}
