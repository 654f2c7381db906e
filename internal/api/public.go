package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left for boundaries and part headers on top
// of the file size limit.
const multipartOverhead = 1 << 20

func DeepfakeDetection(c *gin.Context) {
	serve(c, types.EndpointDeepfake)
}

func AITextDetection(c *gin.Context) {
	serve(c, types.EndpointAIText)
}

func AIMediaDetection(c *gin.Context) {
	serve(c, types.EndpointAIMedia)
}

func serve(c *gin.Context, endpoint types.Endpoint) {
	app := getApp(c)
	cfg := app.Config().Gateway

	call := &types.Call{
		Endpoint:  endpoint,
		APIKey:    c.GetHeader(HeaderAPIKey),
		Method:    c.Request.Method,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Input: &requestSource{
			c:              c,
			maxUploadBytes: cfg.MaxUploadBytes,
			maxTextBytes:   cfg.MaxTextBytes,
		},
	}

	resp := app.Gateway.Serve(c.Request.Context(), call)
	if resp.Quota != nil {
		setQuotaHeaders(c, resp.Quota.Limit, resp.Quota.Remaining)
	}
	c.JSON(resp.Status(), resp.Envelope)
}

// requestSource reads the request body only when the validator asks for it.
type requestSource struct {
	c              *gin.Context
	maxUploadBytes int64
	maxTextBytes   int64
}

func (s *requestSource) Upload() *types.Upload {
	req := s.c.Request
	limit := s.maxUploadBytes + multipartOverhead
	if req.ContentLength > limit {
		return &types.Upload{Size: req.ContentLength, Truncated: true}
	}
	req.Body = http.MaxBytesReader(s.c.Writer, req.Body, limit)

	header, err := s.c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			return &types.Upload{Truncated: true}
		}
		return nil
	}

	upload := &types.Upload{
		Filename:     header.Filename,
		DeclaredMIME: header.Header.Get("Content-Type"),
		Size:         header.Size,
	}
	if header.Size > s.maxUploadBytes {
		return upload
	}

	file, err := header.Open()
	if err != nil {
		return nil
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		return nil
	}
	upload.Content = content
	upload.Size = int64(len(content))
	return upload
}

func (s *requestSource) Body() ([]byte, error) {
	body := http.MaxBytesReader(s.c.Writer, s.c.Request.Body, s.maxTextBytes)
	return io.ReadAll(body)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// mime/multipart does not always wrap the reader error
	return strings.Contains(err.Error(), "request body too large")
}
