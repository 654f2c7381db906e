package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/db/dbtest"
	"github.com/dmi-project/dmi-gateway/internal/db/models"
	"github.com/dmi-project/dmi-gateway/internal/db/repository"
	"github.com/dmi-project/dmi-gateway/internal/services/authgate"
	"github.com/dmi-project/dmi-gateway/internal/services/fileuploader"
	"github.com/dmi-project/dmi-gateway/internal/services/inference"
	"github.com/dmi-project/dmi-gateway/internal/services/ratelimit"
	"github.com/dmi-project/dmi-gateway/internal/services/usage"
	"github.com/dmi-project/dmi-gateway/internal/services/validator"
	"github.com/dmi-project/dmi-gateway/internal/types"
	"github.com/dmi-project/dmi-gateway/internal/utils/hashutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var longText = "This paragraph is comfortably longer than fifty characters in total."

type fakeDetector struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *fakeDetector) called() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDetector) hit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.err
}

func (d *fakeDetector) DetectDeepfake(ctx context.Context, media *types.MediaInput) (*inference.DeepfakeOutput, error) {
	if err := d.hit(); err != nil {
		return nil, err
	}
	return &inference.DeepfakeOutput{FacesDetected: true, Statistics: inference.DeepfakeStatistics{TotalFrames: 1}}, nil
}

func (d *fakeDetector) DetectAIMedia(ctx context.Context, media *types.MediaInput) (*inference.AIMediaOutput, error) {
	if err := d.hit(); err != nil {
		return nil, err
	}
	return &inference.AIMediaOutput{Prediction: "real", FakeProbability: 0.3, RealProbability: 0.7}, nil
}

func (d *fakeDetector) DetectAIText(ctx context.Context, text *types.TextInput) (*inference.AITextOutput, error) {
	if err := d.hit(); err != nil {
		return nil, err
	}
	return &inference.AITextOutput{Prediction: "Human", Confidence: map[string]float64{"Human": 0.9}}, nil
}

type countingSource struct {
	upload *types.Upload
	body   []byte
	mu     sync.Mutex
	reads  int
}

func (s *countingSource) Upload() *types.Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.upload
}

func (s *countingSource) Body() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.body, nil
}

// abandonedSource simulates a client that disconnects while its body is read.
type abandonedSource struct {
	cancel context.CancelFunc
}

func (s *abandonedSource) Upload() *types.Upload {
	s.cancel()
	return nil
}

func (s *abandonedSource) Body() ([]byte, error) {
	s.cancel()
	return nil, io.ErrUnexpectedEOF
}

type archiverFunc func(content []byte, mimeType string)

func (f archiverFunc) UploadBytes(content []byte, mimeType string, _ chan<- fileuploader.Result) {
	f(content, mimeType)
}

type harness struct {
	gateway  *Gateway
	keys     repository.IAPIKeyRepository
	usage    repository.IUsageRepository
	detector *fakeDetector
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	db := dbtest.New(t)
	logger := zap.NewNop()
	keys := repository.NewAPIKeyRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	detector := &fakeDetector{}

	g := New(
		authgate.NewGate(keys, logger),
		ratelimit.NewLimiter(keys, logger),
		validator.NewValidator(1<<20, 50),
		inference.NewDispatcher(detector, time.Second, logger),
		usage.NewRecorder(db, keys, usageRepo, nil, "", logger),
		logger,
		opts...,
	)

	return &harness{gateway: g, keys: keys, usage: usageRepo, detector: detector}
}

func (h *harness) key(t *testing.T, secret string, limit int, edit func(*models.APIKey)) *models.APIKey {
	t.Helper()

	key := models.NewAPIKey("owner", "k", hashutil.Sha3256Hash([]byte(secret)), "mask", limit)
	if edit != nil {
		edit(key)
	}
	created, err := h.keys.Create(context.Background(), key)
	require.NoError(t, err)
	return created
}

func (h *harness) stored(t *testing.T, id uuid.UUID) *models.APIKey {
	t.Helper()

	key, err := h.keys.GetByID(context.Background(), id)
	require.NoError(t, err)
	return key
}

func (h *harness) entries(t *testing.T, id uuid.UUID) []models.UsageEntry {
	t.Helper()

	entries, err := h.usage.ListByKey(context.Background(), id, 0)
	require.NoError(t, err)
	return entries
}

func textCall(secret, body string) *types.Call {
	return &types.Call{
		Endpoint: types.EndpointAIText,
		APIKey:   secret,
		Method:   "POST",
		ClientIP: "127.0.0.1",
		Input:    &countingSource{body: []byte(body)},
	}
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16)), nil))
	return buf.Bytes()
}

func TestServeSuccess(t *testing.T) {
	h := newHarness(t)
	key := h.key(t, "dmi_ok", 10, nil)

	resp := h.gateway.Serve(context.Background(), textCall("dmi_ok", `{"text": "`+longText+`"}`))

	assert.Equal(t, 200, resp.Status())
	assert.True(t, resp.Envelope.Success)
	assert.Equal(t, types.CodeSuccess, resp.Envelope.Code)
	require.NotNil(t, resp.Quota)
	assert.Equal(t, Quota{Limit: 10, Remaining: 9}, *resp.Quota)

	stored := h.stored(t, key.ID)
	assert.Equal(t, 1, stored.DailyUsage)
	assert.False(t, stored.LastUsedAt.IsZero())

	entries := h.entries(t, key.ID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, 200, entries[0].StatusCode)
}

func TestServeMissingKeyReadsNothing(t *testing.T) {
	h := newHarness(t)
	call := textCall("", `{"text": "`+longText+`"}`)

	resp := h.gateway.Serve(context.Background(), call)

	assert.Equal(t, 403, resp.Status())
	assert.Equal(t, types.CodeAuthMissing, resp.Envelope.Code)
	assert.Nil(t, resp.Quota)
	assert.Zero(t, call.Input.(*countingSource).reads)
	assert.Zero(t, h.detector.called())
}

func TestServeForbiddenCapability(t *testing.T) {
	h := newHarness(t)
	key := h.key(t, "dmi_notext", 10, func(k *models.APIKey) { k.CanUseAITextDetection = false })

	resp := h.gateway.Serve(context.Background(), textCall("dmi_notext", `{"text": "`+longText+`"}`))

	assert.Equal(t, 403, resp.Status())
	assert.Equal(t, types.CodeAuthForbidden, resp.Envelope.Code)
	assert.Equal(t, 0, h.stored(t, key.ID).DailyUsage)

	entries := h.entries(t, key.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "AUT_FORBIDDEN", entries[0].Code)
}

func TestServeValidationFailureRefundsQuota(t *testing.T) {
	h := newHarness(t)
	key := h.key(t, "dmi_short", 1, nil)

	resp := h.gateway.Serve(context.Background(), textCall("dmi_short", `{"text": "short"}`))
	assert.Equal(t, 400, resp.Status())
	assert.Equal(t, types.CodeTextTooShort, resp.Envelope.Code)
	assert.Equal(t, 1, resp.Quota.Remaining)
	assert.Equal(t, 0, h.stored(t, key.ID).DailyUsage)

	// the single unit of quota is still available
	resp = h.gateway.Serve(context.Background(), textCall("dmi_short", `{"text": "`+longText+`"}`))
	assert.Equal(t, types.CodeSuccess, resp.Envelope.Code)

	assert.Len(t, h.entries(t, key.ID), 2)
}

func TestServeRefundsQuotaAfterClientDisconnect(t *testing.T) {
	h := newHarness(t)
	key := h.key(t, "dmi_gone", 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := h.gateway.Serve(ctx, &types.Call{
		Endpoint: types.EndpointAIText,
		APIKey:   "dmi_gone",
		Method:   "POST",
		Input:    &abandonedSource{cancel: cancel},
	})

	assert.Equal(t, 400, resp.Status())
	assert.Equal(t, types.CodeBadJSON, resp.Envelope.Code)
	assert.Equal(t, 1, resp.Quota.Remaining)
	assert.Equal(t, 0, h.stored(t, key.ID).DailyUsage)
	assert.Len(t, h.entries(t, key.ID), 1)
}

func TestServeRateExceeded(t *testing.T) {
	h := newHarness(t)
	key := h.key(t, "dmi_one", 1, nil)
	body := `{"text": "` + longText + `"}`

	require.Equal(t, types.CodeSuccess, h.gateway.Serve(context.Background(), textCall("dmi_one", body)).Envelope.Code)

	call := textCall("dmi_one", body)
	resp := h.gateway.Serve(context.Background(), call)
	assert.Equal(t, 403, resp.Status())
	assert.Equal(t, types.CodeRateExceeded, resp.Envelope.Code)
	assert.Equal(t, 0, resp.Quota.Remaining)
	assert.Zero(t, call.Input.(*countingSource).reads)

	assert.Equal(t, 1, h.stored(t, key.ID).DailyUsage)
	assert.Equal(t, 1, h.detector.called())
	assert.Len(t, h.entries(t, key.ID), 2)
}

func TestServeProcessingErrorKeepsCharge(t *testing.T) {
	h := newHarness(t)
	h.detector.err = errors.New("model crashed: secret stack")
	key := h.key(t, "dmi_err", 5, nil)

	resp := h.gateway.Serve(context.Background(), textCall("dmi_err", `{"text": "`+longText+`"}`))

	assert.Equal(t, 500, resp.Status())
	assert.Equal(t, types.CodeProcessingError, resp.Envelope.Code)
	assert.NotContains(t, resp.Envelope.Message, "secret stack")
	assert.Equal(t, 1, h.stored(t, key.ID).DailyUsage)

	stored := h.stored(t, key.ID)
	assert.True(t, stored.LastUsedAt.IsZero())
}

func TestServeMediaArchivesUpload(t *testing.T) {
	var (
		mu       sync.Mutex
		archived []string
	)
	h := newHarness(t, WithArchiver(archiverFunc(func(content []byte, mimeType string) {
		mu.Lock()
		defer mu.Unlock()
		archived = append(archived, mimeType)
	})))
	h.key(t, "dmi_media", 5, nil)
	img := jpegBytes(t)

	resp := h.gateway.Serve(context.Background(), &types.Call{
		Endpoint: types.EndpointAIMedia,
		APIKey:   "dmi_media",
		Method:   "POST",
		Input:    &countingSource{upload: &types.Upload{Filename: "a.jpg", Size: int64(len(img)), Content: img}},
	})

	require.Equal(t, types.CodeSuccess, resp.Envelope.Code)
	result := resp.Envelope.Result.(*types.AIMediaResult)
	assert.InDelta(t, 1.0, result.ConfidenceScores.AIGenerated+result.ConfidenceScores.Real, 1e-9)
	assert.Equal(t, 16, resp.Envelope.Metadata.Width)
	assert.Equal(t, []string{"image/jpeg"}, archived)
}

func TestServeOversizedUpload(t *testing.T) {
	h := newHarness(t)
	key := h.key(t, "dmi_big", 5, nil)

	resp := h.gateway.Serve(context.Background(), &types.Call{
		Endpoint: types.EndpointDeepfake,
		APIKey:   "dmi_big",
		Method:   "POST",
		Input:    &countingSource{upload: &types.Upload{Filename: "big.mp4", Size: 30 << 20, Truncated: true}},
	})

	assert.Equal(t, 400, resp.Status())
	assert.Equal(t, types.CodeFileTooLarge, resp.Envelope.Code)
	assert.Equal(t, 0, h.stored(t, key.ID).DailyUsage)
	assert.Zero(t, h.detector.called())
}

func TestServeConcurrentCallsRespectLimit(t *testing.T) {
	h := newHarness(t)
	const limit, callers = 4, 12
	key := h.key(t, "dmi_busy", limit, nil)
	body := `{"text": "` + longText + `"}`

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[types.Code]int{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := h.gateway.Serve(context.Background(), textCall("dmi_busy", body))

			mu.Lock()
			defer mu.Unlock()
			codes[resp.Envelope.Code]++
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, codes[types.CodeSuccess])
	assert.Equal(t, callers-limit, codes[types.CodeRateExceeded])
	assert.Equal(t, limit, h.stored(t, key.ID).DailyUsage)
	assert.Equal(t, limit, h.detector.called())
	assert.Len(t, h.entries(t, key.ID), callers)
}
