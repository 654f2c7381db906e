package gateway

import (
	"context"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/db/models"
	"github.com/dmi-project/dmi-gateway/internal/services/fileuploader"
	"github.com/dmi-project/dmi-gateway/internal/services/ratelimit"
	"github.com/dmi-project/dmi-gateway/internal/services/usage"
	"github.com/dmi-project/dmi-gateway/internal/types"

	"go.uber.org/zap"
)

type KeyResolver interface {
	Resolve(ctx context.Context, header string, endpoint types.Endpoint) (*models.APIKey, error)
}

type QuotaLimiter interface {
	Admit(ctx context.Context, key *models.APIKey) (*ratelimit.Ticket, error)
	Release(ctx context.Context, ticket *ratelimit.Ticket) bool
	Remaining(key *models.APIKey) int
}

type RequestValidator interface {
	Validate(endpoint types.Endpoint, source types.InputSource) (*types.InferenceRequest, error)
}

type InferenceDispatcher interface {
	Dispatch(ctx context.Context, req *types.InferenceRequest) (*types.Envelope, error)
}

type UsageRecorder interface {
	Record(ctx context.Context, outcome *usage.Outcome) (*models.UsageEntry, error)
}

type Archiver interface {
	UploadBytes(content []byte, mimeType string, response chan<- fileuploader.Result)
}

// Quota is the rate-limit state reported back to a resolved key.
type Quota struct {
	Limit     int
	Remaining int
}

type Response struct {
	Envelope *types.Envelope
	// Quota is nil when the request never resolved to a key.
	Quota *Quota
}

func (r *Response) Status() int {
	return r.Envelope.HTTPStatus()
}

type Gateway struct {
	auth       KeyResolver
	limiter    QuotaLimiter
	validator  RequestValidator
	dispatcher InferenceDispatcher
	recorder   UsageRecorder
	archiver   Archiver
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Gateway)

// WithArchiver archives every accepted upload in the background.
func WithArchiver(archiver Archiver) Option {
	return func(g *Gateway) {
		g.archiver = archiver
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func New(auth KeyResolver, limiter QuotaLimiter, validator RequestValidator, dispatcher InferenceDispatcher, recorder UsageRecorder, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		auth:       auth,
		limiter:    limiter,
		validator:  validator,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger.Named("gateway"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Serve runs one public API call through key resolution, quota admission,
// validation and inference, and records exactly one ledger entry for it
// whatever the outcome.
func (g *Gateway) Serve(ctx context.Context, call *types.Call) *Response {
	start := g.now()
	resp := &Response{}

	key, envelope := g.serve(ctx, call, resp)
	resp.Envelope = envelope

	// the ledger entry is written even if the caller went away
	_, err := g.recorder.Record(context.WithoutCancel(ctx), &usage.Outcome{
		Key:        key,
		Endpoint:   call.Endpoint,
		Method:     call.Method,
		Code:       envelope.Code,
		StatusCode: envelope.HTTPStatus(),
		Duration:   g.now().Sub(start),
		ClientIP:   call.ClientIP,
		UserAgent:  call.UserAgent,
	})
	if err != nil {
		g.logger.Error("request served without ledger entry", zap.String("endpoint", string(call.Endpoint)), zap.Error(err))
	}

	return resp
}

func (g *Gateway) serve(ctx context.Context, call *types.Call, resp *Response) (*models.APIKey, *types.Envelope) {
	key, err := g.auth.Resolve(ctx, call.APIKey, call.Endpoint)
	if err != nil {
		return key, types.NewErrorEnvelope(err)
	}

	ticket, err := g.limiter.Admit(ctx, key)
	resp.Quota = &Quota{Limit: key.DailyLimit, Remaining: g.limiter.Remaining(key)}
	if err != nil {
		if types.CodeOf(err) == types.CodeRateExceeded {
			resp.Quota.Remaining = 0
		}
		return key, types.NewErrorEnvelope(err)
	}

	req, err := g.validator.Validate(call.Endpoint, call.Input)
	if err != nil {
		// the body may have been read from a client that has since gone away
		if g.limiter.Release(context.WithoutCancel(ctx), ticket) {
			resp.Quota.Remaining++
		}
		return key, types.NewErrorEnvelope(err)
	}
	req.KeyID = key.ID

	if g.archiver != nil && req.Media != nil {
		g.archiver.UploadBytes(req.Media.Content, req.Media.MimeType, nil)
	}

	envelope, err := g.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return key, types.NewErrorEnvelope(err)
	}

	return key, envelope
}
