package usage

import (
	"context"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/db/models"
	"github.com/dmi-project/dmi-gateway/internal/db/repository"
	"github.com/dmi-project/dmi-gateway/internal/mq"
	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Outcome is everything known about a finished request.
type Outcome struct {
	Key        *models.APIKey
	Endpoint   types.Endpoint
	Method     string
	Code       types.Code
	StatusCode int
	Duration   time.Duration
	ClientIP   string
	UserAgent  string
}

// Event is the msgpack payload published for every ledger entry.
type Event struct {
	ID             string `msgpack:"id"`
	KeyID          string `msgpack:"key_id,omitempty"`
	Endpoint       string `msgpack:"endpoint"`
	Method         string `msgpack:"method"`
	Code           string `msgpack:"code"`
	Success        bool   `msgpack:"success"`
	StatusCode     int    `msgpack:"status_code"`
	ResponseTimeMs int64  `msgpack:"response_time_ms"`
	IPAddress      string `msgpack:"ip_address,omitempty"`
	CreatedAt      int64  `msgpack:"created_at"`
}

func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := msgpack.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

type Recorder struct {
	db     *bun.DB
	keys   repository.IAPIKeyRepository
	usage  repository.IUsageRepository
	queue  mq.MQ
	topic  string
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder builds a recorder. queue may be nil, in which case no events
// are published.
func NewRecorder(db *bun.DB, keys repository.IAPIKeyRepository, usage repository.IUsageRepository, queue mq.MQ, topic string, logger *zap.Logger) *Recorder {
	return &Recorder{
		db:     db,
		keys:   keys,
		usage:  usage,
		queue:  queue,
		topic:  topic,
		logger: logger.Named("usage"),
		now:    time.Now,
	}
}

func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends the ledger entry for one request and, for successful
// requests, stamps the key's last use. Failures are logged and returned but
// must not change the caller's response.
func (r *Recorder) Record(ctx context.Context, outcome *Outcome) (*models.UsageEntry, error) {
	now := r.now().UTC()
	entry := &models.UsageEntry{
		ID:             uuid.Must(uuid.NewRandom()),
		Endpoint:       string(outcome.Endpoint),
		Method:         outcome.Method,
		Code:           string(outcome.Code),
		Success:        outcome.Code.IsSuccess(),
		StatusCode:     outcome.StatusCode,
		ResponseTimeMs: outcome.Duration.Milliseconds(),
		IPAddress:      outcome.ClientIP,
		UserAgent:      outcome.UserAgent,
		CreatedAt:      now,
	}
	if outcome.Key != nil {
		entry.APIKeyID = uuid.NullUUID{UUID: outcome.Key.ID, Valid: true}
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.usage.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}
		if entry.Success && outcome.Key != nil {
			return r.keys.WithTx(tx).Touch(ctx, outcome.Key.ID, now)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to record usage",
			zap.String("endpoint", entry.Endpoint),
			zap.String("code", entry.Code),
			zap.Error(err),
		)
		return nil, err
	}

	r.publish(ctx, entry)
	return entry, nil
}

func (r *Recorder) publish(ctx context.Context, entry *models.UsageEntry) {
	if r.queue == nil || r.topic == "" {
		return
	}

	event := Event{
		ID:             entry.ID.String(),
		Endpoint:       entry.Endpoint,
		Method:         entry.Method,
		Code:           entry.Code,
		Success:        entry.Success,
		StatusCode:     entry.StatusCode,
		ResponseTimeMs: entry.ResponseTimeMs,
		IPAddress:      entry.IPAddress,
		CreatedAt:      entry.CreatedAt.UnixMilli(),
	}
	if entry.APIKeyID.Valid {
		event.KeyID = entry.APIKeyID.UUID.String()
	}

	data, err := msgpack.Marshal(&event)
	if err != nil {
		r.logger.Warn("failed to encode usage event", zap.Error(err))
		return
	}

	if err := r.queue.Publish(ctx, r.topic, data); err != nil {
		r.logger.Warn("failed to publish usage event", zap.String("topic", r.topic), zap.Error(err))
	}
}
