package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsageEntry is one row of the append-only request ledger. APIKeyID is null
// when the request never resolved to a key.
type UsageEntry struct {
	bun.BaseModel `bun:"table:usage_entries,alias:u"`

	ID             uuid.UUID     `bun:",type:uuid,pk"`
	APIKeyID       uuid.NullUUID `bun:"api_key_id,type:uuid"`
	Endpoint       string        `bun:",notnull"`
	Method         string        `bun:",notnull"`
	Code           string        `bun:",notnull"`
	Success        bool          `bun:",notnull"`
	StatusCode     int           `bun:",notnull"`
	ResponseTimeMs int64         `bun:"response_time_ms,notnull"`
	IPAddress      string        `bun:"ip_address"`
	UserAgent      string        `bun:",type:text"`
	CreatedAt      time.Time     `bun:",notnull"`
}
