package config

import (
	"errors"
	"time"
)

const (
	FilesystemNone  = "none"
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
	DriverPG     = "pg"
)

const (
	TransportHTTP = "http"
	TransportTCP  = "tcp"
)

const (
	DefaultPort             = 8000
	DefaultHost             = "0.0.0.0"
	DefaultEnvironment      = "dev"
	DefaultMaxUploadBytes   = 25 << 20
	DefaultMaxTextBytes     = 1 << 20
	DefaultMinTextLength    = 50
	DefaultDailyLimit       = 1000
	DefaultInferenceTimeout = 120 * time.Second
	DefaultTCPPoolSize      = 4
	DefaultStorageWorkers   = 4
	DefaultUsageTopic       = "dmi/public-api/usage"
	DefaultInferenceBaseURL = "http://127.0.0.1:8881"
	DefaultInferenceTCPAddr = "127.0.0.1:8882"
	DefaultDatabaseDSN      = "file:dmi.db?cache=shared"
	DefaultAssetsDir        = "./data/uploads"
	DefaultS3Folder         = "api_uploads"
	DefaultConfigFileName   = "config.yaml"
	DefaultEnvFileName      = ".env"
)

var (
	ErrConfigNotLoaded     = errors.New("config not loaded")
	ErrInvalidDriver       = errors.New("invalid database driver")
	ErrInvalidTransport    = errors.New("invalid inference transport")
	ErrInvalidFilesystem   = errors.New("invalid filesystem type")
	ErrInvalidUploadLimit  = errors.New("gateway.max_upload_bytes must be positive")
	ErrInvalidDefaultLimit = errors.New("gateway.default_daily_limit must be positive")
)
