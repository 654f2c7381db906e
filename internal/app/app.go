package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmi-project/dmi-gateway/internal/config"
	"github.com/dmi-project/dmi-gateway/internal/db"
	"github.com/dmi-project/dmi-gateway/internal/db/drivers"
	"github.com/dmi-project/dmi-gateway/internal/db/migrations"
	"github.com/dmi-project/dmi-gateway/internal/db/repository"
	"github.com/dmi-project/dmi-gateway/internal/gateway"
	"github.com/dmi-project/dmi-gateway/internal/mq"
	"github.com/dmi-project/dmi-gateway/internal/services/authgate"
	"github.com/dmi-project/dmi-gateway/internal/services/filestorage"
	"github.com/dmi-project/dmi-gateway/internal/services/fileuploader"
	"github.com/dmi-project/dmi-gateway/internal/services/inference"
	"github.com/dmi-project/dmi-gateway/internal/services/keys"
	"github.com/dmi-project/dmi-gateway/internal/services/ratelimit"
	"github.com/dmi-project/dmi-gateway/internal/services/usage"
	"github.com/dmi-project/dmi-gateway/internal/services/validator"
	"github.com/dmi-project/dmi-gateway/pkg/logger"
	"github.com/dmi-project/dmi-gateway/pkg/tcpclient"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var ErrDBNotInitialized = errors.New("database is not initialized")

type App struct {
	mq           mq.MQ
	db           *bun.DB
	driver       drivers.Driver
	config       *config.Config
	ctx          context.Context
	cancelFunc   context.CancelFunc
	fileuploader *fileuploader.Uploader
	tcpClient    *tcpclient.TCPClient
	detector     inference.Detector

	Logger *zap.Logger

	APIKeyRepository repository.IAPIKeyRepository
	UsageRepository  repository.IUsageRepository

	Gateway *gateway.Gateway
	Keys    *keys.Service
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

// WithDB uses an already opened database. The caller keeps ownership of it.
func WithDB(db *bun.DB) OptionFunc {
	return func(app *App) error {
		app.db = db
		app.initRepositories()
		return nil
	}
}

// WithDBInitialization opens the configured database. The app closes it.
func WithDBInitialization() OptionFunc {
	return func(app *App) error {
		driver, err := db.NewConnection(app.ctx, app.config)
		if err != nil {
			return err
		}

		app.driver = driver
		app.db = driver.GetDB()
		app.initRepositories()
		return nil
	}
}

func WithMigrations() OptionFunc {
	return func(app *App) error {
		if app.db == nil {
			return ErrDBNotInitialized
		}

		group, err := migrations.Apply(app.ctx, app.db)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		if !group.IsZero() {
			app.Logger.Info("database migrated", zap.String("group", group.String()))
		}
		return nil
	}
}

func WithMQ() OptionFunc {
	return func(app *App) error {
		queue, err := mq.NewMQ(app.config, app.Logger)
		if err != nil {
			return err
		}
		app.mq = queue
		return nil
	}
}

func WithFileUploader() OptionFunc {
	return func(app *App) error {
		storage, err := filestorage.NewFileStorage(app.ctx, app.config.Storage)
		if errors.Is(err, filestorage.ErrStorageDisabled) {
			return nil
		}
		if err != nil {
			return err
		}

		workers := app.config.Storage.Workers
		if workers <= 0 {
			workers = config.DefaultStorageWorkers
		}
		app.fileuploader = fileuploader.NewFileUploader(storage, workers, app.Logger)
		return nil
	}
}

// WithDetector overrides the configured inference transport.
func WithDetector(detector inference.Detector) OptionFunc {
	return func(app *App) error {
		app.detector = detector
		return nil
	}
}

// WithGateway assembles the public request pipeline. It needs the database
// and, when present, uses the MQ and the file uploader.
func WithGateway() OptionFunc {
	return func(app *App) error {
		if app.db == nil {
			return ErrDBNotInitialized
		}

		if app.detector == nil {
			detector, err := app.newDetector()
			if err != nil {
				return err
			}
			app.detector = detector
		}

		gw := app.config.Gateway
		topic := ""
		if app.config.Pulsar != nil {
			topic = app.config.Pulsar.UsageTopic
		}
		if topic == "" {
			topic = config.DefaultUsageTopic
		}

		opts := []gateway.Option{}
		if app.fileuploader != nil {
			opts = append(opts, gateway.WithArchiver(app.fileuploader))
		}

		app.Gateway = gateway.New(
			authgate.NewGate(app.APIKeyRepository, app.Logger),
			ratelimit.NewLimiter(app.APIKeyRepository, app.Logger),
			validator.NewValidator(gw.MaxUploadBytes, gw.MinTextLength),
			inference.NewDispatcher(app.detector, gw.InferenceTimeout, app.Logger),
			usage.NewRecorder(app.db, app.APIKeyRepository, app.UsageRepository, app.mq, topic, app.Logger),
			app.Logger,
			opts...,
		)
		return nil
	}
}

func (app *App) newDetector() (inference.Detector, error) {
	cfg := app.config.Inference

	switch cfg.Transport {
	case config.TransportTCP:
		address, poolSize := config.DefaultInferenceTCPAddr, config.DefaultTCPPoolSize
		if cfg.TCP != nil {
			if cfg.TCP.Address != "" {
				address = cfg.TCP.Address
			}
			if cfg.TCP.PoolSize > 0 {
				poolSize = cfg.TCP.PoolSize
			}
		}

		client, err := tcpclient.NewTCPClient(address, app.config.Gateway.InferenceTimeout, poolSize,
			tcpclient.WithLogger(app.Logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create inference client: %w", err)
		}
		app.tcpClient = client
		return inference.NewTCPDetector(client), nil
	default:
		baseURL := config.DefaultInferenceBaseURL
		if cfg.HTTP != nil && cfg.HTTP.BaseURL != "" {
			baseURL = cfg.HTTP.BaseURL
		}
		return inference.NewHTTPDetector(baseURL, &http.Client{}), nil
	}
}

func (app *App) initRepositories() {
	app.APIKeyRepository = repository.NewAPIKeyRepository(app.db)
	app.UsageRepository = repository.NewUsageRepository(app.db)
	app.Keys = keys.NewService(app.APIKeyRepository, app.UsageRepository, app.config.Gateway.DefaultDailyLimit, app.Logger)
}

func NewApp(cfg *config.Config, options ...OptionFunc) (*App, error) {
	l, err := logger.InitLogger(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     cfg,
		Logger:     l,
		cancelFunc: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			app.Logger.Error("failed to apply option", zap.Error(err))
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

func (app *App) Close() {
	app.cancelFunc()

	if app.fileuploader != nil {
		app.fileuploader.Stop()
	}
	if app.mq != nil {
		if err := app.mq.Close(); err != nil {
			app.Logger.Warn("failed to close mq", zap.Error(err))
		}
	}
	if app.tcpClient != nil {
		app.tcpClient.Close()
	}
	if app.driver != nil {
		if err := app.driver.Close(); err != nil {
			app.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) MQ() mq.MQ {
	return app.mq
}

func (app *App) DB() *bun.DB {
	return app.db
}

func (app *App) Uploader() *fileuploader.Uploader {
	return app.fileuploader
}
