package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmi-project/dmi-gateway/internal/app"
	"github.com/dmi-project/dmi-gateway/internal/config"
	"github.com/dmi-project/dmi-gateway/internal/server"
	"github.com/dmi-project/dmi-gateway/internal/services/usage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway HTTP server",
	RunE:  runApp,
}

func init() {
	flags := runCmd.Flags()

	flags.Int("port", config.DefaultPort, "Port to run the server on")
	flags.String("host", config.DefaultHost, "Host to run the server on")
	flags.String("environment", config.DefaultEnvironment, "Environment configuration: dev, test or prod")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("host", flags.Lookup("host"))
	viper.BindPFlag("environment", flags.Lookup("environment"))
}

func runApp(cmd *cobra.Command, _ []string) error {
	app, err := newApp(
		app.WithDBInitialization(),
		app.WithMigrations(),
		app.WithMQ(),
		app.WithFileUploader(),
		app.WithGateway(),
	)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config()
	logger := app.Logger

	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	srv.SetupRoutes(app)

	ctx, stop := signal.NotifyContext(app.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// nothing outside this process can read the in-memory queue
	if cfg.Pulsar == nil || cfg.Pulsar.URL == "" {
		go drainUsageEvents(ctx, app)
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("gateway started", zap.String("addr", srv.Addr()), zap.String("environment", cfg.Environment))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("stopping gateway")
	return srv.Stop(context.Background())
}

func drainUsageEvents(ctx context.Context, app *app.App) {
	logger := app.Logger.Named("usage")
	topic := app.Config().Pulsar.UsageTopic

	err := usage.Tail(ctx, app.MQ(), topic, logger, func(e *usage.Event) {
		logger.Debug("usage event",
			zap.String("key_id", e.KeyID),
			zap.String("endpoint", e.Endpoint),
			zap.String("code", e.Code),
			zap.Int64("response_time_ms", e.ResponseTimeMs),
		)
	})
	if err != nil {
		logger.Warn("usage event drain stopped", zap.Error(err))
	}
}
