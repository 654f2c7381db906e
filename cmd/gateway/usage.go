package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/app"
	"github.com/dmi-project/dmi-gateway/internal/services/usage"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect public API usage",
}

func init() {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print usage events as the gateway publishes them",
		Long:  "Subscribes to the usage topic on Pulsar and prints one line per ledger entry. Requires pulsar.url.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(app.WithMQ())
			if err != nil {
				return err
			}
			defer app.Close()

			cfg := app.Config().Pulsar
			if cfg.URL == "" {
				return fmt.Errorf("pulsar.url is not set; usage events are only visible inside the gateway process")
			}

			ctx, stop := signal.NotifyContext(app.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return usage.Tail(ctx, app.MQ(), cfg.UsageTopic, app.Logger, func(e *usage.Event) {
				key := e.KeyID
				if key == "" {
					key = "-"
				}
				fmt.Printf("%s %s %s %d %s %dms %s\n",
					time.UnixMilli(e.CreatedAt).UTC().Format(time.RFC3339),
					key, e.Endpoint, e.StatusCode, e.Code, e.ResponseTimeMs, e.IPAddress)
			})
		},
	}

	usageCmd.AddCommand(tailCmd)
}
