package cmd

import (
	"fmt"
	"os"

	"github.com/dmi-project/dmi-gateway/internal/app"
	"github.com/dmi-project/dmi-gateway/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "gateway",
	Short: "DMI public API gateway",
	Long:  "Authenticates, rate limits and validates public API calls to the DMI detectors and records every call in the usage ledger",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitConfig()
	},
	SilenceUsage: true,
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	Cmd.AddCommand(runCmd, apiKeyCmd, dbCmd, usageCmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}

// newApp builds an App from the loaded config for commands that only need
// part of it.
func newApp(options ...app.OptionFunc) (*app.App, error) {
	return app.NewApp(config.GetConfig(), options...)
}
