package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dmi-project/dmi-gateway/internal/app"
	"github.com/dmi-project/dmi-gateway/internal/db/models"
	"github.com/dmi-project/dmi-gateway/internal/services/keys"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var apiKeyCmd = &cobra.Command{
	Use:   "api-key",
	Short: "Manage public API keys",
}

func init() {
	setupAPIKeyCmd(apiKeyCmd)
}

func setupAPIKeyCmd(cmd *cobra.Command) {
	newAPIKeyCmd := &cobra.Command{
		Use:   "new",
		Short: "Creates a new API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			owner, _ := flags.GetString("owner")
			name, _ := flags.GetString("name")

			params := keys.CreateParams{OwnerID: owner, Name: name}
			if flags.Changed("daily-limit") {
				limit, _ := flags.GetInt("daily-limit")
				params.DailyLimit = &limit
			}
			if flags.Changed("expires-days") {
				days, _ := flags.GetInt("expires-days")
				params.ExpiresInDays = &days
			}
			params.CanUseDeepfakeDetection = disabledFlag(cmd, "no-deepfake")
			params.CanUseAITextDetection = disabledFlag(cmd, "no-ai-text")
			params.CanUseAIMediaDetection = disabledFlag(cmd, "no-ai-media")

			app, err := newApp(app.WithDBInitialization())
			if err != nil {
				return err
			}
			defer app.Close()

			key, secret, err := app.Keys.Create(cmd.Context(), params)
			if err != nil {
				return err
			}

			fmt.Printf("API key created: %s\n", secret)
			fmt.Printf("ID: %s (daily limit %d)\n", key.ID, key.DailyLimit)
			fmt.Println("Store the key now, it cannot be shown again.")
			return nil
		},
	}

	newFlags := newAPIKeyCmd.Flags()
	newFlags.String("owner", "", "Owner the key belongs to")
	newFlags.String("name", "", "Human readable key name")
	newFlags.Int("daily-limit", 0, "Requests allowed per UTC day (default from gateway.default_daily_limit)")
	newFlags.Int("expires-days", 0, "Days until the key expires")
	newFlags.Bool("no-deepfake", false, "Deny deepfake detection")
	newFlags.Bool("no-ai-text", false, "Deny AI text detection")
	newFlags.Bool("no-ai-media", false, "Deny AI media detection")
	newAPIKeyCmd.MarkFlagRequired("owner")

	revokeAPIKeyCmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key id: %w", err)
			}

			app, err := newApp(app.WithDBInitialization())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Keys.RevokeByID(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Printf("API key revoked: %s\n", id)
			return nil
		},
	}

	listAPIKeysCmd := &cobra.Command{
		Use:   "list",
		Short: "List the API keys of an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")

			app, err := newApp(app.WithDBInitialization())
			if err != nil {
				return err
			}
			defer app.Close()

			apiKeys, err := app.Keys.List(cmd.Context(), owner)
			if err != nil {
				return err
			}

			if len(apiKeys) == 0 {
				fmt.Println("No API keys found")
				return nil
			}

			printAPIKeys(apiKeys)
			return nil
		},
	}
	listAPIKeysCmd.Flags().String("owner", "", "Owner whose keys are listed")
	listAPIKeysCmd.MarkFlagRequired("owner")

	cmd.AddCommand(newAPIKeyCmd, revokeAPIKeyCmd, listAPIKeysCmd)
}

// disabledFlag maps a --no-* flag to a capability override.
func disabledFlag(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	denied, _ := cmd.Flags().GetBool(name)
	allowed := !denied
	return &allowed
}

func printAPIKeys(apiKeys []models.APIKey) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tNAME\tKEY\tLIMIT\tCAPABILITIES\tREVOKED")
	for _, key := range apiKeys {
		caps := ""
		for _, c := range []struct {
			allowed bool
			name    string
		}{
			{key.CanUseDeepfakeDetection, "deepfake"},
			{key.CanUseAITextDetection, "ai-text"},
			{key.CanUseAIMediaDetection, "ai-media"},
		} {
			if !c.allowed {
				continue
			}
			if caps != "" {
				caps += ","
			}
			caps += c.name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%t\n", key.ID, key.Name, key.KeyMask, key.DailyLimit, caps, key.IsRevoked)
	}
}
