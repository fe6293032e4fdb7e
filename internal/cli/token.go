package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zsprackett/usagebar/internal/config"
	"github.com/zsprackett/usagebar/internal/webserver"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for the web API",
	Long: `Print a signed token for the web API. If no signing secret is configured
one is generated and saved, which turns on authentication for the web API.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default: webserver.auth.tokenTTL)")
	tokenCmd.Flags().String("subject", "usagebar-cli", "token subject")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd.ErrOrStderr())
	if err := config.EnsureJWTSecret(configPath(), &cfg); err != nil {
		return fmt.Errorf("persist jwt secret: %w", err)
	}

	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		d, _ := cfg.Durations()
		ttl = d.TokenTTL
	}
	subject, _ := cmd.Flags().GetString("subject")

	tok, err := webserver.IssueAccessToken(cfg.Webserver.Auth.JWTSecret, subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	return nil
}
