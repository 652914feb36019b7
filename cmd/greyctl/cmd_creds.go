package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"greybackend/internal/credential"
	"greybackend/internal/transport"
	"greybackend/pkg/logger"
)

func newCredsCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Inspect the stored Gmail credential",
	}
	cmd.AddCommand(newCredsCheckCmd(stdout, stderr))
	return cmd
}

func newCredsCheckCmd(stdout, stderr io.Writer) *cobra.Command {
	var tokenURL string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Refresh the access token once and report the result",
		Long: `Runs the same load, validate and token refresh a real send performs and
persists the refreshed access token. Exits non-zero with the full
troubleshooting message when the credential is unusable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(stderr)
			if err != nil {
				return err
			}
			store, closeStore, err := openCredentialStore(cfg)
			if err != nil {
				fmt.Fprintf(stderr, "greyctl creds check: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			defer closeStore()

			factory, err := transport.FromConfig(cfg.Mail)
			if err != nil {
				fmt.Fprintf(stderr, "greyctl creds check: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			logg, err := logger.NewLogger(cfg.Log.Level, true)
			if err != nil {
				return err
			}
			defer logg.Sync() //nolint:errcheck // best-effort flush

			x := credential.OAuth2Exchanger{RedirectURL: cfg.Mail.RedirectURL}
			if tokenURL != "" {
				x.Endpoint = oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
			}
			status, err := credential.NewManager(store, x, factory, logg).Check(cmd.Context())
			if err != nil {
				fmt.Fprintf(stderr, "greyctl creds check: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "override the token endpoint")
	_ = cmd.Flags().MarkHidden("token-url")
	return cmd
}
