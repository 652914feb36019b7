package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"greybackend/internal/api"
	"greybackend/pkg/rbac"
)

func newTokenCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Staff API tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(stdout, stderr))
	return cmd
}

func newTokenIssueCmd(stdout, stderr io.Writer) *cobra.Command {
	var userID int
	var role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed API token for a staff member",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(stderr)
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				fmt.Fprintln(stderr, "greyctl token issue: JWT secret is not configured (set JWT_SECRET)") //nolint:errcheck // best-effort stderr
				return errExit
			}
			if userID <= 0 {
				fmt.Fprintln(stderr, "greyctl token issue: --user-id must be positive") //nolint:errcheck // best-effort stderr
				return errExit
			}
			if !rbac.ValidRole(role) {
				fmt.Fprintf(stderr, "greyctl token issue: unknown role %q\n", role) //nolint:errcheck // best-effort stderr
				return errExit
			}
			tok, err := api.GenerateJWT(userID, role, cfg.JWT.Secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, tok) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
	cmd.Flags().IntVar(&userID, "user-id", 0, "staff member ID")
	cmd.Flags().StringVar(&role, "role", rbac.RoleViewer, "staff role (super-admin, admin, viewer)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
