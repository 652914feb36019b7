package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"greybackend/config"
	"greybackend/internal/credential"
	redisclient "greybackend/pkg/redis"
)

type oauthFlags struct {
	clientID     string
	clientSecret string
	tokenURL     string
	authURL      string
}

func (f *oauthFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.clientID, "client-id", config.GetEnv("GMAIL_CLIENT_ID", ""), "OAuth client ID (env GMAIL_CLIENT_ID)")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", config.GetEnv("GMAIL_CLIENT_SECRET", ""), "OAuth client secret (env GMAIL_CLIENT_SECRET)")
	cmd.Flags().StringVar(&f.tokenURL, "token-url", "", "override the token endpoint")
	cmd.Flags().StringVar(&f.authURL, "auth-url", "", "override the authorization endpoint")
	_ = cmd.Flags().MarkHidden("token-url")
	_ = cmd.Flags().MarkHidden("auth-url")
}

func (f *oauthFlags) config(redirectURL string) *oauth2.Config {
	cred := &credential.Credential{ClientID: f.clientID, ClientSecret: f.clientSecret}
	x := credential.OAuth2Exchanger{RedirectURL: redirectURL}
	if f.tokenURL != "" || f.authURL != "" {
		x.Endpoint = oauth2.Endpoint{AuthURL: f.authURL, TokenURL: f.tokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	return x.Config(cred)
}

func newOAuthCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Bootstrap the Gmail OAuth credential",
	}
	cmd.AddCommand(newOAuthURLCmd(stdout, stderr), newOAuthExchangeCmd(stdout, stderr))
	return cmd
}

func newOAuthURLCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags oauthFlags
	var state string
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the consent URL for the sender account",
		Long: `Prints the URL an operator opens once, signed in as the sender account,
to grant gmail.send with offline access. Paste the returned code into
"greyctl oauth exchange".`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(stderr)
			if err != nil {
				return err
			}
			if flags.clientID == "" {
				fmt.Fprintln(stderr, "greyctl oauth url: --client-id is required") //nolint:errcheck // best-effort stderr
				return errExit
			}
			fmt.Fprintln(stdout, credential.AuthCodeURL(flags.config(cfg.Mail.RedirectURL), state)) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&state, "state", "greyinsaat", "opaque state echoed back by the provider")
	return cmd
}

func newOAuthExchangeCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags oauthFlags
	var code, userEmail string
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code and save the credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(stderr)
			if err != nil {
				return err
			}
			if flags.clientID == "" || flags.clientSecret == "" {
				fmt.Fprintln(stderr, "greyctl oauth exchange: --client-id and --client-secret are required") //nolint:errcheck // best-effort stderr
				return errExit
			}
			return doExchange(cmd.Context(), cfg, flags.config(cfg.Mail.RedirectURL), code, userEmail, stdout, stderr)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&code, "code", "", "authorization code from the consent redirect")
	cmd.Flags().StringVar(&userEmail, "user-email", "", "sender account that granted consent")
	return cmd
}

func doExchange(ctx context.Context, cfg *config.Config, oc *oauth2.Config, code, userEmail string, stdout, stderr io.Writer) error {
	cred, err := credential.ExchangeCode(ctx, oc, code, userEmail)
	if err != nil {
		fmt.Fprintf(stderr, "greyctl oauth exchange: %v\n", err) //nolint:errcheck // best-effort stderr
		return errExit
	}

	store, closeStore, err := openCredentialStore(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "greyctl oauth exchange: %v\n", err) //nolint:errcheck // best-effort stderr
		return errExit
	}
	defer closeStore()

	if err := store.Save(ctx, cred); err != nil {
		fmt.Fprintf(stderr, "greyctl oauth exchange: save: %v\n", err) //nolint:errcheck // best-effort stderr
		return errExit
	}
	fmt.Fprintf(stdout, "Saved credential for %s to %s\n", cred.UserEmail, store.Describe()) //nolint:errcheck // best-effort stdout
	return nil
}

// openCredentialStore opens the configured store plus a Redis client when
// the store needs one.
func openCredentialStore(cfg *config.Config) (credential.Store, func(), error) {
	if cfg.Mail.CredentialStore != "redis" {
		store, err := credential.OpenStore(cfg.Mail, nil)
		return store, func() {}, err
	}
	rdb := redisclient.NewRedisClient(cfg.Redis)
	store, err := credential.OpenStore(cfg.Mail, rdb)
	if err != nil {
		rdb.Close()
		return nil, nil, err
	}
	return store, func() { _ = rdb.Close() }, nil
}
