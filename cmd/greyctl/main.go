// greyctl is the operator CLI for the Grey Insaat backend: it bootstraps the
// Gmail OAuth credential, checks it, and issues staff API tokens.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"greybackend/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit signals a non-zero exit after the command wrote its own error.
var errExit = errors.New("exit")

var configPath string

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(stderr, "greyctl: %v\n", err) //nolint:errcheck // best-effort stderr
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "greyctl",
		Short:         "Operator tooling for the Grey Insaat admin backend",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newOAuthCmd(stdout, stderr),
		newCredsCmd(stdout, stderr),
		newTokenCmd(stdout, stderr),
	)
	return root
}

func loadConfig(stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "greyctl: %v\n", err) //nolint:errcheck // best-effort stderr
		return nil, errExit
	}
	return cfg, nil
}
