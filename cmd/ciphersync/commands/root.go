package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ciphersync/internal/app"
	"ciphersync/internal/domain"
)

var (
	home        string
	passphrase  string
	relayURL    string
	postgresDSN string
	logLevel    string
	logFile     string

	wire *app.Wire
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "ciphersync",
		Short:         "Inbox, query and server-configuration sync engine for encrypted messaging",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfigFromEnv(nil)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("home") {
				cfg.Home = home
			}
			if flags.Changed("relay") {
				cfg.RelayURL = relayURL
			}
			if flags.Changed("postgres-dsn") {
				cfg.PostgresDSN = postgresDSN
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("log-file") {
				cfg.Log.File = logFile
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}
			wire, err = app.NewWire(cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&home, "home", "", "data dir (default ~/.ciphersync)")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity")
	pf.StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	pf.StringVar(&postgresDSN, "postgres-dsn", "", "store state in PostgreSQL instead of the embedded database")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&logFile, "log-file", "", "also write JSON logs to this rotated file")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		fetchCmd(),
		inboxCmd(),
		queryCmd(),
		wellKnownCmd(),
		pushCmd(),
		watchCmd(),
	)
	return root.Execute()
}

// engine unlocks the identity and binds the relay-facing components.
func engine(l domain.Listeners) (*app.Engine, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase required (-p)")
	}
	return wire.Unlock(passphrase, l)
}
