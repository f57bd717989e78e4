package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphersync/internal/domain"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if wire.IdentityStore.Exists() && !force {
				return fmt.Errorf("identity already exists in %s (use --force to replace it)", wire.Config.Home)
			}
			_, owned, err := wire.Identity.GenerateIdentity(passphrase, domain.ServerURL(wire.Config.RelayURL))
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nOwned identity: %s\n", owned)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}
