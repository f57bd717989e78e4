package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ciphersync/internal/domain"
)

func pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Manage push notification registration",
	}
	cmd.AddCommand(pushRegisterCmd())
	return cmd
}

func pushRegisterCmd() *cobra.Command {
	var (
		token       string
		device      string
		multiDevice bool
		params      []string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Store a push token and register it with the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters := make(map[string]string, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok || k == "" {
					return fmt.Errorf("--param %q: want key=value", p)
				}
				parameters[k] = v
			}

			e, err := engine(domain.Listeners{})
			if err != nil {
				return err
			}
			defer e.Close()

			cfg, err := e.Registrar.Register(cmd.Context(), domain.PushConfiguration{
				OwnedIdentity: e.Owned(),
				Token:         token,
				DeviceName:    device,
				MultiDevice:   multiDevice,
				Parameters:    parameters,
			})
			if err != nil {
				return err
			}
			fmt.Printf("push token registered (acknowledged by relay: %t)\n", cfg.ServerAcked)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "push token issued by the platform")
	cmd.Flags().StringVar(&device, "device", "", "device name shown to other devices")
	cmd.Flags().BoolVar(&multiDevice, "multi-device", false, "the identity is used on several devices")
	cmd.Flags().StringArrayVar(&params, "param", nil, "extra key=value parameter (repeatable)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
