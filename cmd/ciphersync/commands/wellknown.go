package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ciphersync/internal/domain"
)

func wellKnownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wellknown",
		Short: "Show or refresh the cached relay configuration",
	}
	cmd.AddCommand(wellKnownShowCmd(), wellKnownRefreshCmd())
	return cmd
}

func printEntry(e domain.WellKnownEntry) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

func wellKnownShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cached entry, fetching it when not cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine(domain.Listeners{})
			if err != nil {
				return err
			}
			defer e.Close()

			entry, ok, err := e.WellKnown.Get(cmd.Context(), e.Server)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "not cached; fetching")
				res := <-e.WellKnown.Refresh(cmd.Context(), e.Server)
				if res.Err != nil {
					return res.Err
				}
				entry = res.Entry
			}
			return printEntry(entry)
		},
	}
}

func wellKnownRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the relay configuration now",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine(domain.Listeners{})
			if err != nil {
				return err
			}
			defer e.Close()

			res := <-e.WellKnown.Refresh(cmd.Context(), e.Server)
			if res.Err != nil {
				return res.Err
			}
			return printEntry(res.Entry)
		},
	}
}
