package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphersync/internal/domain"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Send and track protocol queries",
	}
	cmd.AddCommand(querySendCmd(), queryListCmd(), queryRetryCmd())
	return cmd
}

func querySendCmd() *cobra.Command {
	var kind, data, id string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Persist a query and transmit it to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine(printingListeners())
			if err != nil {
				return err
			}
			defer e.Close()

			q, err := e.Dispatcher.Send(cmd.Context(), domain.NewQuery{
				CorrelationID: domain.CorrelationID(id),
				OwnedIdentity: e.Owned(),
				Kind:          domain.QueryKind(kind),
				Request:       []byte(data),
			})
			if err != nil {
				return err
			}
			printQuery(q)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(domain.QueryOther), "device-management, group-query, owned-device-discovery or other")
	cmd.Flags().StringVar(&data, "data", "", "request body")
	cmd.Flags().StringVar(&id, "id", "", "correlation id (default: random)")
	return cmd
}

func queryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger := wire.Ledger
			return wire.Sessions.View(cmd.Context(), func(tx domain.Txn) error {
				for q, err := range ledger.All(tx) {
					if err != nil {
						return err
					}
					printQuery(q)
				}
				return nil
			})
		},
	}
}

func queryRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Retransmit unresolved queries whose backoff has elapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine(printingListeners())
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.Dispatcher.RetryDue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("retransmitted %d queries\n", n)
			return nil
		},
	}
}

func printQuery(q domain.PendingServerQuery) {
	fmt.Printf("%s  %-22s  %-8s  attempts=%d", q.CorrelationID, q.Kind, q.State, q.Attempts)
	switch {
	case q.State == domain.QueryResolved:
		fmt.Printf("  response=%q", q.Response)
	case q.Failure != nil:
		fmt.Printf("  failure=%q retryable=%t", q.Failure.Message, q.Failure.Retryable)
	}
	fmt.Println()
}

