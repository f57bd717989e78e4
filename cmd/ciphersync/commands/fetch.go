package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphersync/internal/domain"
)

// printingListeners reports inbox events on stdout.
func printingListeners() domain.Listeners {
	return domain.Listeners{
		InboxMessage: domain.InboxMessageListenerFunc(func(e domain.InboxMessageEvent) {
			fmt.Printf("new message %s (%s)\n", e.UID, e.ArrivedAt.Local().Format("2006-01-02 15:04:05"))
		}),
		ExtendedPayload: domain.ExtendedPayloadListenerFunc(func(e domain.ExtendedPayloadEvent) {
			fmt.Printf("extended payload for %s (%d bytes)\n", e.UID, len(e.Payload))
		}),
		InboxAttachment: domain.InboxAttachmentListenerFunc(func(e domain.InboxAttachmentEvent) {
			if e.Completed {
				fmt.Printf("attachment %s/%d complete (%d bytes)\n", e.UID, e.Index, e.ExpectedSize)
			}
		}),
		PendingQuery: domain.PendingQueryListenerFunc(func(e domain.PendingQueryEvent) {
			fmt.Printf("query %s %s\n", e.CorrelationID, e.State)
		}),
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download queued messages and attachments from the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine(printingListeners())
			if err != nil {
				return err
			}
			defer e.Close()

			rep, err := e.Syncer.Sync(cmd.Context(), e.Owned())
			if err != nil {
				return err
			}
			fmt.Printf("listed %d, new %d, duplicate %d, attachments completed %d, deleted on relay %d\n",
				rep.Listed, rep.Created, rep.AlreadyPresent, rep.AttachmentsCompleted, rep.Deleted)
			if rep.Skipped > 0 {
				fmt.Printf("skipped %d malformed messages\n", rep.Skipped)
			}
			return nil
		},
	}
}
