package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ciphersync/internal/domain"
	"ciphersync/internal/services/identity"
)

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Inspect the local inbox",
	}
	cmd.AddCommand(inboxListCmd(), inboxAttachmentCmd())
	return cmd
}

// ownedIdentity unlocks the identity only to learn its owned identity.
func ownedIdentity() (domain.OwnedIdentity, error) {
	if passphrase == "" {
		return "", fmt.Errorf("passphrase required (-p)")
	}
	id, err := wire.Identity.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return identity.OwnedIdentityOf(id), nil
}

func inboxListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			owned, err := ownedIdentity()
			if err != nil {
				return err
			}
			return wire.Sessions.View(cmd.Context(), func(tx domain.Txn) error {
				n := 0
				for msg, err := range wire.Inbox.Messages(tx, owned) {
					if err != nil {
						return err
					}
					n++
					state := "stored"
					if msg.DeletionRequested {
						state = "deleting"
					}
					fmt.Printf("%s  %s  %d bytes  %s\n",
						msg.UID, msg.ArrivedAt.Local().Format("2006-01-02 15:04:05"), len(msg.EncryptedPayload), state)
					atts, err := wire.Inbox.Attachments(tx, owned, msg.UID)
					if err != nil {
						return err
					}
					for _, a := range atts {
						fmt.Printf("    attachment %d: %d/%d bytes\n", a.Index, a.ReceivedBytes(), a.ExpectedSize)
					}
				}
				if n == 0 {
					fmt.Println("inbox is empty")
				}
				return nil
			})
		},
	}
}

func inboxAttachmentCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "attachment <uid> <index>",
		Short: "Write a completed attachment to a file or stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("attachment index: %w", err)
			}
			owned, err := ownedIdentity()
			if err != nil {
				return err
			}
			var data []byte
			var ok bool
			err = wire.Sessions.View(cmd.Context(), func(tx domain.Txn) error {
				var err error
				data, ok, err = wire.Inbox.AttachmentData(tx, owned, domain.MessageUID(args[0]), index)
				return err
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("attachment %d of %s is unknown or incomplete", index, args[0])
			}
			if out == "" || out == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o600)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}
