package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer-id> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadIdentity(cmd); err != nil {
				return err
			}

			room, err := client.OpenRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			msg, err := room.Send(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			fmt.Printf("sent %s at %s\n", msg.ID, msg.SentAt.Local().Format("15:04:05"))
			return nil
		},
	}
}
