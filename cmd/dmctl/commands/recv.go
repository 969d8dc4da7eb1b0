package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	securedm "github.com/chirpsocial/securedm-go"
)

// recv <peer>: print history, then stream new messages until interrupted.
func recvCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "recv <peer-id>",
		Short: "Read a conversation, optionally streaming new messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadIdentity(cmd); err != nil {
				return err
			}

			room, err := client.OpenRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			session, err := room.StartSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			printMsg := func(m *securedm.Message) {
				fmt.Printf("[%s] %s: %s\n",
					m.SentAt.Local().Format("15:04:05"), m.SenderID, m.Text)
			}
			for _, m := range session.Messages() {
				printMsg(m)
				if err := session.MarkVisible(cmd.Context(), m.ID); err != nil {
					fmt.Fprintf(os.Stderr, "mark read: %v\n", err)
				}
			}

			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			room.WatchFunc(ctx, func(m *securedm.Message) {
				printMsg(m)
				if err := session.MarkVisible(ctx, m.ID); err != nil {
					fmt.Fprintf(os.Stderr, "mark read: %v\n", err)
				}
			})
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming new messages")
	return cmd
}
