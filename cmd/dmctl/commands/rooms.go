package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rooms: list conversations, most recent first.
func roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := client.ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				fmt.Println("no conversations yet")
				return nil
			}
			for _, room := range rooms {
				unread := ""
				if room.UnreadCount > 0 {
					unread = fmt.Sprintf("  (%d unread)", room.UnreadCount)
				}
				fmt.Printf("%s  %s  last active %s%s\n",
					room.ID, room.Peer.Username,
					room.LastActivity.Local().Format("2006-01-02 15:04"), unread)
			}
			return nil
		},
	}
}
