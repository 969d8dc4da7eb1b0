package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	securedm "github.com/chirpsocial/securedm-go"
)

// register: generate a keypair, upload the wrapped backup, seal locally.
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Generate a messaging keypair and register it with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required to seal the identity (-p)")
			}

			identity, err := client.Register(cmd.Context())
			if errors.Is(err, securedm.ErrIdentityExists) {
				return fmt.Errorf("already registered; use other commands directly")
			}
			if err != nil {
				return err
			}

			if err := client.SealIdentityToFile(identityPath(), passphrase); err != nil {
				return fmt.Errorf("registered, but sealing local identity failed: %w", err)
			}

			fmt.Printf("registered %s\nidentity sealed to %s\n", identity.UserID(), identityPath())
			return nil
		},
	}
}
