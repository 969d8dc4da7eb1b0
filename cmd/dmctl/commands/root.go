package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	securedm "github.com/chirpsocial/securedm-go"
)

var (
	baseURL    string
	token      string
	home       string
	passphrase string

	client *securedm.Client
)

// Execute runs the dmctl command tree.
func Execute() error {
	// Best effort; flags and real env still win.
	godotenv.Load()

	root := &cobra.Command{
		Use:           "dmctl",
		Short:         "End-to-end encrypted direct messaging CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("SECUREDM_TOKEN")
			}
			if token == "" {
				return fmt.Errorf("session token required (--token or SECUREDM_TOKEN)")
			}
			if baseURL == "" {
				baseURL = os.Getenv("SECUREDM_BASE_URL")
			}
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".dmctl")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			opts := []securedm.Option{}
			if baseURL != "" {
				opts = append(opts, securedm.WithBaseURL(baseURL))
			}

			c, err := securedm.New(token, opts...)
			if err != nil {
				return err
			}
			client = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if client != nil {
				client.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&token, "token", "", "session token (default $SECUREDM_TOKEN)")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (default $SECUREDM_BASE_URL)")
	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.dmctl)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the local identity file")

	root.AddCommand(registerCmd(), roomsCmd(), sendCmd(), recvCmd())
	return root.Execute()
}

// identityPath is the sealed identity file under the config dir.
func identityPath() string {
	return filepath.Join(home, "identity.sealed")
}

// loadIdentity unseals the local identity, falling back to the server backup
// blob when no local file exists yet.
func loadIdentity(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if _, err := os.Stat(identityPath()); err == nil {
		if passphrase == "" {
			return fmt.Errorf("passphrase required to unseal identity (-p)")
		}
		if _, err := client.UnsealIdentityFromFile(identityPath(), passphrase); err != nil {
			return err
		}
		return nil
	}

	if _, err := client.RestoreIdentity(ctx); err != nil {
		return fmt.Errorf("no local identity and server restore failed: %w", err)
	}
	return nil
}
