// internal/cli/root.go
package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:9000"

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookshelf",
		Short: "In-memory bookshelf API server and client",
		Long: `Bookshelf keeps book records in memory and serves them over a small JSON API.

Run "bookshelf serve" to start the server, and the "books" commands to talk to it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is fine; a malformed one is not.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newBooksCmd())
	cmd.AddCommand(newChaosCmd())

	return cmd
}
