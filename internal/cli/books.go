// internal/cli/books.go
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"bookshelf/internal/books"
	"bookshelf/internal/clients"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type clientOptions struct {
	serverURL string
	output    string
}

func (o *clientOptions) client() *clients.BooksClient {
	return clients.NewBooksClient(o.serverURL, nil)
}

// print writes v in the selected output format.
func (o *clientOptions) print(w io.Writer, v any) error {
	switch o.output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
}

func newBooksCmd() *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage books on a running bookshelf server",
	}

	defaultURL := defaultServerURL
	if v, ok := os.LookupEnv("BOOKSHELF_URL"); ok {
		defaultURL = v
	}
	cmd.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", defaultURL, "Bookshelf server URL (env BOOKSHELF_URL)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "Output format (json or yaml)")

	cmd.AddCommand(
		newBooksListCmd(opts),
		newBooksGetCmd(opts),
		newBooksAddCmd(opts),
		newBooksUpdateCmd(opts),
		newBooksDeleteCmd(opts),
		newBooksHistoryCmd(opts),
	)
	return cmd
}

func newBooksListCmd(opts *clientOptions) *cobra.Command {
	var name, reading, finished string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List books, optionally filtered",
		Example: `  bookshelf books list --name dicoding --reading 1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f books.Filter
			if cmd.Flags().Changed("name") {
				f.Name = &name
			}
			if cmd.Flags().Changed("reading") {
				v, err := parseFlagValue("reading", reading)
				if err != nil {
					return err
				}
				f.Reading = &v
			}
			if cmd.Flags().Changed("finished") {
				v, err := parseFlagValue("finished", finished)
				if err != nil {
					return err
				}
				f.Finished = &v
			}

			listings, err := opts.client().ListBooks(cmd.Context(), f)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), listings)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Match books with a name word equal to this, ignoring case and accents")
	cmd.Flags().StringVar(&reading, "reading", "", "1 for books being read, 0 for the others")
	cmd.Flags().StringVar(&finished, "finished", "", "1 for finished books, 0 for the others")
	return cmd
}

// parseFlagValue accepts the same 0/1 values the list endpoint does.
func parseFlagValue(flag, raw string) (bool, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || (n != 0 && n != 1) {
		return false, fmt.Errorf("--%s must be 0 or 1, got %q", flag, raw)
	}
	return n == 1, nil
}

func newBooksGetCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <bookId>",
		Short: "Show a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := opts.client().GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), book)
		},
	}
}

// payloadFlags binds the writable book fields to command flags.
type payloadFlags struct {
	name      string
	year      int
	author    string
	summary   string
	publisher string
	pageCount int
	readPage  int
	reading   bool
}

func (p *payloadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.name, "name", "", "Book name (required)")
	cmd.Flags().IntVar(&p.year, "year", 0, "Publication year")
	cmd.Flags().StringVar(&p.author, "author", "", "Author")
	cmd.Flags().StringVar(&p.summary, "summary", "", "Summary")
	cmd.Flags().StringVar(&p.publisher, "publisher", "", "Publisher")
	cmd.Flags().IntVar(&p.pageCount, "page-count", 0, "Total number of pages")
	cmd.Flags().IntVar(&p.readPage, "read-page", 0, "Pages read so far")
	cmd.Flags().BoolVar(&p.reading, "reading", false, "Currently being read")
}

// payload leaves the name unset when the flag was not given so the server
// reports it as missing.
func (p *payloadFlags) payload(cmd *cobra.Command) books.Payload {
	out := books.Payload{
		Year:      p.year,
		Author:    p.author,
		Summary:   p.summary,
		Publisher: p.publisher,
		PageCount: p.pageCount,
		ReadPage:  p.readPage,
		Reading:   p.reading,
	}
	if cmd.Flags().Changed("name") {
		name := p.name
		out.Name = &name
	}
	return out
}

func newBooksAddCmd(opts *clientOptions) *cobra.Command {
	flags := &payloadFlags{}

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a book",
		Example: `  bookshelf books add --name "Buku A" --page-count 100 --read-page 25`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := opts.client().AddBook(cmd.Context(), flags.payload(cmd))
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), map[string]string{"bookId": id})
		},
	}
	flags.register(cmd)
	return cmd
}

func newBooksUpdateCmd(opts *clientOptions) *cobra.Command {
	flags := &payloadFlags{}

	cmd := &cobra.Command{
		Use:   "update <bookId>",
		Short: "Replace the fields of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().UpdateBook(cmd.Context(), args[0], flags.payload(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "book %s updated\n", args[0])
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newBooksDeleteCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <bookId>",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().DeleteBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "book %s deleted\n", args[0])
			return nil
		},
	}
}

func newBooksHistoryCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <bookId>",
		Short: "Show the recorded changes of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := opts.client().History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			type row struct {
				Version   int    `json:"version" yaml:"version"`
				EventType string `json:"eventType" yaml:"eventType"`
				CreatedAt string `json:"createdAt" yaml:"createdAt"`
			}
			rows := make([]row, 0, len(events))
			for _, e := range events {
				rows = append(rows, row{Version: e.Version, EventType: e.EventType, CreatedAt: e.CreatedAt.Format(time.RFC3339)})
			}
			return opts.print(cmd.OutOrStdout(), rows)
		},
	}
}
