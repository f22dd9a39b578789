package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trade-history-sync/internal/service"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Query    string
	Page     int
	PageSize int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <league>",
		Short: "Show stored trades of a league, newest first",
		Long: `Show the trades stored for a league with per-currency totals.

Example:
  tradesync history Standard --query ring
  tradesync history Standard --page 2 --page-size 100 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "case-insensitive item type filter")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 50, "records per page (max 1000)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command, league string) error {
	a, err := opts.openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.History.History(commandContext(cmd), &service.HistoryQuery{
		League:   league,
		Locale:   opts.locale(a),
		TypeLine: opts.Query,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	})
	if err != nil {
		return opts.formatter(cmd).Failure(err)
	}

	return opts.formatter(cmd).Success(page, func(w io.Writer) {
		renderHistory(w, page)
	})
}

func renderHistory(w io.Writer, page *service.HistoryPage) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tITEM\tPRICE\tCURRENCY")
	for _, r := range page.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Time, r.ItemName, strconv.FormatFloat(r.Amount, 'f', -1, 64), r.Currency)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nPage %d/%d, %d of %d trades match\n", page.Page, page.TotalPages, page.Matched, page.Total)
	if len(page.Totals) > 0 {
		fmt.Fprint(w, "Totals:")
		for _, t := range page.Totals {
			fmt.Fprintf(w, " %s %s", t.Amount, t.Currency)
		}
		fmt.Fprintln(w)
	}
}

// NewLeaguesCommand creates the leagues command.
func NewLeaguesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "leagues",
		Short: "List the leagues offered by the trade site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			leagues, err := a.Feed.FetchLeagues(commandContext(cmd), rootOpts.locale(a))
			if err != nil {
				return rootOpts.formatter(cmd).Failure(err)
			}
			return rootOpts.formatter(cmd).Success(leagues, func(w io.Writer) {
				for _, l := range leagues {
					if l.Text != "" && l.Text != l.ID {
						fmt.Fprintf(w, "%s\t%s\n", l.ID, l.Text)
					} else {
						fmt.Fprintln(w, l.ID)
					}
				}
			})
		},
	}
}

// NewCredentialsCommand creates the credentials command.
func NewCredentialsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "credentials",
		Short: "Report whether the session cookies are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			statuses, err := a.Sync.Credentials(commandContext(cmd), rootOpts.locale(a))
			if err != nil {
				return rootOpts.formatter(cmd).Failure(err)
			}
			return rootOpts.formatter(cmd).Success(statuses, func(w io.Writer) {
				for _, s := range statuses {
					state := "missing"
					if s.Present {
						state = "present"
					}
					if s.ExpiresAt != nil {
						state += ", expires " + *s.ExpiresAt
					}
					fmt.Fprintf(w, "%s: %s\n", s.Name, state)
				}
			})
		},
	}
}
