package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/liveledger/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Driver   string
	MatchID  string // optional - specific match only
	Repair   bool
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Matches  []store.LedgerReport `json:"matches"`
	Total    int                  `json:"total"`
	Drifted  int                  `json:"drifted"`
	Repaired int                  `json:"repaired"`
}

// Consistent reports whether every stored stats block matches its ledger
// after any repair.
func (r ReplayResult) Consistent() bool {
	return r.Drifted == r.Repaired
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Fold match ledgers and verify stored stats",
		Long: `Recompute each match's stats by folding its event ledger from zero and
compare the result with the stats stored on the match.

With --repair, drifted stats are overwritten with the folded values.

Exit codes:
  0 - Every match is consistent (or was repaired)
  1 - Drift detected and not repaired
  2 - Command error (database not found, unknown match, etc.)

Examples:
  liveledger replay --db ./liveledger.db
  liveledger replay --db ./liveledger.db --match 0192f6c0-...
  liveledger replay --driver postgres --db "postgres://..." --repair --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "match store database path or DSN (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Driver, "driver", "sqlite", "match store driver (sqlite|postgres)")
	cmd.Flags().StringVar(&opts.MatchID, "match", "", "replay a specific match only")
	cmd.Flags().BoolVar(&opts.Repair, "repair", false, "overwrite drifted stats with the folded values")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(opts.Driver, opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var reports []store.LedgerReport
	if opts.MatchID != "" {
		r, err := st.VerifyLedger(ctx, opts.MatchID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay match %s", opts.MatchID), err)
		}
		reports = []store.LedgerReport{r}
	} else {
		reports, err = st.VerifyAll(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to replay matches", err)
		}
	}

	result := ReplayResult{Matches: reports, Total: len(reports)}
	for _, r := range reports {
		if !r.Drift {
			continue
		}
		result.Drifted++
		if !opts.Repair {
			continue
		}
		if _, err := st.RepairLedger(ctx, r.MatchID); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to repair match %s", r.MatchID), err)
		}
		result.Repaired++
	}

	var failure *CLIError
	if !result.Consistent() {
		failure = &CLIError{Code: "E_DRIFT", Message: "stored stats drifted from the ledger"}
	}

	f := newFormatter(opts.RootOptions, cmd)
	if err := f.Render(result, failure, func(w io.Writer) { outputReplayText(w, result, opts.Verbose) }); err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

func outputReplayText(w io.Writer, result ReplayResult, verbose bool) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No matches found in database.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d match(es)\n", result.Total)
	fmt.Fprintln(w)

	for _, r := range result.Matches {
		status := "✓"
		if r.Drift {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Match: %s (%d events)\n", status, r.MatchID, r.Events)

		if r.Drift || verbose {
			fmt.Fprintf(w, "  Stored: home %d goals %d cards, away %d goals %d cards\n",
				r.Stored.HomeTeam.Goals, r.Stored.HomeTeam.YellowCards+r.Stored.HomeTeam.RedCards,
				r.Stored.AwayTeam.Goals, r.Stored.AwayTeam.YellowCards+r.Stored.AwayTeam.RedCards)
			fmt.Fprintf(w, "  Folded: home %d goals %d cards, away %d goals %d cards\n",
				r.Folded.HomeTeam.Goals, r.Folded.HomeTeam.YellowCards+r.Folded.HomeTeam.RedCards,
				r.Folded.AwayTeam.Goals, r.Folded.AwayTeam.YellowCards+r.Folded.AwayTeam.RedCards)
		}
	}
	fmt.Fprintln(w)

	switch {
	case result.Drifted == 0:
		fmt.Fprintln(w, "✓ All ledgers consistent")
	case result.Consistent():
		fmt.Fprintf(w, "✓ Repaired %d drifted match(es)\n", result.Repaired)
	default:
		fmt.Fprintf(w, "✗ %d match(es) drifted from their ledger\n", result.Drifted)
	}
}

func openStore(driver, dsn string, opts ...store.Option) (*store.Store, error) {
	switch driver {
	case "", "sqlite":
		return store.Open(dsn, opts...)
	case "postgres":
		return store.OpenPostgres(dsn, opts...)
	}
	return nil, fmt.Errorf("unknown driver %q", driver)
}
