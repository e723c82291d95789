package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	DeviceOptions
	Timeout time.Duration
}

// SyncResult reports one drain of a device queue.
type SyncResult struct {
	Online    bool     `json:"online"`
	Attempted int      `json:"attempted"`
	Applied   int      `json:"applied"`
	Retried   int      `json:"retried"`
	Dropped   int      `json:"dropped"`
	Remaining int      `json:"remaining"`
	LastError string   `json:"lastError,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push queued mutations to the match store",
		Long: `Drain a device queue against a remote match store once.

Each failed mutation counts one attempt; mutations out of attempts are
dropped and reported.

Exit codes:
  0 - Queue fully drained
  1 - Remote unreachable, or mutations were dropped or remain queued
  2 - Command error

Examples:
  liveledger sync --queue-db ./device.db --remote http://ledger.local:8080
  liveledger sync --config ./device.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts, cmd)
		},
	}

	opts.DeviceOptions.bind(cmd, false)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", time.Minute, "overall time limit")

	return cmd
}

func runSync(ctx context.Context, opts *SyncOptions, cmd *cobra.Command) error {
	if err := opts.resolve(opts.Config); err != nil {
		return WrapExitError(ExitCommandError, "invalid sync settings", err)
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	d, err := openDevice(ctx, &opts.DeviceOptions)
	if err != nil {
		return err
	}
	defer d.Close()
	q, mon, eng := d.queue, d.monitor, d.engine
	f := newFormatter(opts.RootOptions, cmd)

	if !mon.ProbeNow(ctx) {
		pending, _ := q.Len(ctx)
		result := SyncResult{Online: false, Remaining: pending}
		failure := &CLIError{Code: "CONNECTIVITY", Message: "remote unreachable"}
		if err := f.Render(result, failure, func(w io.Writer) {
			fmt.Fprintf(w, "✗ Remote %s unreachable, %d mutation(s) still queued\n", opts.Remote, pending)
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "remote unreachable")
	}

	report, err := eng.ForceSync(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "sync failed", err)
	}

	result := SyncResult{
		Online:    mon.Online(),
		Attempted: report.Attempted,
		Applied:   report.Applied,
		Retried:   report.Retried,
		Dropped:   len(report.Dropped),
		Remaining: report.Remaining,
		LastError: eng.Status().LastError,
	}
	for _, d := range report.Dropped {
		result.Errors = append(result.Errors, fmt.Sprintf("%s %s/%s: %v", d.Item.Type, d.Item.Collection, d.Item.DocumentID, d.Err))
	}

	var failure *CLIError
	switch {
	case result.Dropped > 0:
		failure = &CLIError{Code: "RETRY_EXHAUSTED", Message: fmt.Sprintf("%d mutation(s) dropped", result.Dropped), Details: result.Errors}
	case result.Remaining > 0:
		failure = &CLIError{Code: "E_PENDING", Message: fmt.Sprintf("%d mutation(s) still queued", result.Remaining)}
	}

	if err := f.Render(result, failure, func(w io.Writer) { outputSyncText(w, result) }); err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

func outputSyncText(w io.Writer, r SyncResult) {
	fmt.Fprintf(w, "Sync: %d attempted, %d applied, %d retried, %d dropped\n", r.Attempted, r.Applied, r.Retried, r.Dropped)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  dropped: %s\n", e)
	}
	if r.Remaining == 0 {
		fmt.Fprintln(w, "✓ Queue drained")
		return
	}
	fmt.Fprintf(w, "✗ %d mutation(s) still queued\n", r.Remaining)
	if r.LastError != "" {
		fmt.Fprintf(w, "  last error: %s\n", r.LastError)
	}
}
