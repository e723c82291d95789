package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/liveledger/internal/localstore"
	"github.com/roach88/liveledger/internal/queue"
)

// QueueOptions holds flags for the queue commands.
type QueueOptions struct {
	*RootOptions
	QueueDB string
}

// QueueStatusResult lists the pending mutations of a device queue.
type QueueStatusResult struct {
	Pending int          `json:"pending"`
	Items   []queue.Item `json:"items"`
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the device mutation queue",
	}
	cmd.PersistentFlags().StringVar(&opts.QueueDB, "queue-db", "", "path to the device queue database (required)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show pending mutations",
		Long: `List the mutations waiting in a device queue, oldest first, with their
retry counts and last errors.

Examples:
  liveledger queue status --queue-db ./device.db
  liveledger queue status --queue-db ./device.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueStatus(cmd.Context(), opts, cmd)
		},
	}
	cmd.AddCommand(status)

	return cmd
}

func runQueueStatus(ctx context.Context, opts *QueueOptions, cmd *cobra.Command) error {
	if opts.QueueDB == "" {
		return NewExitError(ExitCommandError, "required flag \"queue-db\" not set")
	}

	kv, err := localstore.Open(opts.QueueDB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open queue database", err)
	}
	defer kv.Close()

	q, err := queue.Open(ctx, kv)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load queue", err)
	}
	defer q.Close()

	items, err := q.Items(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}

	result := QueueStatusResult{Pending: len(items), Items: items}
	f := newFormatter(opts.RootOptions, cmd)
	return f.Render(result, nil, func(w io.Writer) { outputQueueText(w, result, opts.Verbose) })
}

func outputQueueText(w io.Writer, result QueueStatusResult, verbose bool) {
	if result.Pending == 0 {
		fmt.Fprintln(w, "Queue is empty.")
		return
	}

	fmt.Fprintf(w, "Pending: %d mutation(s)\n", result.Pending)
	for _, it := range result.Items {
		fmt.Fprintf(w, "  %s %s %s/%s retries %d/%d\n",
			it.Timestamp.Format("2006-01-02T15:04:05Z07:00"), it.Type, it.Collection, it.DocumentID,
			it.RetryCount, it.MaxRetries)
		if it.LastError != "" {
			fmt.Fprintf(w, "    last error: %s\n", it.LastError)
		}
		if verbose {
			fmt.Fprintf(w, "    id: %s\n    data: %s\n", it.ID, it.Data)
		}
	}
}
