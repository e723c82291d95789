package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/liveledger/internal/live"
	"github.com/roach88/liveledger/internal/match"
)

// RecordOptions holds flags shared by the record subcommands.
type RecordOptions struct {
	*RootOptions
	DeviceOptions
	Operator string
	Timeout  time.Duration
}

// RecordResult reports one operator action.
type RecordResult struct {
	Op          string       `json:"op"`
	MatchID     string       `json:"matchId"`
	EventID     string       `json:"eventId,omitempty"`
	Status      match.Status `json:"status,omitempty"`
	Deferred    bool         `json:"deferred"`
	QueueItemID string       `json:"queueItemId,omitempty"`
	Pending     int          `json:"pending"`
}

// action is one record subcommand's call into the live service.
type action func(ctx context.Context, svc *live.Service) (live.Outcome, error)

// NewRecordCommand creates the record command group.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record match actions as an operator device",
		Long: `Apply one operator action to a match.

When the match store is unreachable the action is queued on the device and
pushed by a later record or sync run. Earlier queued actions are pushed
before the new one.

Exit codes:
  0 - Action applied or queued
  1 - Action rejected (validation, transition, permission, unknown match)
  2 - Command error

Examples:
  liveledger record create --id m1 --home rovers --away united --location "Pitch 3"
  liveledger record start m1
  liveledger record event m1 --type goal --team rovers --minute 23 --player p9`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.DeviceOptions.bind(cmd, true)
	cmd.PersistentFlags().StringVar(&opts.Operator, "operator", "", "operator id (default device.operator_id)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall time limit")

	cmd.AddCommand(newRecordCreateCommand(opts))
	cmd.AddCommand(newRecordEventCommand(opts))
	cmd.AddCommand(newRecordRescheduleCommand(opts))

	transitions := []struct {
		use, short string
		fn         func(*live.Service, context.Context, string) (live.Outcome, error)
	}{
		{"start", "Kick off a scheduled match", (*live.Service).Start},
		{"halftime", "Go to half time", (*live.Service).Halftime},
		{"resume", "Resume play after half time", (*live.Service).Resume},
		{"end", "Blow the final whistle", (*live.Service).End},
		{"postpone", "Suspend a match that has started", (*live.Service).Postpone},
		{"cancel", "Cancel a match", (*live.Service).Cancel},
		{"delete", "Delete a match (admin only)", (*live.Service).Delete},
	}
	for _, tr := range transitions {
		cmd.AddCommand(&cobra.Command{
			Use:           tr.use + " <match-id>",
			Short:         tr.short,
			Args:          cobra.ExactArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				id := args[0]
				return runRecord(cmd, opts, tr.use, id, func(ctx context.Context, svc *live.Service) (live.Outcome, error) {
					return tr.fn(svc, ctx, id)
				})
			},
		})
	}

	return cmd
}

func newRecordCreateCommand(opts *RecordOptions) *cobra.Command {
	var id, home, away, start, location string

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Schedule a new match",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			startTime := time.Now().UTC()
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --start", err)
				}
				startTime = t
			}
			m := match.LiveMatch{
				ID:         id,
				HomeTeamID: home,
				AwayTeamID: away,
				StartTime:  startTime,
				Location:   location,
			}
			return runRecord(cmd, opts, "create", id, func(ctx context.Context, svc *live.Service) (live.Outcome, error) {
				return svc.Create(ctx, m)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "match id (generated when empty)")
	cmd.Flags().StringVar(&home, "home", "", "home team id")
	cmd.Flags().StringVar(&away, "away", "", "away team id")
	cmd.Flags().StringVar(&start, "start", "", "kick-off time, RFC 3339 (default now)")
	cmd.Flags().StringVar(&location, "location", "", "pitch or venue")
	cmd.MarkFlagRequired("home")
	cmd.MarkFlagRequired("away")

	return cmd
}

func newRecordRescheduleCommand(opts *RecordOptions) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:           "reschedule <match-id>",
		Short:         "Give a postponed match a new kick-off time",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --start", err)
			}
			id := args[0]
			return runRecord(cmd, opts, "reschedule", id, func(ctx context.Context, svc *live.Service) (live.Outcome, error) {
				return svc.Reschedule(ctx, id, t)
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "new kick-off time, RFC 3339")
	cmd.MarkFlagRequired("start")

	return cmd
}

func newRecordEventCommand(opts *RecordOptions) *cobra.Command {
	var (
		ev     match.Event
		evType string
	)

	cmd := &cobra.Command{
		Use:           "event <match-id>",
		Short:         "Append an event to a match ledger",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ev.Type = match.EventType(evType)
			return runRecord(cmd, opts, "event", id, func(ctx context.Context, svc *live.Service) (live.Outcome, error) {
				return svc.AddEvent(ctx, id, ev)
			})
		},
	}

	cmd.Flags().StringVar(&evType, "type", "", "event type, e.g. goal, yellow_card, substitution_in")
	cmd.Flags().StringVar(&ev.TeamID, "team", "", "team id")
	cmd.Flags().IntVar(&ev.Minute, "minute", 0, "match minute")
	cmd.Flags().StringVar(&ev.PlayerID, "player", "", "player id")
	cmd.Flags().StringVar(&ev.Data.GoalType, "goal-type", "", "goal type, e.g. penalty")
	cmd.Flags().StringVar(&ev.Data.CardReason, "card-reason", "", "reason for a card")
	cmd.Flags().StringVar(&ev.Data.Description, "description", "", "free text")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("team")

	return cmd
}

// runRecord wires the device, pushes earlier queued actions when the store
// is reachable, then applies do.
func runRecord(cmd *cobra.Command, opts *RecordOptions, op, matchID string, do action) error {
	if err := opts.resolve(opts.Config); err != nil {
		return WrapExitError(ExitCommandError, "invalid device settings", err)
	}
	if opts.Operator == "" {
		opts.Operator = opts.cfg.Device.OperatorID
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	d, err := openDevice(ctx, &opts.DeviceOptions)
	if err != nil {
		return err
	}
	defer d.Close()

	online := d.monitor.ProbeNow(ctx)
	if err := d.engine.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start sync engine", err)
	}
	defer d.engine.Stop()

	if online && d.engine.Status().PendingItems > 0 {
		if _, err := d.engine.ForceSync(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to push queued actions", err)
		}
	}

	svc := live.New(d.client, d.engine,
		live.WithOperator(live.Operator{ID: opts.Operator, Role: opts.Role}),
		live.WithNotifier(d.notifier(opts.cfg)),
	)

	out, err := do(ctx, svc)
	d.engine.Wait()
	if err != nil {
		return WrapExitError(ExitFailure, op+" rejected", err)
	}

	result := RecordResult{
		Op:          op,
		MatchID:     matchID,
		Deferred:    out.Deferred,
		QueueItemID: out.QueueItemID,
		Pending:     d.engine.Status().PendingItems,
	}
	if out.Match != nil {
		result.MatchID = out.Match.ID
		result.Status = out.Match.Status
	}
	if out.Event != nil {
		result.EventID = out.Event.ID
	}

	f := newFormatter(opts.RootOptions, cmd)
	return f.Render(result, nil, func(w io.Writer) { outputRecordText(w, result) })
}

func outputRecordText(w io.Writer, r RecordResult) {
	what := r.Op
	if r.EventID != "" {
		what = fmt.Sprintf("%s %s", r.Op, r.EventID)
	}
	if r.Deferred {
		fmt.Fprintf(w, "⏸ %s on %s queued (store unreachable), %d action(s) pending\n", what, r.MatchID, r.Pending)
		return
	}
	if r.Status != "" {
		fmt.Fprintf(w, "✓ %s on %s applied (%s)\n", what, r.MatchID, r.Status)
		return
	}
	fmt.Fprintf(w, "✓ %s on %s applied\n", what, r.MatchID)
}
