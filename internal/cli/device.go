package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/liveledger/internal/config"
	"github.com/roach88/liveledger/internal/connectivity"
	"github.com/roach88/liveledger/internal/engine"
	"github.com/roach88/liveledger/internal/live"
	"github.com/roach88/liveledger/internal/localstore"
	"github.com/roach88/liveledger/internal/notify"
	"github.com/roach88/liveledger/internal/queue"
	"github.com/roach88/liveledger/internal/remote"
)

// DeviceOptions holds the flags shared by commands acting as an operator
// device: a local queue in front of a remote match store.
type DeviceOptions struct {
	QueueDB    string
	Remote     string
	Role       string
	MaxRetries int

	cfg *config.Config
}

// bind registers the device flags on cmd, as persistent flags when the
// command is a group.
func (o *DeviceOptions) bind(cmd *cobra.Command, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	flags.StringVar(&o.QueueDB, "queue-db", "", "path to the device queue database (default device.queue_db)")
	flags.StringVar(&o.Remote, "remote", "", "match store server URL (default device.remote_url)")
	flags.StringVar(&o.Role, "role", "", "operator role (default device.operator_role)")
	flags.IntVar(&o.MaxRetries, "max-retries", 0, "attempts per mutation (default device.max_retries)")
}

// resolve fills unset flags from the config file and environment.
func (o *DeviceOptions) resolve(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	o.cfg = cfg
	if o.QueueDB == "" {
		o.QueueDB = cfg.Device.QueueDB
	}
	if o.Remote == "" {
		o.Remote = cfg.Device.RemoteURL
	}
	if o.Role == "" {
		o.Role = cfg.Device.OperatorRole
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = cfg.Device.MaxRetries
	}
	if o.Remote == "" {
		return fmt.Errorf("no remote: set --remote or device.remote_url")
	}
	return nil
}

// device is the wired device stack. Close releases it.
type device struct {
	kv      *localstore.KV
	queue   *queue.Queue
	client  *remote.Client
	monitor *connectivity.Monitor
	engine  *engine.Engine
	closers []func() error
}

// openDevice opens the queue database and wires the queue, remote client,
// connectivity monitor and sync engine. The engine is not started.
func openDevice(ctx context.Context, o *DeviceOptions) (*device, error) {
	kv, err := localstore.Open(o.QueueDB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open queue database", err)
	}
	d := &device{kv: kv}
	d.closers = append(d.closers, kv.Close)

	d.queue, err = queue.Open(ctx, kv, queue.WithMaxRetries(o.MaxRetries))
	if err != nil {
		d.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load queue", err)
	}
	d.closers = append(d.closers, d.queue.Close)

	d.client, err = remote.New(o.Remote, remote.WithRole(o.Role))
	if err != nil {
		d.Close()
		return nil, WrapExitError(ExitCommandError, "invalid remote", err)
	}

	monOpts := []connectivity.Option{connectivity.WithProber(d.client)}
	if o.cfg != nil {
		monOpts = append(monOpts,
			connectivity.WithInterval(o.cfg.Device.ProbeInterval),
			connectivity.WithProbeTimeout(o.cfg.Device.ProbeTimeout),
		)
	}
	d.monitor = connectivity.New(monOpts...)
	d.engine = engine.New(d.client, d.queue, d.monitor)
	return d, nil
}

// notifier builds the milestone notifier: the log, plus the AMQP exchange
// when one is configured. A broker that cannot be reached is skipped.
func (d *device) notifier(cfg *config.Config) live.Notifier {
	n := notify.Multi{notify.LogNotifier{}}
	if cfg == nil || cfg.AMQP.URL == "" {
		return n
	}
	broker, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		slog.Warn("notification broker unavailable", "error", err)
		return n
	}
	d.closers = append(d.closers, broker.Close)
	return append(n, broker)
}

// Close releases everything in reverse order of opening.
func (d *device) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Debug("device close", "error", err)
		}
	}
	d.closers = nil
}
