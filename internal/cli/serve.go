package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/liveledger/internal/config"
	"github.com/roach88/liveledger/internal/relay"
	"github.com/roach88/liveledger/internal/server"
	"github.com/roach88/liveledger/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the match store over HTTP",
		Long: `Run the match store server that operator devices sync against.

Settings come from --config, a local .env file and LIVELEDGER_* variables.
When redis.url is set, committed changes are relayed to the other replicas
sharing the same Redis stream.

Examples:
  liveledger serve --config ./liveledger.yaml
  LIVELEDGER_STORE_DRIVER=postgres LIVELEDGER_STORE_DSN=postgres://... liveledger serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}

	var storeOpts []store.Option
	var changes *relay.Redis
	if cfg.Redis.URL != "" {
		ropts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to parse redis url", err)
		}
		client := redis.NewClient(ropts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		changes = relay.NewRedis(client, cfg.Redis.Stream)
		storeOpts = append(storeOpts, store.WithRelay(changes))
	}

	st, err := openStore(cfg.Store.Driver, cfg.Store.DSN, storeOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open match store", err)
	}
	defer st.Close()
	slog.Info("match store opened", "driver", cfg.Store.Driver, "origin", st.Origin())

	if changes != nil {
		go func() {
			if err := changes.Run(ctx, st); err != nil && ctx.Err() == nil {
				slog.Error("change relay stopped", "error", err)
			}
		}()
	}

	srv := server.New(st, server.WithCORSOrigins(cfg.Server.CORSOrigins))
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}
