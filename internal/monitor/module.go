package monitor

import (
	"context"

	"signal_bot/internal/journal"
	"signal_bot/internal/modules/config"
	gateway "signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/notify"
	"signal_bot/internal/state"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("monitor",
		fx.Provide(
			journal.NewRepo,
			func(gw *gateway.Client, st *state.Store, n notify.Notifier, jr *journal.Repo, cfg *config.Config) *Monitor {
				return New(gw, st, n, jr, cfg)
			},
		),

		fx.Invoke(
			func(lc fx.Lifecycle, m *Monitor, jr *journal.Repo) {
				var cancel context.CancelFunc
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						if err := jr.EnsureSchema(ctx); err != nil {
							return err
						}
						var runCtx context.Context
						runCtx, cancel = context.WithCancel(context.Background())
						go m.Run(runCtx)
						return nil
					},
					OnStop: func(ctx context.Context) error {
						if cancel != nil {
							cancel()
						}
						return nil
					},
				})
			},
		),
	)
}
