package processor

import (
	"context"

	"signal_bot/internal/models"
	aservice "signal_bot/internal/modules/analyzer/service"
	"signal_bot/internal/modules/config"
	gateway "signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/notify"
	"signal_bot/internal/state"
	"signal_bot/internal/updates"

	"go.uber.org/fx"
)

// analyzerAdapter приводит ответ анализатора к локальному Verdict.
type analyzerAdapter struct {
	c *aservice.Client
}

func (a analyzerAdapter) Analyze(ctx context.Context, text string, edited bool, replyToID int,
	history []string, price float64) (Verdict, error) {

	v, err := a.c.Analyze(ctx, text, edited, replyToID, history, price)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Type: v.Type, Signal: v.Signal, Update: v.Update}, nil
}

func Module() fx.Option {
	return fx.Module("processor",
		fx.Provide(
			func(cfg *config.Config) *state.Store {
				return state.NewStore(cfg.LLM.HistorySize, cfg.DedupCapacity)
			},
		),

		fx.Provide(
			func(c *aservice.Client) Analyzer { return analyzerAdapter{c: c} },
			func(gw *gateway.Client, st *state.Store, n notify.Notifier, cfg *config.Config) Dispatcher {
				return updates.NewDispatcher(gw, st, n, cfg)
			},
			func(an Analyzer, gw *gateway.Client, st *state.Store, n notify.Notifier,
				disp Dispatcher, cfg *config.Config, events <-chan models.ChannelEvent) *Processor {
				return New(an, gw, st, n, disp, cfg, events)
			},
		),

		fx.Invoke(
			func(lc fx.Lifecycle, p *Processor) {
				var cancel context.CancelFunc
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						var runCtx context.Context
						runCtx, cancel = context.WithCancel(context.Background())
						go p.Run(runCtx)
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
