package gateway

import (
	"context"

	"signal_bot/internal/modules/gateway/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(
			service.NewClient, // *service.Client
		),
		fx.Invoke(
			func(lc fx.Lifecycle, c *service.Client, ctx context.Context) {
				lc.Append(fx.Hook{
					OnStart: func(_ context.Context) error {
						c.StartTickStream(ctx)
						return nil
					},
				})
			},
		),
	)
}
