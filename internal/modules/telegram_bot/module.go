package telegram

import (
	"context"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	gateway "signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/notify"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// 1. Клиент Telegram: канал + чат оператора
		fx.Provide(
			func(cfg *config.Config, gw *gateway.Client) (*notify.Telegram, error) {
				return notify.NewTelegram(
					cfg.Telegram.Token,
					cfg.Telegram.OperatorChatID,
					cfg.Telegram.ChannelID,
					gw,
				)
			},
		),

		// 2. Адаптеры: нотифайер и поток сообщений канала
		fx.Provide(
			func(t *notify.Telegram) notify.Notifier {
				if t == nil {
					logger.Warn("telegram не настроен, уведомления идут в stdout")
					return notify.NewStdout()
				}
				return t
			},
			func(t *notify.Telegram) <-chan models.ChannelEvent {
				return t.Events()
			},
		),

		// Запуск long-polling через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *notify.Telegram) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return t.Start(context.Background())
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
