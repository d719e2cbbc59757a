package main

import (
	"context"
	"log"

	"signal_bot/internal/modules/analyzer"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/gateway"
	"signal_bot/internal/modules/postgres"
	telegram "signal_bot/internal/modules/telegram_bot"
	"signal_bot/internal/monitor"
	"signal_bot/internal/processor"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(
			func(cfg *config.Config) error {
				logger.SetServiceName("signal_bot")
				logger.Init(logger.FileConfig{
					Path:       cfg.Logging.File,
					MaxSizeMB:  cfg.Logging.MaxSizeMB,
					MaxBackups: cfg.Logging.MaxBackups,
					MaxAgeDays: cfg.Logging.MaxAgeDays,
				})
				if cfg.Tracing.Enabled {
					tracing.SetServiceName("signal_bot")
					_, _, err := tracing.InitTracer(tracing.Config{
						Host: cfg.Tracing.Host,
						Port: cfg.Tracing.Port,
					})
					return err
				}
				return nil
			},
		),
		postgres.Module(),
		gateway.Module(),
		analyzer.Module(),
		telegram.Module(),
		processor.Module(),
		monitor.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
