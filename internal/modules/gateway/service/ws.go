package service

import (
	"context"
	"time"

	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// StartTickStream — поток тиков бриджа в кэш клиента.
// Реконнект с нарастающей паузой; REST-фоллбек в Tick() прикрывает разрывы.
func (c *Client) StartTickStream(ctx context.Context) {
	if c.cfg.Bridge.WSURL == "" {
		logger.Info("ws: адрес не задан, работаем только по REST")
		return
	}

	go func() {
		backoff := time.Second
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := c.runTickStream(ctx); err != nil {
				logger.Warn("ws: поток тиков оборвался: %v, реконнект через %s", err, backoff)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
}

func (c *Client) runTickStream(ctx context.Context) error {
	conn, _, err := c.wsDialer.DialContext(ctx, c.cfg.Bridge.WSURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("ws: подключен к %s", c.cfg.Bridge.WSURL)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var t Tick
		if err := sonic.Unmarshal(raw, &t); err != nil {
			logger.Warn("ws: непонятный тик: %v", err)
			continue
		}
		if t.Symbol == "" || t.Bid <= 0 || t.Ask <= 0 {
			continue
		}
		c.storeTick(t)
	}
}
