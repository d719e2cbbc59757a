package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"signal_bot/pkg/logger"

	"github.com/google/uuid"
)

// PlaceOrder — одна попытка постановки; реткод != DONE уходит как *BridgeError.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if req.Volume <= 0 {
		return OrderResult{}, fmt.Errorf("PlaceOrder: volume <= 0")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.FillMode == "" {
		req.FillMode = FillIOC
	}

	var out OrderResult
	if err := c.do(ctx, http.MethodPost, "/trade/order", req, &out); err != nil {
		return OrderResult{}, fmt.Errorf("PlaceOrder %s %s: %w", req.Symbol, req.Kind, err)
	}

	if out.Retcode != RetcodeDone && out.Retcode != RetcodeDonePartial {
		return out, &BridgeError{Retcode: out.Retcode, Comment: out.Comment}
	}
	return out, nil
}

// PlaceWithRetry — постановка с бюджетом реквотов.
// REQUOTE / PRICE_CHANGED / PRICE_OFF: пауза и повтор, бюджет уменьшается.
// INVALID_FILL: переключаем IOC<->FOK, попытку не тратим.
func (c *Client) PlaceWithRetry(ctx context.Context, req OrderRequest) (OrderResult, error) {
	fill := FillIOC
	budget := c.cfg.Bridge.RetryMax
	if budget < 1 {
		budget = 1
	}

	var lastErr error
	flips := 0
	for attempt := 0; attempt < budget; attempt++ {
		req.FillMode = fill
		res, err := c.PlaceOrder(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		be, ok := err.(*BridgeError)
		if !ok {
			return res, err // транспорт или валидация — повтор не поможет
		}

		switch {
		case be.Retcode == RetcodeInvalidFill:
			if flips >= 2 {
				return res, err // оба режима отклонены
			}
			flips++
			if fill == FillIOC {
				fill = FillFOK
			} else {
				fill = FillIOC
			}
			logger.Warn("PlaceWithRetry %s: fill mode отклонён, переключаемся на %s", req.Symbol, fill)
			attempt-- // смена режима не тратит бюджет реквотов
		case IsRetryableRetcode(be.Retcode):
			logger.Warn("PlaceWithRetry %s: retcode=%d (%s), попытка %d/%d",
				req.Symbol, be.Retcode, be.Comment, attempt+1, budget)
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(c.cfg.Bridge.RetryPause):
			}
		default:
			return res, err
		}
	}
	return OrderResult{}, fmt.Errorf("PlaceWithRetry %s: бюджет попыток исчерпан: %w", req.Symbol, lastErr)
}
