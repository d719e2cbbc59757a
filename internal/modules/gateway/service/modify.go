package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ModifyPosition — перестановка SL/TP открытой позиции. 0 — оставить как есть.
func (c *Client) ModifyPosition(ctx context.Context, ticket int64, sl, tp float64) error {
	body := map[string]any{
		"ticket": ticket,
		"sl":     sl,
		"tp":     tp,
	}

	var out OrderResult
	if err := c.do(ctx, http.MethodPost, "/trade/modify", body, &out); err != nil {
		return fmt.Errorf("ModifyPosition %d: %w", ticket, err)
	}
	if out.Retcode != RetcodeDone {
		return &BridgeError{Retcode: out.Retcode, Comment: out.Comment}
	}
	return nil
}

// ModifyOrder — перестановка цены/стопов отложенного ордера.
func (c *Client) ModifyOrder(ctx context.Context, ticket int64, price, sl, tp float64) error {
	body := map[string]any{
		"ticket": ticket,
		"price":  price,
		"sl":     sl,
		"tp":     tp,
	}

	var out OrderResult
	if err := c.do(ctx, http.MethodPost, "/trade/modify_order", body, &out); err != nil {
		return fmt.Errorf("ModifyOrder %d: %w", ticket, err)
	}
	if out.Retcode != RetcodeDone {
		return &BridgeError{Retcode: out.Retcode, Comment: out.Comment}
	}
	return nil
}

// ClosePosition — закрытие; volume 0 — весь объём.
// Исчезнувшая позиция — успех: результат тот же, позиции нет.
func (c *Client) ClosePosition(ctx context.Context, ticket int64, volume float64) (OrderResult, error) {
	body := map[string]any{
		"ticket": ticket,
		"volume": volume,
	}

	var out OrderResult
	err := c.do(ctx, http.MethodPost, "/trade/close", body, &out)
	if err != nil {
		if isPositionGone(err) {
			return OrderResult{Retcode: RetcodeDone}, nil
		}
		return OrderResult{}, fmt.Errorf("ClosePosition %d: %w", ticket, err)
	}
	if out.Retcode != RetcodeDone && out.Retcode != RetcodeDonePartial {
		return out, &BridgeError{Retcode: out.Retcode, Comment: out.Comment}
	}
	return out, nil
}

// CancelOrder — снятие отложенного ордера; уже снятый — успех.
func (c *Client) CancelOrder(ctx context.Context, ticket int64) error {
	body := map[string]any{
		"ticket": ticket,
	}

	var out OrderResult
	err := c.do(ctx, http.MethodPost, "/trade/cancel", body, &out)
	if err != nil {
		if isPositionGone(err) {
			return nil
		}
		return fmt.Errorf("CancelOrder %d: %w", ticket, err)
	}
	if out.Retcode != RetcodeDone {
		return &BridgeError{Retcode: out.Retcode, Comment: out.Comment}
	}
	return nil
}

func isPositionGone(err error) bool {
	s := err.Error()
	return strings.Contains(s, "http 404") || strings.Contains(s, "position not found") ||
		strings.Contains(s, "order not found")
}
