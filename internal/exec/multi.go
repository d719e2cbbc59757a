package exec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signal_bot/internal/calc"
	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/tpassign"
	"signal_bot/pkg/logger"
)

// MultiMarketStop — серия market/stop суб-ордеров одного юнита,
// каждому свой TP: частичная фиксация через последовательные тейки.
type MultiMarketStop struct {
	d Deps
}

func (m *MultiMarketStop) Execute(ctx context.Context, p Plan) (models.Outcome, error) {
	sig := p.Signal
	var out models.Outcome

	si, err := m.d.GW.Symbol(ctx, sig.Symbol)
	if err != nil {
		return out, fmt.Errorf("multi: %w", err)
	}

	split := calc.SplitLot(p.Lot, si)
	volumes := split.Volumes()
	total := split.Total()
	if total == 0 {
		m.d.Notifier.Sendf("❌ Серия не открыта [MsgID %d]: лот %s не делится на юниты",
			sig.MsgID, helper.FormatVolume(p.Lot))
		return out, fmt.Errorf("multi: нулевая серия из лота %g", p.Lot)
	}

	tps, err := tpassign.Assign(m.d.Cfg.Trading.TPAssignMode, m.d.Cfg.Trading.TPMapping, total, sig.TakeProfits)
	if err != nil {
		logger.Warn("multi: кривая настройка раздачи TP, вся серия без тейков: %v", err)
		tps = make([]float64, total)
	}

	isPending := p.Kind == models.OrderStop
	entry := p.Entry
	if isPending {
		tick, err := m.d.GW.Tick(ctx, sig.Symbol)
		if err != nil {
			return out, fmt.Errorf("multi: %w", err)
		}
		entry = helper.RoundToTick(
			calc.AdjustEntryForSpread(entry, sig.Direction, tick.Spread(), si), si.TickSize)
	}

	var lines []string
	var lastErr string

	for i, vol := range volumes {
		tp := tps[i]
		if m.d.Cfg.Trading.PartialTPFree && i >= 1 {
			tp = 0
		}

		comment := fmt.Sprintf("TB SigID %d Seq %d/%d", sig.MsgID, i+1, total)
		if split.Remainder > 0 && i == total-1 {
			comment += " (Rem)"
		}

		req := service.OrderRequest{
			Symbol:    sig.Symbol,
			Direction: sig.Direction,
			Kind:      p.Kind,
			Volume:    vol,
			SL:        sig.StopLoss,
			TP:        tp,
			Comment:   comment,
		}
		if isPending {
			req.Price = entry
		}

		out.Attempted++
		res, err := m.d.GW.PlaceWithRetry(ctx, req)
		if err != nil {
			lastErr = err.Error()
			out.Failed = append(out.Failed, models.TicketResult{Err: lastErr, Note: comment})
			logger.Error("multi: суб-ордер %d/%d не прошёл: %v", i+1, total, err)
			continue
		}

		entryPrice := entry
		if !isPending && res.Price > 0 {
			entryPrice = res.Price
		}
		m.d.Store.AddTrade(models.TradeInfo{
			Ticket:         res.Order,
			Symbol:         sig.Symbol,
			Direction:      sig.Direction,
			OrderKind:      p.Kind,
			Volume:         vol,
			OriginalVolume: vol,
			EntryPrice:     entryPrice,
			StopLoss:       sig.StopLoss,
			TakeProfit:     tp,
			AllTPs:         sig.TakeProfits,
			OriginalMsgID:  sig.MsgID,
			Sequence:       &models.SequenceInfo{Index: i + 1, Total: total},
			IsPending:      isPending,
			Comment:        comment,
			OpenedAt:       time.Now().UTC(),
		})
		out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: res.Order, OK: true, Note: comment})
		lines = append(lines, fmt.Sprintf("%d. тикет %d, lot=%s, TP=%s",
			i+1, res.Order, helper.FormatVolume(vol), formatOptPrice(tp, si.Digits)))
	}

	switch {
	case len(out.Succeeded) == 0:
		m.d.Notifier.Sendf("❌ Серия не открыта [MsgID %d]: все %d суб-ордеров отклонены. Последняя ошибка: %s",
			sig.MsgID, total, lastErr)
	case len(out.Failed) > 0:
		m.d.Notifier.Sendf("⚠️ Серия открыта частично (%d/%d) [MsgID %d]\n%s %s, SL=%s\n%s\nОшибок: %d, последняя: %s",
			len(out.Succeeded), total, sig.MsgID, sig.Symbol, sig.Direction,
			formatOptPrice(sig.StopLoss, si.Digits), strings.Join(lines, "\n"), len(out.Failed), lastErr)
	default:
		m.d.Notifier.Sendf("✅ Серия открыта (%d/%d) [MsgID %d]\n%s %s, SL=%s\n%s",
			len(out.Succeeded), total, sig.MsgID, sig.Symbol, sig.Direction,
			formatOptPrice(sig.StopLoss, si.Digits), strings.Join(lines, "\n"))
	}

	return out, nil
}
