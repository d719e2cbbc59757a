package exec

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/calc"
	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/tpassign"
	"signal_bot/pkg/logger"
)

// SingleTrade — один ордер на весь лот.
type SingleTrade struct {
	d Deps
}

func (s *SingleTrade) Execute(ctx context.Context, p Plan) (models.Outcome, error) {
	sig := p.Signal
	out := models.Outcome{Attempted: 1}

	si, err := s.d.GW.Symbol(ctx, sig.Symbol)
	if err != nil {
		return out, fmt.Errorf("single: %w", err)
	}
	tick, err := s.d.GW.Tick(ctx, sig.Symbol)
	if err != nil {
		return out, fmt.Errorf("single: %w", err)
	}

	isPending := p.Kind != models.OrderMarket
	entry := p.Entry
	// Лимитку на спред не двигаем: BUY LIMIT поправкой вверх уедет к ask.
	if p.Kind == models.OrderStop {
		entry = helper.RoundToTick(
			calc.AdjustEntryForSpread(entry, sig.Direction, tick.Spread(), si), si.TickSize)
	}

	tp := s.pickTP(sig)
	autoTP := false
	if tp == 0 && s.d.Cfg.AutoTP.Enabled {
		base := entry
		if !isPending {
			base = tick.Ask
			if sig.Direction == models.Sell {
				base = tick.Bid
			}
		}
		tp = calc.AutoStopPrice(base, sig.Direction, s.d.Cfg.AutoTP.DistancePips, si, true)
		autoTP = true
	}

	req := service.OrderRequest{
		Symbol:    sig.Symbol,
		Direction: sig.Direction,
		Kind:      p.Kind,
		Volume:    p.Lot,
		Price:     entry, // 0 для market
		SL:        sig.StopLoss,
		TP:        tp,
		Comment:   fmt.Sprintf("TB SigID %d", sig.MsgID),
	}
	if !isPending {
		req.Price = 0
	}

	res, err := s.d.GW.PlaceWithRetry(ctx, req)
	if err != nil {
		out.Failed = append(out.Failed, models.TicketResult{Err: err.Error()})
		s.d.Notifier.Sendf("❌ Сделка не открыта [MsgID %d] %s %s: %v",
			sig.MsgID, sig.Symbol, sig.Direction, err)
		return out, nil
	}

	entryPrice := entry
	if !isPending && res.Price > 0 {
		entryPrice = res.Price
	}

	trade := models.TradeInfo{
		Ticket:         res.Order,
		Symbol:         sig.Symbol,
		Direction:      sig.Direction,
		OrderKind:      p.Kind,
		Volume:         p.Lot,
		OriginalVolume: p.Lot,
		EntryPrice:     entryPrice,
		StopLoss:       sig.StopLoss,
		TakeProfit:     tp,
		AllTPs:         sig.TakeProfits,
		AutoTPApplied:  autoTP,
		OriginalMsgID:  sig.MsgID,
		IsPending:      isPending,
		Comment:        req.Comment,
		OpenedAt:       time.Now().UTC(),
	}
	if s.d.Cfg.AutoSL.Enabled && sig.StopLoss == 0 && !isPending {
		trade.AutoSLSince = time.Now().UTC()
	}
	s.d.Store.AddTrade(trade)

	out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: res.Order, OK: true})

	tpNote := "нет"
	if tp > 0 {
		tpNote = helper.FormatPrice(tp, si.Digits)
		if autoTP {
			tpNote += " (авто)"
		}
	}
	s.d.Notifier.Sendf("✅ Сделка открыта [MsgID %d]\n%s %s %s lot=%s\nвход=%s SL=%s TP=%s тикет=%d",
		sig.MsgID, sig.Symbol, sig.Direction, p.Kind, helper.FormatVolume(p.Lot),
		helper.FormatPrice(entryPrice, si.Digits), formatOptPrice(sig.StopLoss, si.Digits), tpNote, res.Order)

	return out, nil
}

// pickTP — TP одиночной сделки по настроенной политике раздачи.
func (s *SingleTrade) pickTP(sig models.SignalData) float64 {
	tps, err := tpassign.Assign(s.d.Cfg.Trading.TPAssignMode, s.d.Cfg.Trading.TPMapping, 1, sig.TakeProfits)
	if err != nil {
		logger.Warn("single: кривая настройка раздачи TP, идём без тейка: %v", err)
		return 0
	}
	return tps[0]
}

func formatOptPrice(px float64, digits int) string {
	if px <= 0 {
		return "нет"
	}
	return helper.FormatPrice(px, digits)
}
