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

// DistributedLimits — раскладка лота отложенными ордерами по зоне входа.
type DistributedLimits struct {
	d Deps
}

func (ds *DistributedLimits) Execute(ctx context.Context, p Plan) (models.Outcome, error) {
	sig := p.Signal
	var out models.Outcome

	if sig.Entry.Kind != models.EntryRange {
		return out, fmt.Errorf("distributed: вход не диапазон: %s", sig.Entry)
	}
	low, high := sig.Entry.Low, sig.Entry.High

	si, err := ds.d.GW.Symbol(ctx, sig.Symbol)
	if err != nil {
		return out, fmt.Errorf("distributed: %w", err)
	}

	split := calc.SplitLot(p.Lot, si)
	volumes := split.Volumes()
	total := split.Total()
	if total == 0 {
		ds.d.Notifier.Sendf("❌ Раскладка не выполнена [MsgID %d]: нулевая серия из лота %s",
			sig.MsgID, helper.FormatVolume(p.Lot))
		return out, fmt.Errorf("distributed: нулевая серия из лота %g", p.Lot)
	}

	tps, err := tpassign.Assign(ds.d.Cfg.Trading.TPAssignMode, ds.d.Cfg.Trading.TPMapping, total, sig.TakeProfits)
	if err != nil {
		logger.Warn("distributed: кривая настройка раздачи TP, вся раскладка без тейков: %v", err)
		tps = make([]float64, total)
	}

	points := splitPoints(sig.Direction, low, high, total)
	zoneLow, zoneHigh := points[0], points[0]
	for _, px := range points {
		if px < zoneLow {
			zoneLow = px
		}
		if px > zoneHigh {
			zoneHigh = px
		}
	}

	var lines []string
	var lastErr string

	for i, vol := range volumes {
		entry := helper.RoundToTick(points[i], si.TickSize)

		tick, err := ds.d.GW.Tick(ctx, sig.Symbol)
		if err != nil {
			lastErr = err.Error()
			out.Attempted++
			out.Failed = append(out.Failed, models.TicketResult{Err: lastErr})
			continue
		}

		// Рынок внутри зоны — отложка по этим ценам невалидна, пропускаем.
		if sig.Direction == models.Buy && zoneLow < tick.Ask && tick.Ask < zoneHigh {
			logger.Warn("distributed: ask %g внутри зоны %g-%g, ордер %d/%d пропущен",
				tick.Ask, zoneLow, zoneHigh, i+1, total)
			out.Skipped++
			continue
		}
		if sig.Direction == models.Sell && zoneLow < tick.Bid && tick.Bid < zoneHigh {
			logger.Warn("distributed: bid %g внутри зоны %g-%g, ордер %d/%d пропущен",
				tick.Bid, zoneLow, zoneHigh, i+1, total)
			out.Skipped++
			continue
		}

		// Тип каждой отложки подбираем по текущему рынку.
		kind := models.OrderLimit
		if sig.Direction == models.Buy && entry >= tick.Ask {
			kind = models.OrderStop
		}
		if sig.Direction == models.Sell && entry <= tick.Bid {
			kind = models.OrderStop
		}

		entry = ds.adjustLimitForSpread(entry, kind, sig.Direction, tick, si)

		tp := tps[i]
		if ds.d.Cfg.Trading.PartialTPFree && i >= 1 {
			tp = 0
		}

		comment := fmt.Sprintf("TB SigID %d Dist %d/%d", sig.MsgID, i+1, total)

		out.Attempted++
		res, err := ds.d.GW.PlaceWithRetry(ctx, service.OrderRequest{
			Symbol:    sig.Symbol,
			Direction: sig.Direction,
			Kind:      kind,
			Volume:    vol,
			Price:     entry,
			SL:        sig.StopLoss,
			TP:        tp,
			Comment:   comment,
		})
		if err != nil {
			lastErr = err.Error()
			out.Failed = append(out.Failed, models.TicketResult{Err: lastErr, Note: comment})
			logger.Error("distributed: ордер %d/%d не прошёл: %v", i+1, total, err)
			continue
		}

		ds.d.Store.AddTrade(models.TradeInfo{
			Ticket:         res.Order,
			Symbol:         sig.Symbol,
			Direction:      sig.Direction,
			OrderKind:      kind,
			Volume:         vol,
			OriginalVolume: vol,
			EntryPrice:     entry,
			StopLoss:       sig.StopLoss,
			TakeProfit:     tp,
			AllTPs:         sig.TakeProfits,
			OriginalMsgID:  sig.MsgID,
			Sequence:       &models.SequenceInfo{Index: i + 1, Total: total},
			IsPending:      true,
			Comment:        comment,
			OpenedAt:       time.Now().UTC(),
		})
		out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: res.Order, OK: true, Note: comment})
		lines = append(lines, fmt.Sprintf("%d. тикет %d, %s @ %s, lot=%s, TP=%s",
			i+1, res.Order, kind, helper.FormatPrice(entry, si.Digits),
			helper.FormatVolume(vol), formatOptPrice(tp, si.Digits)))
	}

	switch {
	case len(out.Succeeded) == 0 && out.Skipped == total:
		ds.d.Notifier.Sendf("⚠️ Раскладка [MsgID %d]: рынок внутри зоны %s-%s, все %d ордеров пропущены",
			sig.MsgID, helper.FormatPrice(low, si.Digits), helper.FormatPrice(high, si.Digits), total)
	case len(out.Succeeded) == 0:
		ds.d.Notifier.Sendf("❌ Раскладка не выполнена [MsgID %d]: поставлено 0/%d. Последняя ошибка: %s",
			sig.MsgID, total, lastErr)
	case len(out.Failed) > 0 || out.Skipped > 0:
		ds.d.Notifier.Sendf("⚠️ Раскладка частично (%d/%d, пропущено %d) [MsgID %d]\n%s %s, зона %s-%s, SL=%s\n%s",
			len(out.Succeeded), total, out.Skipped, sig.MsgID, sig.Symbol, sig.Direction,
			helper.FormatPrice(low, si.Digits), helper.FormatPrice(high, si.Digits),
			formatOptPrice(sig.StopLoss, si.Digits), strings.Join(lines, "\n"))
	default:
		ds.d.Notifier.Sendf("✅ Раскладка поставлена (%d/%d) [MsgID %d]\n%s %s, зона %s-%s, SL=%s\n%s",
			len(out.Succeeded), total, sig.MsgID, sig.Symbol, sig.Direction,
			helper.FormatPrice(low, si.Digits), helper.FormatPrice(high, si.Digits),
			formatOptPrice(sig.StopLoss, si.Digits), strings.Join(lines, "\n"))
	}

	return out, nil
}

// splitPoints — цены раскладки: покупки от верхней границы вниз,
// продажи от нижней вверх; одиночный ордер встаёт на ближний край.
func splitPoints(dir models.Direction, low, high float64, total int) []float64 {
	if total == 1 {
		if dir == models.Buy {
			return []float64{high}
		}
		return []float64{low}
	}

	out := make([]float64, 0, total)
	span := high - low
	for i := 0; i < total; i++ {
		ratio := float64(i) / float64(total-1)
		if dir == models.Buy {
			out = append(out, high-ratio*span)
		} else {
			out = append(out, low+ratio*span)
		}
	}
	return out
}

// adjustLimitForSpread — поправка лимиток на спред; BUY LIMIT не поднимаем
// до ask и выше, иначе брокер отвергнет цену.
func (ds *DistributedLimits) adjustLimitForSpread(entry float64, kind models.OrderKind, dir models.Direction, tick service.Tick, si service.SymbolInfo) float64 {
	if kind != models.OrderLimit {
		return entry
	}
	spread := tick.Spread()
	if spread <= 0 {
		return entry
	}
	if dir == models.Buy {
		tentative := helper.RoundToTick(entry+spread, si.TickSize)
		if tentative >= tick.Ask {
			return entry
		}
		return tentative
	}
	return helper.RoundToTick(entry-spread, si.TickSize)
}
