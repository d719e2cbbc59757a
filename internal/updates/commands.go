package updates

import (
	"context"
	"sort"
	"time"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/state"
	"signal_bot/pkg/logger"
)

// Gateway — операции бриджа, нужные командам-обновлениям.
type Gateway interface {
	Symbol(ctx context.Context, symbol string) (service.SymbolInfo, error)
	Positions(ctx context.Context) ([]service.Position, error)
	ModifyPosition(ctx context.Context, ticket int64, sl, tp float64) error
	ModifyOrder(ctx context.Context, ticket int64, price, sl, tp float64) error
	ClosePosition(ctx context.Context, ticket int64, volume float64) (service.OrderResult, error)
	CancelOrder(ctx context.Context, ticket int64) error
}

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Dispatcher разводит команды по сделкам исходного сигнала.
type Dispatcher struct {
	gw  Gateway
	st  *state.Store
	n   Notifier
	cfg *config.Config
}

func NewDispatcher(gw Gateway, st *state.Store, n Notifier, cfg *config.Config) *Dispatcher {
	return &Dispatcher{gw: gw, st: st, n: n, cfg: cfg}
}

// Dispatch — исчерпывающий разбор команды. Правки SL/TP/входа раздаются
// всем сделкам сигнала, закрытие и снятие бьют по одной цели.
func (d *Dispatcher) Dispatch(ctx context.Context, upd models.UpdateData) models.Outcome {
	trades := d.targetTrades(&upd)
	if len(trades) == 0 {
		d.n.Sendf("ℹ️ Обновление [MsgID %d]: активных сделок по сигналу не осталось", upd.TargetMsgID)
		return models.Outcome{}
	}
	sortBySequence(trades)

	switch upd.Kind {
	case models.UpdateModifySLTP:
		if !d.cfg.Updates.AllowModifySLTP {
			return d.skipDisabled(upd, len(trades))
		}
		return d.modifySLTP(ctx, upd, trades)
	case models.UpdateMoveSL:
		if !d.cfg.Updates.AllowMoveSL {
			return d.skipDisabled(upd, len(trades))
		}
		return d.moveSL(ctx, upd, trades)
	case models.UpdateSetBE:
		if !d.cfg.Updates.AllowSetBE {
			return d.skipDisabled(upd, len(trades))
		}
		return d.setBE(ctx, upd, trades)
	case models.UpdateModifyEntry:
		if !d.cfg.Updates.AllowModifyEntry {
			return d.skipDisabled(upd, len(trades))
		}
		return d.modifyEntry(ctx, upd, trades)
	case models.UpdateCloseTrade:
		if !d.cfg.Updates.AllowClose {
			return d.skipDisabled(upd, 1)
		}
		return d.closeTrade(ctx, upd, trades)
	case models.UpdatePartialClose:
		if !d.cfg.Updates.AllowPartialClose {
			return d.skipDisabled(upd, 1)
		}
		return d.partialClose(ctx, upd, trades)
	case models.UpdateCancelPending:
		if !d.cfg.Updates.AllowCancelPending {
			return d.skipDisabled(upd, 1)
		}
		return d.cancelPending(ctx, upd, trades)
	case models.UpdateUnknown:
		logger.Warn("updates: нераспознанная команда по сигналу %d", upd.TargetMsgID)
		d.n.Sendf("🤷 Обновление [MsgID %d]: команда не распознана, ничего не делаем", upd.TargetMsgID)
		return models.Outcome{}
	}

	logger.Error("updates: необработанный тип команды %q", upd.Kind)
	return models.Outcome{}
}

// targetTrades — сделки, к которым относится команда. Правки и реплаи несут
// id исходного сигнала. Свежее сообщение без привязки бьёт по последней
// открытой сделке, с учётом подсказки символа. Номер из классификатора
// перекрывает всё: это позиция в списке активных сделок, старые первыми.
func (d *Dispatcher) targetTrades(upd *models.UpdateData) []models.TradeInfo {
	if upd.TargetTradeIndex > 0 {
		all := d.st.AllTrades()
		sortByOpenedAt(all)
		if idx := upd.TargetTradeIndex - 1; idx < len(all) {
			tr := all[idx]
			upd.TargetMsgID = tr.OriginalMsgID
			return []models.TradeInfo{tr}
		}
		logger.Warn("updates: индекс целевой сделки %d вне списка из %d активных", upd.TargetTradeIndex, len(d.st.AllTrades()))
	}

	if upd.TargetMsgID > 0 {
		return d.st.TradesByMsgID(upd.TargetMsgID)
	}

	var latest *models.TradeInfo
	all := d.st.AllTrades()
	for i := range all {
		if upd.Symbol != "" && all[i].Symbol != upd.Symbol {
			continue
		}
		if latest == nil || all[i].OpenedAt.After(latest.OpenedAt) {
			latest = &all[i]
		}
	}
	if latest == nil {
		return nil
	}
	logger.Info("updates: команда без привязки, цель — последняя сделка %d (сигнал %d)", latest.Ticket, latest.OriginalMsgID)
	upd.TargetMsgID = latest.OriginalMsgID
	return []models.TradeInfo{*latest}
}

func sortByOpenedAt(trades []models.TradeInfo) {
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].OpenedAt.Equal(trades[j].OpenedAt) {
			return trades[i].OpenedAt.Before(trades[j].OpenedAt)
		}
		return trades[i].Ticket < trades[j].Ticket
	})
}

func (d *Dispatcher) skipDisabled(upd models.UpdateData, n int) models.Outcome {
	logger.Warn("updates: команда %s отключена конфигом", upd.Kind)
	d.n.Sendf("🚫 Обновление [MsgID %d]: команда %s отключена в настройках", upd.TargetMsgID, upd.Kind)
	return models.Outcome{Skipped: n}
}

// --- правки SL/TP ---

func (d *Dispatcher) modifySLTP(ctx context.Context, upd models.UpdateData, trades []models.TradeInfo) models.Outcome {
	var out models.Outcome
	if upd.NewSL <= 0 && len(upd.NewTPs) == 0 {
		d.n.Sendf("ℹ️ Правка SL/TP [MsgID %d]: в команде нет ни SL, ни TP, ничего не меняем", upd.TargetMsgID)
		return out
	}
	for _, tr := range trades {
		sl := tr.StopLoss
		if upd.NewSL > 0 {
			sl = upd.NewSL
		}
		tp := tr.TakeProfit
		// Первый TP команды уходит каждой сделке серии одинаково.
		if len(upd.NewTPs) > 0 {
			tp = upd.NewTPs[0]
		}
		out.Attempted++
		if err := d.applyStops(ctx, tr, sl, tp); err != nil {
			out.Failed = append(out.Failed, models.TicketResult{Ticket: tr.Ticket, Err: err.Error()})
			continue
		}
		d.st.UpdateTrade(tr.Ticket, func(t *models.TradeInfo) {
			t.StopLoss = sl
			t.TakeProfit = tp
			t.AutoSLSince = zeroTime() // SL пришёл из канала, авто-SL больше не нужен
		})
		out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: tr.Ticket, OK: true})
	}
	d.report(upd, "Правка SL/TP", out)
	return out
}

func (d *Dispatcher) moveSL(ctx context.Context, upd models.UpdateData, trades []models.TradeInfo) models.Outcome {
	var out models.Outcome
	if upd.NewSL <= 0 {
		d.n.Sendf("❌ Перенос SL [MsgID %d]: в команде нет нового SL", upd.TargetMsgID)
		return out
	}
	for _, tr := range trades {
		out.Attempted++
		if err := d.applyStops(ctx, tr, upd.NewSL, tr.TakeProfit); err != nil {
			out.Failed = append(out.Failed, models.TicketResult{Ticket: tr.Ticket, Err: err.Error()})
			continue
		}
		d.st.UpdateTrade(tr.Ticket, func(t *models.TradeInfo) {
			t.StopLoss = upd.NewSL
			t.AutoSLSince = zeroTime()
		})
		out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: tr.Ticket, OK: true})
	}
	d.report(upd, "Перенос SL", out)
	return out
}

// setBE ставит SL в цену открытия по данным брокера, не по нашей записи:
// реальная цена исполнения могла уехать от запрошенной.
func (d *Dispatcher) setBE(ctx context.Context, upd models.UpdateData, trades []models.TradeInfo) models.Outcome {
	var out models.Outcome

	positions, err := d.gw.Positions(ctx)
	if err != nil {
		d.n.Sendf("❌ Безубыток [MsgID %d]: не добрались до позиций: %v", upd.TargetMsgID, err)
		return out
	}
	byTicket := make(map[int64]service.Position, len(positions))
	for _, p := range positions {
		byTicket[p.Ticket] = p
	}

	for _, tr := range trades {
		if tr.IsPending {
			continue // отложки в безубыток не переводятся
		}
		pos, ok := byTicket[tr.Ticket]
		if !ok {
			continue // позиция уже закрыта, монитор подчистит
		}

		out.Attempted++

		si, err := d.gw.Symbol(ctx, tr.Symbol)
		if err == nil && helper.ApproxEqual(pos.SL, pos.PriceOpen, si.TickSize) {
			// SL уже на входе — делать нечего, это успех
			out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: tr.Ticket, OK: true, Note: "уже в безубытке"})
			continue
		}

		if err := d.gw.ModifyPosition(ctx, tr.Ticket, pos.PriceOpen, pos.TP); err != nil {
			out.Failed = append(out.Failed, models.TicketResult{Ticket: tr.Ticket, Err: err.Error()})
			continue
		}
		d.st.UpdateTrade(tr.Ticket, func(t *models.TradeInfo) {
			t.StopLoss = pos.PriceOpen
			t.AutoSLSince = zeroTime()
		})
		out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: tr.Ticket, OK: true})
	}
	d.report(upd, "Безубыток", out)
	return out
}

func (d *Dispatcher) modifyEntry(ctx context.Context, upd models.UpdateData, trades []models.TradeInfo) models.Outcome {
	var out models.Outcome
	if upd.NewEntry <= 0 {
		d.n.Sendf("❌ Перенос входа [MsgID %d]: в команде нет новой цены", upd.TargetMsgID)
		return out
	}
	for _, tr := range trades {
		if !tr.IsPending {
			continue // вход двигается только у отложек
		}
		out.Attempted++
		if err := d.gw.ModifyOrder(ctx, tr.Ticket, upd.NewEntry, tr.StopLoss, tr.TakeProfit); err != nil {
			out.Failed = append(out.Failed, models.TicketResult{Ticket: tr.Ticket, Err: err.Error()})
			continue
		}
		d.st.UpdateTrade(tr.Ticket, func(t *models.TradeInfo) { t.EntryPrice = upd.NewEntry })
		out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: tr.Ticket, OK: true})
	}
	if out.Attempted == 0 {
		d.n.Sendf("ℹ️ Перенос входа [MsgID %d]: отложенных ордеров по сигналу нет", upd.TargetMsgID)
		return out
	}
	d.report(upd, "Перенос входа", out)
	return out
}

// --- закрытие и снятие: одна цель ---

func (d *Dispatcher) closeTrade(ctx context.Context, upd models.UpdateData, trades []models.TradeInfo) models.Outcome {
	var out models.Outcome
	tr, ok := firstPosition(trades)
	if !ok {
		d.n.Sendf("ℹ️ Закрытие [MsgID %d]: открытых позиций по сигналу нет", upd.TargetMsgID)
		return out
	}

	out.Attempted++
	// позиция могла уже закрыться по TP/SL — считаем успехом, итог тот же
	if _, err := d.gw.ClosePosition(ctx, tr.Ticket, 0); err != nil {
		out.Failed = append(out.Failed, models.TicketResult{Ticket: tr.Ticket, Err: err.Error()})
		d.report(upd, "Закрытие", out)
		return out
	}
	d.st.RemoveTrade(tr.Ticket)
	out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: tr.Ticket, OK: true})
	d.n.Sendf("✅ Закрытие [MsgID %d]: тикет %d закрыт", upd.TargetMsgID, tr.Ticket)
	return out
}

func (d *Dispatcher) partialClose(ctx context.Context, upd models.UpdateData, trades []models.TradeInfo) models.Outcome {
	var out models.Outcome
	tr, ok := firstPosition(trades)
	if !ok {
		d.n.Sendf("ℹ️ Частичное закрытие [MsgID %d]: открытых позиций по сигналу нет", upd.TargetMsgID)
		return out
	}

	si, err := d.gw.Symbol(ctx, tr.Symbol)
	if err != nil {
		d.n.Sendf("❌ Частичное закрытие [MsgID %d]: %v", upd.TargetMsgID, err)
		return out
	}

	// Процент считаем от живого объёма позиции: после прежних частичных
	// закрытий наша запись могла устареть.
	current := tr.Volume
	if positions, err := d.gw.Positions(ctx); err == nil {
		found := false
		for _, p := range positions {
			if p.Ticket == tr.Ticket {
				current = p.Volume
				found = true
				break
			}
		}
		if !found {
			d.n.Sendf("ℹ️ Частичное закрытие [MsgID %d]: позиция %d уже закрыта", upd.TargetMsgID, tr.Ticket)
			return out
		}
	} else {
		logger.Warn("updates: не добрались до позиций, объём берём из своей записи: %v", err)
	}

	vol := upd.CloseVolume
	if vol <= 0 && upd.ClosePct > 0 {
		vol = current * upd.ClosePct / 100
	}
	if vol <= 0 {
		d.n.Sendf("❌ Частичное закрытие [MsgID %d]: в команде нет объёма", upd.TargetMsgID)
		return out
	}

	full := false
	if vol >= current {
		full = true // просят больше, чем есть — закрываем всё
	} else if current-vol < si.VolumeMin {
		full = true // остаток меньше минимального лота не живёт
	}

	out.Attempted++
	if full {
		if _, err := d.gw.ClosePosition(ctx, tr.Ticket, 0); err != nil {
			out.Failed = append(out.Failed, models.TicketResult{Ticket: tr.Ticket, Err: err.Error()})
			d.report(upd, "Частичное закрытие", out)
			return out
		}
		d.st.RemoveTrade(tr.Ticket)
		out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: tr.Ticket, OK: true, Note: "закрыта целиком"})
		d.n.Sendf("✅ Частичное закрытие [MsgID %d]: остаток был бы меньше минимума, тикет %d закрыт целиком",
			upd.TargetMsgID, tr.Ticket)
		return out
	}

	vol = helper.SnapVolume(vol, si.VolumeStep, si.VolumeMin)
	if vol <= 0 {
		out.Failed = append(out.Failed, models.TicketResult{Ticket: tr.Ticket, Err: "объём после округления нулевой"})
		d.report(upd, "Частичное закрытие", out)
		return out
	}

	if _, err := d.gw.ClosePosition(ctx, tr.Ticket, vol); err != nil {
		out.Failed = append(out.Failed, models.TicketResult{Ticket: tr.Ticket, Err: err.Error()})
		d.report(upd, "Частичное закрытие", out)
		return out
	}
	remaining := current - vol
	d.st.UpdateTrade(tr.Ticket, func(t *models.TradeInfo) { t.Volume = remaining })
	out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: tr.Ticket, OK: true})
	d.n.Sendf("✅ Частичное закрытие [MsgID %d]: тикет %d, закрыто %s, осталось %s",
		upd.TargetMsgID, tr.Ticket, helper.FormatVolume(vol), helper.FormatVolume(remaining))
	return out
}

func (d *Dispatcher) cancelPending(ctx context.Context, upd models.UpdateData, trades []models.TradeInfo) models.Outcome {
	var out models.Outcome
	var target *models.TradeInfo
	for i := range trades {
		if trades[i].IsPending {
			target = &trades[i]
			break
		}
	}
	if target == nil {
		d.n.Sendf("ℹ️ Снятие отложки [MsgID %d]: отложенных ордеров по сигналу нет", upd.TargetMsgID)
		return out
	}

	out.Attempted++
	if err := d.gw.CancelOrder(ctx, target.Ticket); err != nil {
		out.Failed = append(out.Failed, models.TicketResult{Ticket: target.Ticket, Err: err.Error()})
		d.report(upd, "Снятие отложки", out)
		return out
	}
	d.st.RemoveTrade(target.Ticket)
	out.Succeeded = append(out.Succeeded, models.TicketResult{Ticket: target.Ticket, OK: true})
	d.n.Sendf("✅ Снятие отложки [MsgID %d]: тикет %d снят", upd.TargetMsgID, target.Ticket)
	return out
}

// --- общее ---

func (d *Dispatcher) applyStops(ctx context.Context, tr models.TradeInfo, sl, tp float64) error {
	if tr.IsPending {
		return d.gw.ModifyOrder(ctx, tr.Ticket, tr.EntryPrice, sl, tp)
	}
	return d.gw.ModifyPosition(ctx, tr.Ticket, sl, tp)
}

func (d *Dispatcher) report(upd models.UpdateData, title string, out models.Outcome) {
	switch {
	case out.Attempted == 0:
	case len(out.Failed) == 0:
		d.n.Sendf("✅ %s [MsgID %d]: %d/%d ок", title, upd.TargetMsgID, len(out.Succeeded), out.Attempted)
	case len(out.Succeeded) == 0:
		d.n.Sendf("❌ %s [MsgID %d]: все %d попыток неудачны: %s",
			title, upd.TargetMsgID, out.Attempted, out.Failed[len(out.Failed)-1].Err)
	default:
		d.n.Sendf("⚠️ %s [MsgID %d]: %d/%d ок, ошибок %d",
			title, upd.TargetMsgID, len(out.Succeeded), out.Attempted, len(out.Failed))
	}
}

func firstPosition(trades []models.TradeInfo) (models.TradeInfo, bool) {
	for _, tr := range trades {
		if !tr.IsPending {
			return tr, true
		}
	}
	return models.TradeInfo{}, false
}

func sortBySequence(trades []models.TradeInfo) {
	sort.Slice(trades, func(i, j int) bool {
		si, sj := 0, 0
		if trades[i].Sequence != nil {
			si = trades[i].Sequence.Index
		}
		if trades[j].Sequence != nil {
			sj = trades[j].Sequence.Index
		}
		if si != sj {
			return si < sj
		}
		return trades[i].Ticket < trades[j].Ticket
	})
}

func zeroTime() time.Time { return time.Time{} }
