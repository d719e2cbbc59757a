package monitor

import (
	"context"
	"strings"
	"time"

	"signal_bot/internal/calc"
	"signal_bot/internal/helper"
	"signal_bot/internal/journal"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/notify"
	"signal_bot/internal/state"
	"signal_bot/pkg/logger"
)

type Gateway interface {
	Positions(ctx context.Context) ([]service.Position, error)
	Orders(ctx context.Context) ([]service.Order, error)
	HistoryDeals(ctx context.Context, positionID int64) ([]service.Deal, error)
	Symbol(ctx context.Context, symbol string) (service.SymbolInfo, error)
	ModifyPosition(ctx context.Context, ticket int64, sl, tp float64) error
	CancelOrder(ctx context.Context, ticket int64) error
}

// Monitor сверяет своё состояние с терминалом: ловит закрытия,
// исполнения отложек, навешивает авто-SL и чистит просроченные подтверждения.
type Monitor struct {
	gw  Gateway
	st  *state.Store
	n   notify.Notifier
	jr  *journal.Repo
	cfg *config.Config
}

func New(gw Gateway, st *state.Store, n notify.Notifier, jr *journal.Repo, cfg *config.Config) *Monitor {
	return &Monitor{gw: gw, st: st, n: n, jr: jr, cfg: cfg}
}

func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.cfg.MonitorInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep — один проход сверки. Выделен для тестов.
func (m *Monitor) Sweep(ctx context.Context) {
	positions, err := m.gw.Positions(ctx)
	if err != nil {
		logger.Error("монитор: позиции недоступны: %v", err)
		return
	}
	orders, err := m.gw.Orders(ctx)
	if err != nil {
		logger.Error("монитор: ордера недоступны: %v", err)
		return
	}

	posByTicket := make(map[int64]service.Position, len(positions))
	for _, p := range positions {
		posByTicket[p.Ticket] = p
	}
	ordByTicket := make(map[int64]service.Order, len(orders))
	for _, o := range orders {
		ordByTicket[o.Ticket] = o
	}

	for _, tr := range m.st.AllTrades() {
		if tr.IsPending {
			m.checkPending(ctx, tr, posByTicket, ordByTicket)
		} else if _, alive := posByTicket[tr.Ticket]; !alive {
			m.handleClosed(ctx, tr, ordByTicket)
		}
	}

	m.autoSLPass(ctx, posByTicket)

	for _, pc := range m.st.SweepConfirmations(time.Now()) {
		m.n.Sendf("⏳ Подтверждение по сигналу (msg %d) истекло, вход пропущен", pc.Signal.MsgID)
	}
}

func (m *Monitor) checkPending(ctx context.Context, tr models.TradeInfo,
	pos map[int64]service.Position, ord map[int64]service.Order) {

	if p, filled := pos[tr.Ticket]; filled {
		m.st.UpdateTrade(tr.Ticket, func(t *models.TradeInfo) {
			t.IsPending = false
			t.EntryPrice = p.PriceOpen
			if m.cfg.AutoSL.Enabled && t.StopLoss == 0 {
				t.AutoSLSince = time.Now()
			}
		})
		m.n.Sendf("⚡️ Отложка #%d %s исполнена @ %s",
			tr.Ticket, tr.Symbol, formatPx(ctx, m.gw, tr.Symbol, p.PriceOpen))
		return
	}
	if _, alive := ord[tr.Ticket]; !alive {
		// ни в позициях, ни в ордерах: снята на стороне терминала
		m.st.RemoveTrade(tr.Ticket)
		m.n.Sendf("🚫 Отложка #%d %s снята вне бота", tr.Ticket, tr.Symbol)
	}
}

func (m *Monitor) handleClosed(ctx context.Context, tr models.TradeInfo, ord map[int64]service.Order) {
	profit, closePx, reason := m.closeDetails(ctx, tr.Ticket)

	m.st.RemoveTrade(tr.Ticket)

	emoji := "🔔"
	if profit > 0 {
		emoji = "💰"
	} else if profit < 0 {
		emoji = "📉"
	}
	m.n.Sendf("%s Сделка #%d %s %s закрыта (%s), объём %.2f, профит %.2f",
		emoji, tr.Ticket, tr.Symbol, tr.Direction, reason, tr.Volume, profit)

	if m.jr != nil {
		err := m.jr.InsertClosed(ctx, &journal.ClosedTrade{
			Ticket:        tr.Ticket,
			Symbol:        tr.Symbol,
			Direction:     string(tr.Direction),
			Volume:        tr.Volume,
			EntryPrice:    tr.EntryPrice,
			ClosePrice:    closePx,
			Profit:        profit,
			OriginalMsgID: tr.OriginalMsgID,
			Reason:        reason,
			ClosedAt:      time.Now(),
		})
		if err != nil {
			logger.Error("монитор: журнал: %v", err)
		}
	}

	// тейк по одной из распределённых лимиток гасит её сестринские отложки
	if reason == "TP" && strings.Contains(tr.Comment, "Dist") {
		m.cancelSiblings(ctx, tr, ord)
	}
}

// closeDetails достаёт из истории сделок итог закрытия позиции.
func (m *Monitor) closeDetails(ctx context.Context, ticket int64) (profit, closePx float64, reason string) {
	reason = "CLIENT"
	deals, err := m.gw.HistoryDeals(ctx, ticket)
	if err != nil {
		logger.Warn("монитор: история по #%d недоступна: %v", ticket, err)
		return 0, 0, reason
	}
	for _, d := range deals {
		profit += d.Profit
		if d.Reason == "TP" || d.Reason == "SL" {
			reason = d.Reason
		}
		closePx = d.Price
	}
	return profit, closePx, reason
}

func (m *Monitor) cancelSiblings(ctx context.Context, closed models.TradeInfo, ord map[int64]service.Order) {
	for _, sib := range m.st.TradesByMsgID(closed.OriginalMsgID) {
		if !sib.IsPending || sib.Ticket == closed.Ticket {
			continue
		}
		if _, alive := ord[sib.Ticket]; !alive {
			continue
		}
		if err := m.gw.CancelOrder(ctx, sib.Ticket); err != nil {
			logger.Error("монитор: снятие отложки #%d: %v", sib.Ticket, err)
			m.n.Sendf("❌ Не удалось снять отложку #%d после тейка: %v", sib.Ticket, err)
			continue
		}
		m.st.RemoveTrade(sib.Ticket)
		m.n.Sendf("🧹 Отложка #%d %s снята: тейк по серии msg %d",
			sib.Ticket, sib.Symbol, closed.OriginalMsgID)
	}
}

// autoSLPass ставит стоп позициям, просидевшим без него дольше задержки.
func (m *Monitor) autoSLPass(ctx context.Context, pos map[int64]service.Position) {
	if !m.cfg.AutoSL.Enabled {
		return
	}
	now := time.Now()
	for _, tr := range m.st.AllTrades() {
		if tr.IsPending || tr.StopLoss != 0 || tr.AutoSLSince.IsZero() {
			continue
		}
		if now.Sub(tr.AutoSLSince) < m.cfg.AutoSL.Delay {
			continue
		}
		p, alive := pos[tr.Ticket]
		if !alive {
			continue
		}

		si, err := m.gw.Symbol(ctx, tr.Symbol)
		if err != nil {
			logger.Warn("монитор: символ %s: %v", tr.Symbol, err)
			continue
		}
		sl := calc.AutoStopPrice(p.PriceOpen, tr.Direction, m.cfg.AutoSL.DistancePips, si, false)
		if sl <= 0 {
			continue
		}
		if err := m.gw.ModifyPosition(ctx, tr.Ticket, sl, p.TP); err != nil {
			logger.Error("монитор: авто-SL #%d: %v", tr.Ticket, err)
			continue
		}
		m.st.UpdateTrade(tr.Ticket, func(t *models.TradeInfo) {
			t.StopLoss = sl
			t.AutoSLSince = time.Time{}
		})
		m.n.Sendf("🛡 Авто-SL для #%d %s: %s", tr.Ticket, tr.Symbol, helper.FormatPrice(sl, si.Digits))
	}
}

func formatPx(ctx context.Context, gw Gateway, symbol string, px float64) string {
	si, err := gw.Symbol(ctx, symbol)
	if err != nil {
		return helper.FormatPrice(px, 5)
	}
	return helper.FormatPrice(px, si.Digits)
}
