package processor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"signal_bot/internal/calc"
	"signal_bot/internal/decision"
	"signal_bot/internal/exec"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/notify"
	"signal_bot/internal/state"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"github.com/google/uuid"
)

// Analyzer — классификация сообщения канала.
type Analyzer interface {
	Analyze(ctx context.Context, text string, edited bool, replyToID int, history []string, price float64) (Verdict, error)
}

// Verdict дублирует форму ответа анализатора, чтобы не тащить его пакет в тесты.
type Verdict struct {
	Type   models.MessageType
	Signal *models.SignalData
	Update *models.UpdateData
}

// Dispatcher — исполнение команд-обновлений.
type Dispatcher interface {
	Dispatch(ctx context.Context, upd models.UpdateData) models.Outcome
}

// Processor — единственный потребитель событий канала.
// Вся маршрутизация сигналов и команд проходит через его цикл.
type Processor struct {
	an     Analyzer
	gw     exec.Gateway
	st     *state.Store
	n      notify.Notifier
	disp   Dispatcher
	cfg    *config.Config
	events <-chan models.ChannelEvent
}

func New(an Analyzer, gw exec.Gateway, st *state.Store, n notify.Notifier,
	disp Dispatcher, cfg *config.Config, events <-chan models.ChannelEvent) *Processor {

	return &Processor{an: an, gw: gw, st: st, n: n, disp: disp, cfg: cfg, events: events}
}

func (p *Processor) Run(ctx context.Context) {
	logger.Info("процессор запущен, канал %d", p.cfg.Telegram.ChannelID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.events:
			if !ok {
				return
			}
			p.Handle(ctx, ev)
		}
	}
}

// Handle обрабатывает одно событие канала. Выделен для тестов.
func (p *Processor) Handle(ctx context.Context, ev models.ChannelEvent) {
	span, ctx := tracing.StartSpan(ctx, "process_message")
	defer span.Finish()

	if !ev.Edited && p.st.IsProcessed(ev.MsgID) {
		logger.Info("сообщение %d уже обработано, пропуск", ev.MsgID)
		return
	}
	// отмечаем всегда, в том числе на ошибочных путях
	defer p.st.MarkProcessed(ev.MsgID)

	prevText, hadPrev := p.st.HistoryText(ev.MsgID)
	p.st.AddHistory(ev.MsgID, ev.Text)

	// правка SL/TP в тексте сигнала распознаётся без LLM
	if ev.Edited && hadPrev {
		if upd, ok := detectStopEdit(prevText, ev.Text); ok {
			logger.Info("сообщение %d: правка SL/TP без обращения к LLM", ev.MsgID)
			upd.TargetMsgID = ev.MsgID
			upd.MsgID = ev.MsgID
			p.disp.Dispatch(ctx, upd)
			return
		}
	}

	price := p.currentPrice(ctx)
	v, err := p.an.Analyze(ctx, ev.Text, ev.Edited, ev.ReplyToID, p.st.RecentHistory(), price)
	if err != nil {
		logger.Error("анализ сообщения %d: %v", ev.MsgID, err)
		p.n.Sendf("❗️ Анализ сообщения %d не удался: %v", ev.MsgID, err)
		return
	}

	switch v.Type {
	case models.MessageIgnore:
		logger.Info("сообщение %d: не сигнал", ev.MsgID)
	case models.MessageNewSignal:
		p.handleSignal(ctx, ev, *v.Signal)
	case models.MessageUpdate:
		upd := *v.Update
		// Реплай и правка несут id исходного сигнала; свежее сообщение
		// остаётся без привязки, цель найдёт диспетчер.
		if upd.TargetMsgID == 0 {
			switch {
			case ev.ReplyToID != 0:
				upd.TargetMsgID = ev.ReplyToID
			case ev.Edited:
				upd.TargetMsgID = ev.MsgID
			}
		}
		upd.MsgID = ev.MsgID
		p.disp.Dispatch(ctx, upd)
	}
}

func (p *Processor) currentPrice(ctx context.Context) float64 {
	if p.cfg.Trading.DefaultPair == "" {
		return 0
	}
	t, err := p.gw.Tick(ctx, p.cfg.Trading.DefaultPair)
	if err != nil {
		logger.Warn("цена %s недоступна: %v", p.cfg.Trading.DefaultPair, err)
		return 0
	}
	return (t.Bid + t.Ask) / 2
}

func (p *Processor) handleSignal(ctx context.Context, ev models.ChannelEvent, sig models.SignalData) {
	sig.MsgID = ev.MsgID
	if sig.Symbol == "" {
		sig.Symbol = p.cfg.Trading.DefaultPair
	}
	if sig.Entry.Kind == models.EntryRange && sig.RangeStrategy == "" {
		sig.RangeStrategy = models.RangeStrategy(p.cfg.Trading.EntryRangeStrategy)
	}

	now := time.Now()
	if p.st.InCooldown(sig.Symbol, p.cfg.Trading.CooldownPerSymbol, now) {
		logger.Info("сигнал %d: %s в кулдауне", ev.MsgID, sig.Symbol)
		p.n.Sendf("⏸ Сигнал по %s пропущен: кулдаун после недавнего входа", sig.Symbol)
		return
	}

	si, err := p.gw.Symbol(ctx, sig.Symbol)
	if err != nil {
		logger.Error("сигнал %d: символ %s: %v", ev.MsgID, sig.Symbol, err)
		p.n.Sendf("❗️ Символ %s недоступен: %v", sig.Symbol, err)
		return
	}
	tick, err := p.gw.Tick(ctx, sig.Symbol)
	if err != nil {
		logger.Error("сигнал %d: котировка %s: %v", ev.MsgID, sig.Symbol, err)
		p.n.Sendf("❗️ Котировка %s недоступна: %v", sig.Symbol, err)
		return
	}

	entry, err := calc.ResolveEntry(sig.Entry, sig.RangeStrategy, sig.Direction, tick.Bid, tick.Ask)
	if err != nil {
		logger.Error("сигнал %d: вход: %v", ev.MsgID, err)
		p.n.Sendf("❗️ Сигнал %d: %v", ev.MsgID, err)
		return
	}

	res := decision.Decide(sig, entry, tick.Bid, tick.Ask, decision.Config{
		PriceActionWeight: p.cfg.Decision.PriceActionWeight,
		SentimentWeight:   p.cfg.Decision.SentimentWeight,
		Threshold:         p.cfg.Decision.Threshold,
		EqualPriceKind:    models.OrderKind(p.cfg.Trading.EqualPriceOrderType),
	})
	if !res.Approved {
		logger.Info("сигнал %d отклонён: %s (score %.2f)", ev.MsgID, res.Reason, res.Score)
		p.n.Sendf("⛔️ Сигнал %s %s отклонён: %s (score %.2f)",
			sig.Direction, sig.Symbol, res.Reason, res.Score)
		return
	}

	lot := calc.ClampLot(p.cfg.Trading.DefaultLot, p.cfg.Trading.MaxLot, si)
	plan := exec.Plan{Signal: sig, Lot: lot, Entry: entry, Kind: res.Kind}
	skind := exec.Select(sig, res.Kind, lot, exec.UnitLot(si), p.cfg.Trading.SequentialPartialClose)

	if res.Kind == models.OrderMarket && p.cfg.Trading.MarketConfirm {
		p.confirmThenExecute(ctx, plan, skind)
		return
	}
	p.execute(ctx, plan, skind)
}

// confirmThenExecute не блокирует цикл: подтверждение ждёт своя горутина.
func (p *Processor) confirmThenExecute(ctx context.Context, plan exec.Plan, skind exec.StrategyKind) {
	pc := models.PendingConfirmation{
		ID:        uuid.NewString(),
		Signal:    plan.Signal,
		Lot:       plan.Lot,
		ExpiresAt: time.Now().Add(p.cfg.Trading.ConfirmTimeout),
	}
	p.st.AddConfirmation(pc)

	prompt := fmt.Sprintf("Рыночный вход %s %s, лот %.2f. Подтвердить?",
		plan.Signal.Direction, plan.Signal.Symbol, plan.Lot)

	go func() {
		ok := p.n.Confirm(ctx, prompt, p.cfg.Trading.ConfirmTimeout)
		if _, alive := p.st.PopConfirmation(pc.ID); !alive {
			// просрочено и уже убрано свипом монитора
			return
		}
		if !ok {
			logger.Info("сигнал %d: вход отклонён оператором", plan.Signal.MsgID)
			return
		}
		p.execute(ctx, plan, skind)
	}()
}

func (p *Processor) execute(ctx context.Context, plan exec.Plan, skind exec.StrategyKind) {
	logger.Info("сигнал %d: стратегия %s, лот %.2f", plan.Signal.MsgID, skind, plan.Lot)

	deps := exec.Deps{GW: p.gw, Store: p.st, Notifier: p.n, Cfg: p.cfg}
	out, err := exec.New(skind, deps).Execute(ctx, plan)
	if err != nil {
		logger.Error("сигнал %d: исполнение сорвалось: %v", plan.Signal.MsgID, err)
		p.n.Sendf("❗️ Исполнение сигнала %d сорвалось: %v", plan.Signal.MsgID, err)
		return
	}
	if len(out.Succeeded) > 0 {
		p.st.MarkCooldown(plan.Signal.Symbol, time.Now())
	}
}

var (
	slRe = regexp.MustCompile(`(?i)\bSL\b\s*[:@=]?\s*([0-9]+(?:[.,][0-9]+)?)`)
	tpRe = regexp.MustCompile(`(?i)\bTP[0-9]*\b\s*[:@=]?\s*([0-9]+(?:[.,][0-9]+)?)`)
)

// detectStopEdit сравнивает старый и новый текст: если поменялись только
// числа рядом с SL/TP, это правка стопов и LLM тут не нужна.
func detectStopEdit(oldText, newText string) (models.UpdateData, bool) {
	oldSL, oldTPs := extractStops(oldText)
	newSL, newTPs := extractStops(newText)

	if newSL == 0 && len(newTPs) == 0 {
		return models.UpdateData{}, false
	}
	if slRe.ReplaceAllString(tpRe.ReplaceAllString(oldText, ""), "") !=
		slRe.ReplaceAllString(tpRe.ReplaceAllString(newText, ""), "") {
		return models.UpdateData{}, false
	}
	if oldSL == newSL && equalFloats(oldTPs, newTPs) {
		return models.UpdateData{}, false
	}
	return models.UpdateData{
		Kind:   models.UpdateModifySLTP,
		NewSL:  newSL,
		NewTPs: newTPs,
	}, true
}

func extractStops(s string) (sl float64, tps []float64) {
	if m := slRe.FindStringSubmatch(s); m != nil {
		sl = parseNum(m[1])
	}
	for _, m := range tpRe.FindAllStringSubmatch(s, -1) {
		if px := parseNum(m[1]); px > 0 {
			tps = append(tps, px)
		}
	}
	return sl, tps
}

func parseNum(s string) float64 {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			s = s[:i] + "." + s[i+1:]
		}
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
