package exec

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/state"
	"signal_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.FileConfig{})
	m.Run()
}

type fakeGW struct {
	si         service.SymbolInfo
	tick       service.Tick
	placed     []service.OrderRequest
	failOn     map[int]error // номер вызова -> ошибка
	nextTicket int64
}

func (f *fakeGW) Tick(context.Context, string) (service.Tick, error)         { return f.tick, nil }
func (f *fakeGW) Symbol(context.Context, string) (service.SymbolInfo, error) { return f.si, nil }

func (f *fakeGW) PlaceWithRetry(_ context.Context, req service.OrderRequest) (service.OrderResult, error) {
	idx := len(f.placed)
	f.placed = append(f.placed, req)
	if err, ok := f.failOn[idx]; ok {
		return service.OrderResult{}, err
	}
	f.nextTicket++
	return service.OrderResult{Retcode: service.RetcodeDone, Order: f.nextTicket, Price: req.Price}, nil
}

type fakeNotifier struct {
	msgs []string
}

func (n *fakeNotifier) Send(msg string)                  { n.msgs = append(n.msgs, msg) }
func (n *fakeNotifier) Sendf(f string, args ...any)      { n.msgs = append(n.msgs, fmt.Sprintf(f, args...)) }
func (n *fakeNotifier) last() string {
	if len(n.msgs) == 0 {
		return ""
	}
	return n.msgs[len(n.msgs)-1]
}

func goldInfo() service.SymbolInfo {
	return service.SymbolInfo{
		Symbol: "XAUUSD", Digits: 2, Point: 0.01, TickSize: 0.01,
		VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01,
	}
}

func testDeps(gw *fakeGW) (Deps, *fakeNotifier, *state.Store) {
	cfg := &config.Config{}
	cfg.Trading.TPAssignMode = "first_tp_first_trade"
	st := state.NewStore(10, 100)
	n := &fakeNotifier{}
	return Deps{GW: gw, Store: st, Notifier: n, Cfg: cfg}, n, st
}

func TestSelect(t *testing.T) {
	rangeSig := models.SignalData{
		Entry:         models.RangeEntry(1990, 2000),
		RangeStrategy: models.RangeDistributed,
	}
	tpSig := models.SignalData{
		Entry:       models.MarketEntry(),
		TakeProfits: []float64{2010},
	}

	tests := []struct {
		name       string
		sig        models.SignalData
		kind       models.OrderKind
		lot, unit  float64
		sequential bool
		want       StrategyKind
	}{
		{"диапазон distributed", rangeSig, models.OrderLimit, 0.05, 0.01, true, KindDistributed},
		{"серия при всех условиях", tpSig, models.OrderMarket, 0.02, 0.01, true, KindMultiMarketStop},
		{"серия и stop-вход", tpSig, models.OrderStop, 0.05, 0.01, true, KindMultiMarketStop},
		{"флаг выключен", tpSig, models.OrderMarket, 0.05, 0.01, false, KindSingle},
		{"лот меньше двух юнитов", tpSig, models.OrderMarket, 0.01, 0.01, true, KindSingle},
		{"limit не делим на серию", tpSig, models.OrderLimit, 0.05, 0.01, true, KindSingle},
		{
			"без TP серии нет",
			models.SignalData{Entry: models.MarketEntry()},
			models.OrderMarket, 0.05, 0.01, true, KindSingle,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Select(tc.sig, tc.kind, tc.lot, tc.unit, tc.sequential)
			if got != tc.want {
				t.Fatalf("Select = %s, ждали %s", got, tc.want)
			}
		})
	}
}

func TestSingleTradePendingSpread(t *testing.T) {
	// спред двигает только стопы: BUY STOP триггерится по ask, а лимитка
	// поправкой вверх уехала бы к рынку
	tests := []struct {
		name      string
		kind      models.OrderKind
		entry     float64
		wantPrice float64
	}{
		{"buy stop получает +спред", models.OrderStop, 2010, 2010.5},
		{"buy limit остаётся на месте", models.OrderLimit, 1990, 1990},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGW{si: goldInfo(), tick: service.Tick{Symbol: "XAUUSD", Bid: 2004.0, Ask: 2004.5}}
			deps, _, st := testDeps(gw)

			sig := models.SignalData{
				Direction:   models.Buy,
				Symbol:      "XAUUSD",
				Entry:       models.PriceEntry(tc.entry),
				StopLoss:    1980,
				TakeProfits: []float64{2010, 2020},
				MsgID:       7,
			}
			out, err := New(KindSingle, deps).Execute(context.Background(),
				Plan{Signal: sig, Lot: 0.1, Entry: tc.entry, Kind: tc.kind})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if !out.AllOK() || out.Attempted != 1 {
				t.Fatalf("outcome = %+v", out)
			}

			req := gw.placed[0]
			if req.Price != tc.wantPrice {
				t.Fatalf("цена входа = %g, ждали %g", req.Price, tc.wantPrice)
			}
			if req.SL != 1980 { // SL уходит как в сигнале
				t.Fatalf("SL = %g, ждали 1980", req.SL)
			}
			if req.TP != 2010 { // первый TP первой (единственной) сделке
				t.Fatalf("TP = %g, ждали 2010", req.TP)
			}

			trades := st.TradesByMsgID(7)
			if len(trades) != 1 || !trades[0].IsPending {
				t.Fatalf("в сторе %+v", trades)
			}
			tr := trades[0]
			if tr.OriginalVolume != 0.1 || len(tr.AllTPs) != 2 || tr.AutoTPApplied {
				t.Fatalf("запись сделки: %+v", tr)
			}
		})
	}
}

func TestSingleTradeAutoTP(t *testing.T) {
	gw := &fakeGW{si: goldInfo(), tick: service.Tick{Symbol: "XAUUSD", Bid: 2004.0, Ask: 2004.5}}
	deps, _, st := testDeps(gw)
	deps.Cfg.AutoTP.Enabled = true
	deps.Cfg.AutoTP.DistancePips = 50

	sig := models.SignalData{Direction: models.Buy, Symbol: "XAUUSD", Entry: models.MarketEntry(), MsgID: 14}
	out, err := New(KindSingle, deps).Execute(context.Background(),
		Plan{Signal: sig, Lot: 0.05, Kind: models.OrderMarket})
	if err != nil || !out.AllOK() {
		t.Fatalf("Execute: %v, %+v", err, out)
	}

	if gw.placed[0].TP != 2005.0 { // ask 2004.5 + 50 пипсов
		t.Fatalf("TP = %g, ждали 2005", gw.placed[0].TP)
	}
	trades := st.TradesByMsgID(14)
	if len(trades) != 1 || !trades[0].AutoTPApplied {
		t.Fatalf("авто-TP не отмечен в записи: %+v", trades)
	}
}

func TestSingleTradeFailureGoesToOutcome(t *testing.T) {
	gw := &fakeGW{
		si:     goldInfo(),
		tick:   service.Tick{Symbol: "XAUUSD", Bid: 2004.0, Ask: 2004.5},
		failOn: map[int]error{0: &service.BridgeError{Retcode: service.RetcodeNoMoney, Comment: "no money"}},
	}
	deps, n, st := testDeps(gw)

	sig := models.SignalData{Direction: models.Buy, Symbol: "XAUUSD", Entry: models.MarketEntry(), MsgID: 8}
	out, err := New(KindSingle, deps).Execute(context.Background(),
		Plan{Signal: sig, Lot: 0.1, Kind: models.OrderMarket})
	if err != nil {
		t.Fatalf("отказ брокера не должен быть ошибкой исполнения: %v", err)
	}
	if len(out.Failed) != 1 || len(out.Succeeded) != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(st.AllTrades()) != 0 {
		t.Fatal("неудачная сделка попала в стор")
	}
	if !strings.Contains(n.last(), "❌") {
		t.Fatalf("нет уведомления об отказе: %q", n.last())
	}
}

func TestMultiMarketStopPartialFailure(t *testing.T) {
	gw := &fakeGW{
		si:     goldInfo(),
		tick:   service.Tick{Symbol: "XAUUSD", Bid: 2004.0, Ask: 2004.5},
		failOn: map[int]error{1: &service.BridgeError{Retcode: service.RetcodeReject, Comment: "rejected"}},
	}
	deps, n, st := testDeps(gw)

	sig := models.SignalData{
		Direction:   models.Buy,
		Symbol:      "XAUUSD",
		Entry:       models.MarketEntry(),
		StopLoss:    1980,
		TakeProfits: []float64{2010, 2020},
		MsgID:       9,
	}
	out, err := New(KindMultiMarketStop, deps).Execute(context.Background(),
		Plan{Signal: sig, Lot: 0.03, Kind: models.OrderMarket})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if out.Attempted != 3 || len(out.Succeeded) != 2 || len(out.Failed) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if !out.Partial() {
		t.Fatal("итог должен быть частичным")
	}
	if !strings.Contains(n.last(), "⚠️") {
		t.Fatalf("нет уведомления о частичном исполнении: %q", n.last())
	}

	// первый TP уходит только первой сделке, остальные без тейка
	wantTPs := []float64{2010, 0, 0}
	for i, req := range gw.placed {
		if req.TP != wantTPs[i] {
			t.Fatalf("суб-ордер %d: TP = %g, ждали %g", i, req.TP, wantTPs[i])
		}
		wantComment := fmt.Sprintf("TB SigID 9 Seq %d/3", i+1)
		if !strings.HasPrefix(req.Comment, wantComment) {
			t.Fatalf("комментарий %q, ждали префикс %q", req.Comment, wantComment)
		}
	}

	trades := st.TradesByMsgID(9)
	if len(trades) != 2 {
		t.Fatalf("в сторе %d сделок, ждали 2", len(trades))
	}
	for _, tr := range trades {
		if tr.Sequence == nil || tr.Sequence.Total != 3 {
			t.Fatalf("sequence = %+v", tr.Sequence)
		}
	}
}

func TestSplitPoints(t *testing.T) {
	tests := []struct {
		name  string
		dir   models.Direction
		total int
		want  []float64
	}{
		{"buy от верха вниз", models.Buy, 3, []float64{2000, 1995, 1990}},
		{"sell от низа вверх", models.Sell, 3, []float64{1990, 1995, 2000}},
		{"одиночный buy на верхней границе", models.Buy, 1, []float64{2000}},
		{"одиночный sell на нижней границе", models.Sell, 1, []float64{1990}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := splitPoints(tc.dir, 1990, 2000, tc.total)
			if len(got) != len(tc.want) {
				t.Fatalf("splitPoints = %v", got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("splitPoints = %v, ждали %v", got, tc.want)
				}
			}
		})
	}
}

func TestDistributedZoneSkip(t *testing.T) {
	// ask внутри зоны 1990-2000 — все постановки пропускаются
	gw := &fakeGW{si: goldInfo(), tick: service.Tick{Symbol: "XAUUSD", Bid: 1994.5, Ask: 1995.0}}
	deps, n, st := testDeps(gw)

	sig := models.SignalData{
		Direction:     models.Buy,
		Symbol:        "XAUUSD",
		Entry:         models.RangeEntry(1990, 2000),
		RangeStrategy: models.RangeDistributed,
		TakeProfits:   []float64{2010},
		MsgID:         11,
	}
	out, err := New(KindDistributed, deps).Execute(context.Background(),
		Plan{Signal: sig, Lot: 0.03, Entry: 1995, Kind: models.OrderLimit})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Skipped != 3 || len(out.Succeeded) != 0 || len(out.Failed) != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(gw.placed) != 0 {
		t.Fatalf("ордера всё же ставились: %d", len(gw.placed))
	}
	if len(st.AllTrades()) != 0 {
		t.Fatal("стор не пуст")
	}
	if !strings.Contains(n.last(), "пропущены") {
		t.Fatalf("нет уведомления о пропуске: %q", n.last())
	}
}

func TestDistributedDynamicTypes(t *testing.T) {
	// рынок ниже зоны: все цены выше ask — покупки становятся стопами
	gw := &fakeGW{si: goldInfo(), tick: service.Tick{Symbol: "XAUUSD", Bid: 1979.5, Ask: 1980.0}}
	deps, _, st := testDeps(gw)

	sig := models.SignalData{
		Direction:     models.Buy,
		Symbol:        "XAUUSD",
		Entry:         models.RangeEntry(1990, 2000),
		RangeStrategy: models.RangeDistributed,
		TakeProfits:   []float64{2010, 2020},
		MsgID:         12,
	}
	out, err := New(KindDistributed, deps).Execute(context.Background(),
		Plan{Signal: sig, Lot: 0.02, Entry: 1995, Kind: models.OrderLimit})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.AllOK() || out.Attempted != 2 {
		t.Fatalf("outcome = %+v", out)
	}

	// покупки раскладываются сверху вниз: 2000, затем 1990
	if gw.placed[0].Price != 2000 || gw.placed[1].Price != 1990 {
		t.Fatalf("цены = %g, %g", gw.placed[0].Price, gw.placed[1].Price)
	}
	for i, req := range gw.placed {
		if req.Kind != models.OrderStop {
			t.Fatalf("ордер %d: kind = %s, ждали stop (вход выше ask)", i, req.Kind)
		}
	}
	// раздача тейков общая с сериями: первый TP только первому ордеру
	if gw.placed[0].TP != 2010 || gw.placed[1].TP != 0 {
		t.Fatalf("TP = %g, %g", gw.placed[0].TP, gw.placed[1].TP)
	}

	trades := st.TradesByMsgID(12)
	if len(trades) != 2 {
		t.Fatalf("в сторе %d сделок", len(trades))
	}
	for _, tr := range trades {
		if !strings.Contains(tr.Comment, "Dist") {
			t.Fatalf("комментарий без Dist: %q", tr.Comment)
		}
		if !tr.IsPending {
			t.Fatal("раскладка должна быть отложками")
		}
	}
}

func TestDistributedLimitSpreadCap(t *testing.T) {
	// рынок выше зоны: лимитки; +спред не должен дотянуть цену до ask
	gw := &fakeGW{si: goldInfo(), tick: service.Tick{Symbol: "XAUUSD", Bid: 2004.0, Ask: 2004.5}}
	deps, _, _ := testDeps(gw)

	sig := models.SignalData{
		Direction:     models.Buy,
		Symbol:        "XAUUSD",
		Entry:         models.RangeEntry(1990, 2000),
		RangeStrategy: models.RangeDistributed,
		TakeProfits:   []float64{2010},
		MsgID:         13,
	}
	_, err := New(KindDistributed, deps).Execute(context.Background(),
		Plan{Signal: sig, Lot: 0.02, Entry: 1995, Kind: models.OrderLimit})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gw.placed[0].Kind != models.OrderLimit {
		t.Fatalf("kind = %s, ждали limit", gw.placed[0].Kind)
	}
	if gw.placed[0].Price != 2000.5 { // 2000 + спред 0.5, всё ещё ниже ask
		t.Fatalf("цена = %g, ждали 2000.5", gw.placed[0].Price)
	}
}
