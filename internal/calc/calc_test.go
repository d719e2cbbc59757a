package calc

import (
	"math"
	"testing"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/gateway/service"
	"signal_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.FileConfig{})
	m.Run()
}

func goldInfo() service.SymbolInfo {
	return service.SymbolInfo{
		Symbol:     "XAUUSD",
		Digits:     2,
		Point:      0.01,
		TickSize:   0.01,
		VolumeMin:  0.01,
		VolumeMax:  100,
		VolumeStep: 0.01,
	}
}

func TestSplitLot(t *testing.T) {
	tests := []struct {
		name          string
		lot           float64
		wantFull      int
		wantRemainder float64
	}{
		{"ровно один юнит", 0.01, 1, 0},
		{"пять юнитов", 0.05, 5, 0},
		{"хвост меньше минимума обнуляется", 0.014, 1, 0},
		{"хвост на шаге выживает", 0.017, 1, 0.01},
		{"без хвоста", 0.03, 3, 0},
		{"крупный лот", 1.0, 100, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitLot(tc.lot, goldInfo())
			if got.NumFull != tc.wantFull {
				t.Fatalf("NumFull = %d, ждали %d", got.NumFull, tc.wantFull)
			}
			if math.Abs(got.Remainder-tc.wantRemainder) > 1e-9 {
				t.Fatalf("Remainder = %g, ждали %g", got.Remainder, tc.wantRemainder)
			}
		})
	}
}

func TestSplitLotBigUnit(t *testing.T) {
	si := goldInfo()
	si.VolumeMin = 0.1
	si.VolumeStep = 0.1

	got := SplitLot(0.35, si)
	if got.Unit != 0.1 {
		t.Fatalf("Unit = %g, ждали 0.1", got.Unit)
	}
	if got.NumFull != 3 {
		t.Fatalf("NumFull = %d, ждали 3", got.NumFull)
	}
	// хвост 0.05 ниже минимума 0.1 — пропадает
	if got.Remainder != 0 {
		t.Fatalf("Remainder = %g, ждали 0", got.Remainder)
	}
	if got.Total() != 3 {
		t.Fatalf("Total = %d, ждали 3", got.Total())
	}
}

func TestClampLot(t *testing.T) {
	si := goldInfo()
	if got := ClampLot(10, 5, si); got != 5 {
		t.Fatalf("потолок конфига: %g", got)
	}
	si.VolumeMax = 2
	if got := ClampLot(10, 5, si); got != 2 {
		t.Fatalf("потолок символа: %g", got)
	}
	if got := ClampLot(0.004, 5, si); got != 0 {
		t.Fatalf("ниже минимума: %g", got)
	}
}

func TestResolveEntry(t *testing.T) {
	rng := models.RangeEntry(1990, 2000)
	bid, ask := 2004.0, 2004.5

	tests := []struct {
		name  string
		strat models.RangeStrategy
		dir   models.Direction
		want  float64
	}{
		{"midpoint", models.RangeMidpoint, models.Buy, 1995},
		{"distributed даёт середину для оценки", models.RangeDistributed, models.Buy, 1995},
		{"closest для buy", models.RangeClosest, models.Buy, 2000},
		{"farthest для buy", models.RangeFarthest, models.Buy, 1990},
		{"closest для sell", models.RangeClosest, models.Sell, 2000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveEntry(rng, tc.strat, tc.dir, bid, ask)
			if err != nil {
				t.Fatalf("ResolveEntry: %v", err)
			}
			if got != tc.want {
				t.Fatalf("entry = %g, ждали %g", got, tc.want)
			}
		})
	}

	if px, err := ResolveEntry(models.PriceEntry(1980), "", models.Buy, bid, ask); err != nil || px != 1980 {
		t.Fatalf("точная цена: %g, %v", px, err)
	}
	if px, err := ResolveEntry(models.MarketEntry(), "", models.Buy, bid, ask); err != nil || px != 0 {
		t.Fatalf("market: %g, %v", px, err)
	}
	if _, err := ResolveEntry(rng, "чушь", models.Buy, bid, ask); err == nil {
		t.Fatal("неизвестная стратегия должна давать ошибку")
	}
}

func TestAdjustEntryForSpread(t *testing.T) {
	si := goldInfo() // 2 знака: пипс = пункт, предел спреда = 1.0
	if got := AdjustEntryForSpread(2000, models.Buy, 0.5, si); got != 2000.5 {
		t.Fatalf("buy: %g", got)
	}
	if got := AdjustEntryForSpread(2000, models.Sell, 0.5, si); got != 1999.5 {
		t.Fatalf("sell: %g", got)
	}
	if got := AdjustEntryForSpread(2000, models.Buy, 0, si); got != 2000 {
		t.Fatalf("нулевой спред: %g", got)
	}
	// Битая котировка с диким спредом не должна двигать вход.
	if got := AdjustEntryForSpread(2000, models.Buy, 5, si); got != 2000 {
		t.Fatalf("широкий спред: %g", got)
	}
	if got := AdjustEntryForSpread(2000, models.Sell, -0.3, si); got != 2000 {
		t.Fatalf("отрицательный спред: %g", got)
	}
}

func TestAutoStopPrice(t *testing.T) {
	si := goldInfo() // 2 знака — пипс равен пункту
	sl := AutoStopPrice(2000, models.Buy, 30, si, false)
	if math.Abs(sl-1999.7) > 1e-9 {
		t.Fatalf("SL = %g, ждали 1999.7", sl)
	}
	tp := AutoStopPrice(2000, models.Buy, 50, si, true)
	if math.Abs(tp-2000.5) > 1e-9 {
		t.Fatalf("TP = %g, ждали 2000.5", tp)
	}
	slSell := AutoStopPrice(2000, models.Sell, 30, si, false)
	if math.Abs(slSell-2000.3) > 1e-9 {
		t.Fatalf("SL sell = %g, ждали 2000.3", slSell)
	}
}
