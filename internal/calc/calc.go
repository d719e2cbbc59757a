package calc

import (
	"fmt"
	"math"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/gateway/service"
	"signal_bot/pkg/logger"
)

// Split — разбивка лота на серию суб-ордеров.
type Split struct {
	Unit      float64 // размер одного суб-ордера
	NumFull   int
	Remainder float64 // 0, если хвост меньше минимального лота
}

func (s Split) Total() int {
	if s.Remainder > 0 {
		return s.NumFull + 1
	}
	return s.NumFull
}

// Volumes — объёмы по порядку: полные юниты, затем хвост.
func (s Split) Volumes() []float64 {
	out := make([]float64, 0, s.Total())
	for i := 0; i < s.NumFull; i++ {
		out = append(out, s.Unit)
	}
	if s.Remainder > 0 {
		out = append(out, s.Remainder)
	}
	return out
}

// SplitLot делит лот на юниты max(volume_min, 0.01).
// Хвост прижимается к шагу объёма и обнуляется ниже минимума.
func SplitLot(lot float64, si service.SymbolInfo) Split {
	unit := math.Max(si.VolumeMin, 0.01)
	numFull := int(math.Floor(lot/unit + 1e-9))
	raw := lot - float64(numFull)*unit
	remainder := helper.SnapVolume(raw, si.VolumeStep, si.VolumeMin)
	return Split{Unit: unit, NumFull: numFull, Remainder: remainder}
}

// ClampLot — лот в пределы символа и конфигурационного потолка.
func ClampLot(lot, maxLot float64, si service.SymbolInfo) float64 {
	if lot <= 0 {
		return 0
	}
	if maxLot > 0 && lot > maxLot {
		lot = maxLot
	}
	if si.VolumeMax > 0 && lot > si.VolumeMax {
		lot = si.VolumeMax
	}
	snapped := helper.SnapVolume(lot, si.VolumeStep, si.VolumeMin)
	return snapped
}

// ResolveEntry — одна цена входа из записи сигнала.
// Для диапазона с distributed возвращает середину: она нужна только
// для оценки и выбора типа, раскладкой по зоне занимается стратегия.
func ResolveEntry(e models.Entry, strat models.RangeStrategy, dir models.Direction, bid, ask float64) (float64, error) {
	switch e.Kind {
	case models.EntryMarket:
		return 0, nil
	case models.EntryPrice:
		return e.Price, nil
	case models.EntryRange:
	default:
		return 0, fmt.Errorf("calc: неизвестный вид входа %d", e.Kind)
	}

	current := ask
	if dir == models.Sell {
		current = bid
	}

	switch strat {
	case models.RangeMidpoint, models.RangeDistributed, "":
		return (e.Low + e.High) / 2, nil
	case models.RangeClosest:
		if math.Abs(e.Low-current) <= math.Abs(e.High-current) {
			return e.Low, nil
		}
		return e.High, nil
	case models.RangeFarthest:
		if math.Abs(e.Low-current) > math.Abs(e.High-current) {
			return e.Low, nil
		}
		return e.High, nil
	}
	return 0, fmt.Errorf("calc: неизвестная стратегия диапазона %q", strat)
}

// AdjustEntryForSpread — поправка цены отложенного стопа на спред:
// покупки триггерятся по ask, продажи по bid, а цены сигналов идут
// с bid-графика. Аномально широкий спред (больше 100 пипсов) — признак
// битой котировки, поправку пропускаем. SL и TP не трогаем: их ведёт
// брокер по своей стороне котировки, двойная поправка лишняя.
func AdjustEntryForSpread(entry float64, dir models.Direction, spread float64, si service.SymbolInfo) float64 {
	if spread <= 0 {
		return entry
	}
	if spread > 100*pipSize(si) {
		logger.Warn("calc: спред %g аномально широк для %s, вход без поправки", spread, si.Symbol)
		return entry
	}
	if dir == models.Buy {
		return entry + spread
	}
	return entry - spread
}

// pipSize — пипс символа: 10 пунктов на 5/3-значных котировках, иначе пункт.
func pipSize(si service.SymbolInfo) float64 {
	if si.Digits == 4 || si.Digits == 2 {
		return si.Point
	}
	return si.Point * 10
}

// AutoStopPrice — цена SL/TP на заданном числе пипсов от входа.
func AutoStopPrice(entry float64, dir models.Direction, pips float64, si service.SymbolInfo, isTP bool) float64 {
	dist := pips * pipSize(si)
	below := dir == models.Buy && !isTP || dir == models.Sell && isTP
	var px float64
	if below {
		px = entry - dist
	} else {
		px = entry + dist
	}
	return helper.RoundToTick(px, si.TickSize)
}
