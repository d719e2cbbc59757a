package helper

import (
	"math"
	"strconv"
)

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Ceil(px/tick - 1e-12)
	return steps * tick
}

// RoundToTick — к ближайшему тику (котировки брокера всегда на сетке).
func RoundToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 0.5)
	return steps * tick
}

// SnapVolume — объём к ближайшему шагу, ниже минимума обнуляем.
func SnapVolume(vol, step, min float64) float64 {
	if step <= 0 {
		return vol
	}
	snapped := math.RoundToEven(vol/step) * step
	// шаг лота даёт хвосты вида 0.30000000000000004
	snapped = math.Round(snapped*1e8) / 1e8
	if snapped < min {
		return 0
	}
	return snapped
}

func FormatPrice(px float64, digits int) string {
	if digits < 0 {
		digits = 5
	}
	return strconv.FormatFloat(px, 'f', digits, 64)
}

func FormatVolume(vol float64) string {
	return strconv.FormatFloat(vol, 'f', 2, 64)
}

// ApproxEqual — сравнение цен с допуском в долю тика.
func ApproxEqual(a, b, tick float64) bool {
	eps := tick / 2
	if eps <= 0 {
		eps = 1e-9
	}
	return math.Abs(a-b) < eps
}
