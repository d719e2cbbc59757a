package tpassign

import (
	"fmt"
)

// Режимы раздачи тейков по суб-сделкам.
const (
	ModeNone          = "none"
	ModeFirstTPFirst  = "first_tp_first_trade"
	ModeCustomMapping = "custom_mapping"
)

// Assign возвращает TP на каждую из numTrades суб-сделок (0 — без TP).
//
// none — никому; first_tp_first_trade — первый TP уходит только первой
// сделке, остальные идут без TP; custom_mapping — по списку индексов из
// конфига (-1 или индекс вне списка — без TP, короткий маппинг добивается
// пустыми слотами). Неизвестный режим — ошибка: вызывающий обязан
// откатиться к раздаче без TP, а не падать.
func Assign(mode string, mapping []int, numTrades int, tps []float64) ([]float64, error) {
	if numTrades <= 0 {
		return nil, fmt.Errorf("tpassign: numTrades=%d", numTrades)
	}

	out := make([]float64, numTrades)

	switch mode {
	case ModeNone, "":
		return out, nil

	case ModeFirstTPFirst:
		if len(tps) > 0 {
			out[0] = tps[0]
		}
		return out, nil

	case ModeCustomMapping:
		for i := 0; i < numTrades && i < len(mapping); i++ {
			idx := mapping[i]
			if idx < 0 || idx >= len(tps) {
				continue
			}
			out[i] = tps[idx]
		}
		return out, nil
	}

	return nil, fmt.Errorf("tpassign: неизвестный режим %q", mode)
}
