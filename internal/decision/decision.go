package decision

import (
	"fmt"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

// Config — веса и порог одобрения. Явная структура, никаких глобалей.
type Config struct {
	PriceActionWeight float64
	SentimentWeight   float64
	Threshold         float64
	// Что ставить, когда цена входа совпала с рынком: limit или stop.
	EqualPriceKind models.OrderKind
}

type Result struct {
	Approved bool
	Kind     models.OrderKind
	Score    float64
	Reason   string
}

// Decide — одобрение сигнала и выбор типа ордера.
// Рыночные сигналы проходят безусловно. Отложенные набирают балл:
// бинарная оценка расположения цены × вес + sentiment × вес, сравнение с порогом.
// entry — уже разрешённая цена входа (для диапазона — по стратегии выбора).
func Decide(sig models.SignalData, entry, bid, ask float64, cfg Config) Result {
	if sig.Entry.Kind == models.EntryMarket {
		return Result{
			Approved: true,
			Kind:     models.OrderMarket,
			Score:    1,
			Reason:   "рыночный сигнал, исполняем без оценки",
		}
	}

	kind, clean := proposeKind(sig.Direction, entry, bid, ask, cfg.EqualPriceKind)

	priceAction := 0.0
	if clean {
		priceAction = 1.0
	}

	score := priceAction*cfg.PriceActionWeight + sig.Sentiment*cfg.SentimentWeight
	approved := score >= cfg.Threshold

	reason := fmt.Sprintf("score=%.2f (pa=%.0f*%.2f + sent=%.2f*%.2f), порог %.2f",
		score, priceAction, cfg.PriceActionWeight, sig.Sentiment, cfg.SentimentWeight, cfg.Threshold)

	return Result{
		Approved: approved,
		Kind:     kind,
		Score:    score,
		Reason:   reason,
	}
}

// proposeKind — тип отложенного ордера из взаимного расположения входа и рынка.
// Точное совпадение цен — не брак: берём настроенный тип и считаем оценку чистой,
// отказ из-за одного равенства недопустим.
func proposeKind(dir models.Direction, entry, bid, ask float64, equalKind models.OrderKind) (models.OrderKind, bool) {
	var market float64
	if dir == models.Buy {
		market = ask
	} else {
		market = bid
	}

	switch {
	case entry == market:
		kind := equalKind
		if kind != models.OrderLimit && kind != models.OrderStop {
			kind = models.OrderLimit
		}
		logger.Warn("decision: цена входа %g совпала с рынком, ставим %s", entry, kind)
		return kind, true
	case dir == models.Buy && entry < market, dir == models.Sell && entry > market:
		return models.OrderLimit, true
	default:
		return models.OrderStop, true
	}
}
