package decision

import (
	"testing"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.FileConfig{})
	m.Run()
}

func defCfg() Config {
	return Config{
		PriceActionWeight: 0.5,
		SentimentWeight:   0.5,
		Threshold:         0.6,
		EqualPriceKind:    models.OrderLimit,
	}
}

func TestDecideMarketUnconditional(t *testing.T) {
	sig := models.SignalData{
		Direction: models.Buy,
		Symbol:    "XAUUSD",
		Entry:     models.MarketEntry(),
		Sentiment: 0, // даже нулевой sentiment не мешает рынку
	}
	res := Decide(sig, 0, 2000.0, 2000.5, defCfg())
	if !res.Approved || res.Kind != models.OrderMarket {
		t.Fatalf("market: approved=%v kind=%s", res.Approved, res.Kind)
	}
}

func TestDecidePending(t *testing.T) {
	tests := []struct {
		name         string
		dir          models.Direction
		entry        float64
		bid, ask     float64
		sentiment    float64
		wantApproved bool
		wantKind     models.OrderKind
	}{
		{
			name: "buy ниже рынка — limit, проходит",
			dir:  models.Buy, entry: 1999.0, bid: 2000.0, ask: 2000.5,
			sentiment: 0.8, wantApproved: true, wantKind: models.OrderLimit,
		},
		{
			name: "buy выше рынка — stop, проходит",
			dir:  models.Buy, entry: 2001.0, bid: 2000.0, ask: 2000.5,
			sentiment: 0.8, wantApproved: true, wantKind: models.OrderStop,
		},
		{
			name: "sell выше рынка — limit",
			dir:  models.Sell, entry: 2001.0, bid: 2000.0, ask: 2000.5,
			sentiment: 0.8, wantApproved: true, wantKind: models.OrderLimit,
		},
		{
			name: "sell ниже рынка — stop",
			dir:  models.Sell, entry: 1999.0, bid: 2000.0, ask: 2000.5,
			sentiment: 0.8, wantApproved: true, wantKind: models.OrderStop,
		},
		{
			name: "слабый sentiment — отклонение",
			dir:  models.Buy, entry: 1999.0, bid: 2000.0, ask: 2000.5,
			sentiment: 0.1, wantApproved: false, wantKind: models.OrderLimit,
		},
		{
			name: "равенство цен — настроенный limit, оценка чистая",
			dir:  models.Buy, entry: 2000.5, bid: 2000.0, ask: 2000.5,
			sentiment: 0.9, wantApproved: true, wantKind: models.OrderLimit,
		},
		{
			name: "равенство цен не режет сигнал само по себе",
			dir:  models.Buy, entry: 2000.5, bid: 2000.0, ask: 2000.5,
			sentiment: 1.0, wantApproved: true, wantKind: models.OrderLimit,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sig := models.SignalData{
				Direction: tc.dir,
				Symbol:    "XAUUSD",
				Entry:     models.PriceEntry(tc.entry),
				Sentiment: tc.sentiment,
			}
			res := Decide(sig, tc.entry, tc.bid, tc.ask, defCfg())
			if res.Approved != tc.wantApproved {
				t.Fatalf("approved = %v, ждали %v (%s)", res.Approved, tc.wantApproved, res.Reason)
			}
			if res.Kind != tc.wantKind {
				t.Fatalf("kind = %s, ждали %s", res.Kind, tc.wantKind)
			}
		})
	}
}

func TestDecideEqualPriceConfigurable(t *testing.T) {
	cfg := defCfg()
	cfg.EqualPriceKind = models.OrderStop

	sig := models.SignalData{
		Direction: models.Buy,
		Entry:     models.PriceEntry(2000.5),
		Sentiment: 1,
	}
	res := Decide(sig, 2000.5, 2000.0, 2000.5, cfg)
	if res.Kind != models.OrderStop {
		t.Fatalf("kind = %s, ждали stop из конфига", res.Kind)
	}
	if !res.Approved || res.Score != 1.0 {
		t.Fatalf("approved=%v score=%v, ждали одобрение с полным баллом", res.Approved, res.Score)
	}
}
