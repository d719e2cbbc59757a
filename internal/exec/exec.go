package exec

import (
	"context"
	"math"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/gateway/service"
	"signal_bot/internal/state"
)

// StrategyKind — способ исполнения одобренного сигнала.
type StrategyKind int

const (
	KindSingle StrategyKind = iota
	KindMultiMarketStop
	KindDistributed
)

func (k StrategyKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindMultiMarketStop:
		return "multi_market_stop"
	case KindDistributed:
		return "distributed_limits"
	}
	return "?"
}

// Plan — одобренный сигнал, готовый к исполнению.
type Plan struct {
	Signal models.SignalData
	Lot    float64
	Entry  float64 // разрешённая цена входа, 0 для market
	Kind   models.OrderKind
}

// ExecutionStrategy исполняет план и отчитывается структурированным итогом.
// Ошибка — только инфраструктурный срыв до постановки ордеров;
// отказ брокера по конкретному суб-ордеру живёт в Outcome.Failed.
type ExecutionStrategy interface {
	Execute(ctx context.Context, p Plan) (models.Outcome, error)
}

// Gateway — операции бриджа, нужные стратегиям.
type Gateway interface {
	Tick(ctx context.Context, symbol string) (service.Tick, error)
	Symbol(ctx context.Context, symbol string) (service.SymbolInfo, error)
	PlaceWithRetry(ctx context.Context, req service.OrderRequest) (service.OrderResult, error)
}

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

type Deps struct {
	GW       Gateway
	Store    *state.Store
	Notifier Notifier
	Cfg      *config.Config
}

// Select — чистый выбор стратегии.
// Диапазон с distributed всегда раскладывается лимитками по зоне.
// Последовательная серия включается флагом и требует лота хотя бы
// на два юнита, численных TP и market/stop типа.
func Select(sig models.SignalData, kind models.OrderKind, lot, unit float64, sequential bool) StrategyKind {
	if sig.Entry.Kind == models.EntryRange && sig.RangeStrategy == models.RangeDistributed {
		return KindDistributed
	}
	if sequential &&
		lot >= 2*unit-1e-9 &&
		sig.HasTP() &&
		(kind == models.OrderMarket || kind == models.OrderStop) {
		return KindMultiMarketStop
	}
	return KindSingle
}

// New — стратегия по виду.
func New(kind StrategyKind, d Deps) ExecutionStrategy {
	switch kind {
	case KindMultiMarketStop:
		return &MultiMarketStop{d: d}
	case KindDistributed:
		return &DistributedLimits{d: d}
	default:
		return &SingleTrade{d: d}
	}
}

// UnitLot — размер одного суб-ордера серии.
func UnitLot(si service.SymbolInfo) float64 {
	return math.Max(si.VolumeMin, 0.01)
}
