package models

import "time"

// SequenceInfo — позиция суб-ордера в последовательной серии.
type SequenceInfo struct {
	Index int // с единицы
	Total int
}

// TradeInfo — активная сделка (позиция или отложенный ордер), которую мы ведём.
type TradeInfo struct {
	Ticket         int64
	Symbol         string
	Direction      Direction
	OrderKind      OrderKind
	Volume         float64
	OriginalVolume float64 // объём на момент открытия, частичные закрытия его не трогают
	EntryPrice     float64 // запрошенная цена; для market — цена исполнения
	StopLoss       float64
	TakeProfit     float64   // назначенный этой сделке TP, 0 — нет
	AllTPs         []float64 // полный список тейков сигнала, для отчётов
	AutoTPApplied  bool
	OriginalMsgID  int
	Sequence       *SequenceInfo // nil — одиночная сделка
	IsPending      bool
	Comment        string
	OpenedAt       time.Time
	AutoSLSince    time.Time // нулевое — авто-SL не ждёт
}

// TicketResult — исход одной попытки в рамках стратегии или команды.
type TicketResult struct {
	Ticket int64
	OK     bool
	Err    string
	Note   string
}

// Outcome — структурированный итог: сколько пытались, что вышло.
type Outcome struct {
	Attempted int
	Skipped   int // пропущено осознанно (зона, флаг), не ошибки
	Succeeded []TicketResult
	Failed    []TicketResult
}

func (o Outcome) AllOK() bool   { return len(o.Failed) == 0 && len(o.Succeeded) > 0 }
func (o Outcome) Partial() bool { return len(o.Failed) > 0 && len(o.Succeeded) > 0 }

// PendingConfirmation — рыночный сигнал в ожидании подтверждения оператора.
type PendingConfirmation struct {
	ID        string // uuid
	Signal    SignalData
	Lot       float64
	ExpiresAt time.Time
}

// ChannelEvent — сырое событие из сигнального канала.
type ChannelEvent struct {
	MsgID     int
	Text      string
	Edited    bool
	ReplyToID int // 0 — не реплай
	At        time.Time
}
