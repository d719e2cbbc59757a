package models

import "fmt"

// Тип сообщения после классификации.
type MessageType string

const (
	MessageNewSignal MessageType = "new_signal"
	MessageUpdate    MessageType = "update"
	MessageIgnore    MessageType = "ignore"
)

type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// OrderKind — тип исполнения ордера.
type OrderKind string

const (
	OrderMarket OrderKind = "market"
	OrderLimit  OrderKind = "limit"
	OrderStop   OrderKind = "stop"
)

// Стратегия выбора цены входа из диапазона.
type RangeStrategy string

const (
	RangeMidpoint    RangeStrategy = "midpoint"
	RangeClosest     RangeStrategy = "closest"
	RangeFarthest    RangeStrategy = "farthest"
	RangeDistributed RangeStrategy = "distributed"
)

type EntryKind int

const (
	EntryMarket EntryKind = iota
	EntryPrice
	EntryRange
)

// Entry — вход сигнала: рынок, конкретная цена или диапазон LOW-HIGH.
type Entry struct {
	Kind  EntryKind
	Price float64
	Low   float64
	High  float64
}

func MarketEntry() Entry              { return Entry{Kind: EntryMarket} }
func PriceEntry(px float64) Entry     { return Entry{Kind: EntryPrice, Price: px} }
func RangeEntry(lo, hi float64) Entry { return Entry{Kind: EntryRange, Low: lo, High: hi} }

func (e Entry) String() string {
	switch e.Kind {
	case EntryMarket:
		return "Market"
	case EntryPrice:
		return fmt.Sprintf("%g", e.Price)
	case EntryRange:
		return fmt.Sprintf("%g-%g", e.Low, e.High)
	}
	return "?"
}

// SignalData — провалидированный торговый сигнал из канала.
type SignalData struct {
	Direction     Direction
	Symbol        string
	Entry         Entry
	RangeStrategy RangeStrategy // имеет смысл только при Entry.Kind == EntryRange
	StopLoss      float64       // 0 — не задан
	TakeProfits   []float64     // пустой — не заданы
	Sentiment     float64       // 0..1
	MsgID         int
}

func (s SignalData) HasSL() bool { return s.StopLoss > 0 }
func (s SignalData) HasTP() bool { return len(s.TakeProfits) > 0 }

func (s SignalData) Validate() error {
	if s.Direction != Buy && s.Direction != Sell {
		return fmt.Errorf("signal: неизвестное направление %q", s.Direction)
	}
	if s.Symbol == "" {
		return fmt.Errorf("signal: пустой символ")
	}
	switch s.Entry.Kind {
	case EntryMarket:
	case EntryPrice:
		if s.Entry.Price <= 0 {
			return fmt.Errorf("signal: цена входа %g", s.Entry.Price)
		}
	case EntryRange:
		if s.Entry.Low <= 0 || s.Entry.High <= 0 || s.Entry.Low > s.Entry.High {
			return fmt.Errorf("signal: диапазон входа %g-%g", s.Entry.Low, s.Entry.High)
		}
	default:
		return fmt.Errorf("signal: неизвестный вид входа %d", s.Entry.Kind)
	}
	if s.Sentiment < 0 || s.Sentiment > 1 {
		return fmt.Errorf("signal: sentiment %g вне [0,1]", s.Sentiment)
	}
	for _, tp := range s.TakeProfits {
		if tp <= 0 {
			return fmt.Errorf("signal: некорректный TP %g", tp)
		}
	}
	if s.StopLoss < 0 {
		return fmt.Errorf("signal: некорректный SL %g", s.StopLoss)
	}
	return nil
}

// UpdateKind — команда управления существующей сделкой.
type UpdateKind string

const (
	UpdateModifySLTP    UpdateKind = "modify_sltp"
	UpdateMoveSL        UpdateKind = "move_sl"
	UpdateSetBE         UpdateKind = "set_be"
	UpdateCloseTrade    UpdateKind = "close_trade"
	UpdatePartialClose  UpdateKind = "partial_close"
	UpdateCancelPending UpdateKind = "cancel_pending"
	UpdateModifyEntry   UpdateKind = "modify_entry"
	UpdateUnknown       UpdateKind = "unknown"
)

// UpdateData — провалидированная команда-обновление.
// TargetMsgID — id сообщения исходного сигнала, к которому она относится;
// 0 — источник неизвестен, цель ищется по последней открытой сделке.
type UpdateData struct {
	Kind             UpdateKind
	TargetMsgID      int
	Symbol           string     // подсказка классификатора для поиска цели, может быть пустой
	TargetTradeIndex int        // с единицы; 0 — не задан
	NewSL            float64    // 0 — не задан
	NewTPs           []float64  // modify_sltp
	NewEntry         float64    // modify_entry
	CloseVolume      float64    // partial_close, лоты
	ClosePct         float64    // partial_close, % объёма; приоритет у CloseVolume
	MsgID            int
}

func (u UpdateData) Validate() error {
	switch u.Kind {
	case UpdateModifySLTP, UpdateMoveSL, UpdateSetBE, UpdateCloseTrade,
		UpdatePartialClose, UpdateCancelPending, UpdateModifyEntry, UpdateUnknown:
	default:
		return fmt.Errorf("update: неизвестный тип %q", u.Kind)
	}
	if u.NewSL < 0 || u.NewEntry < 0 || u.CloseVolume < 0 {
		return fmt.Errorf("update: отрицательное значение")
	}
	if u.TargetTradeIndex < 0 {
		return fmt.Errorf("update: индекс целевой сделки %d", u.TargetTradeIndex)
	}
	if u.ClosePct < 0 || u.ClosePct > 100 {
		return fmt.Errorf("update: процент закрытия %g", u.ClosePct)
	}
	for _, tp := range u.NewTPs {
		if tp < 0 {
			return fmt.Errorf("update: некорректный TP %g", tp)
		}
	}
	return nil
}
