package service

import (
	"fmt"
	"strconv"
	"strings"

	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
)

// Verdict — разобранный и провалидированный ответ классификатора.
type Verdict struct {
	Type   models.MessageType
	Signal *models.SignalData
	Update *models.UpdateData
}

// rawVerdict — ответ модели как есть: цены строками, пропуски как "N/A".
type rawVerdict struct {
	MessageType string      `json:"message_type"`
	Action      string      `json:"action"`
	Symbol      string      `json:"symbol"`
	Entry       string      `json:"entry"`
	StopLoss    string      `json:"stop_loss"`
	TakeProfits []string    `json:"take_profits"`
	Sentiment   float64     `json:"sentiment"`
	UpdateType  string      `json:"update_type"`
	TargetMsgID int         `json:"target_msg_id"`
	TargetIndex int         `json:"target_trade_index"` // с единицы, 0 — не задан
	NewSL       string      `json:"new_sl"`
	NewTPs      []string    `json:"new_tps"`
	NewEntry    string      `json:"new_entry"`
	CloseVolume string      `json:"close_volume"`
	ClosePct    interface{} `json:"close_percentage"`
}

// ParseVerdict — строгая граница: всё, что не проходит валидацию,
// превращается в ошибку, а не ползёт дальше полуразобранным.
func ParseVerdict(raw []byte) (Verdict, error) {
	var rv rawVerdict
	if err := sonic.Unmarshal(raw, &rv); err != nil {
		return Verdict{}, fmt.Errorf("parse: %w", err)
	}

	switch rv.MessageType {
	case string(models.MessageIgnore), "":
		return Verdict{Type: models.MessageIgnore}, nil
	case string(models.MessageNewSignal):
		sig, err := parseSignal(rv)
		if err != nil {
			return Verdict{}, err
		}
		return Verdict{Type: models.MessageNewSignal, Signal: sig}, nil
	case string(models.MessageUpdate):
		upd, err := parseUpdate(rv)
		if err != nil {
			return Verdict{}, err
		}
		return Verdict{Type: models.MessageUpdate, Update: upd}, nil
	}
	return Verdict{}, fmt.Errorf("parse: неизвестный message_type %q", rv.MessageType)
}

func parseSignal(rv rawVerdict) (*models.SignalData, error) {
	entry, err := parseEntry(rv.Entry)
	if err != nil {
		return nil, err
	}

	sl, err := parseOptPrice(rv.StopLoss)
	if err != nil {
		return nil, fmt.Errorf("parse: stop_loss: %w", err)
	}

	var tps []float64
	for _, s := range rv.TakeProfits {
		px, err := parseOptPrice(s)
		if err != nil {
			return nil, fmt.Errorf("parse: take_profit %q: %w", s, err)
		}
		if px > 0 {
			tps = append(tps, px)
		}
	}

	sig := &models.SignalData{
		Direction:   models.Direction(strings.ToUpper(strings.TrimSpace(rv.Action))),
		Symbol:      strings.ToUpper(strings.TrimSpace(rv.Symbol)),
		Entry:       entry,
		StopLoss:    sl,
		TakeProfits: tps,
		Sentiment:   rv.Sentiment,
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return sig, nil
}

func parseUpdate(rv rawVerdict) (*models.UpdateData, error) {
	kind := models.UpdateKind(strings.ToLower(strings.TrimSpace(rv.UpdateType)))

	newSL, err := parseOptPrice(rv.NewSL)
	if err != nil {
		return nil, fmt.Errorf("parse: new_sl: %w", err)
	}
	newEntry, err := parseOptPrice(rv.NewEntry)
	if err != nil {
		return nil, fmt.Errorf("parse: new_entry: %w", err)
	}
	closeVol, err := parseOptPrice(rv.CloseVolume)
	if err != nil {
		return nil, fmt.Errorf("parse: close_volume: %w", err)
	}

	var newTPs []float64
	for _, s := range rv.NewTPs {
		px, err := parseOptPrice(s)
		if err != nil {
			return nil, fmt.Errorf("parse: new_tp %q: %w", s, err)
		}
		newTPs = append(newTPs, px)
	}

	symbol := strings.ToUpper(strings.TrimSpace(rv.Symbol))
	if symbol == "N/A" {
		symbol = ""
	}

	upd := &models.UpdateData{
		Kind:             kind,
		TargetMsgID:      rv.TargetMsgID,
		Symbol:           symbol,
		TargetTradeIndex: rv.TargetIndex,
		NewSL:            newSL,
		NewTPs:           newTPs,
		NewEntry:         newEntry,
		CloseVolume:      closeVol,
		ClosePct:         parseClosePct(rv.ClosePct),
	}
	if err := upd.Validate(); err != nil {
		// незнакомый тип не валит обработку: команда станет unknown
		upd = &models.UpdateData{Kind: models.UpdateUnknown, TargetMsgID: rv.TargetMsgID}
	}
	return upd, nil
}

// parseEntry: "Market" | "1234.5" | "1990-2000".
func parseEntry(s string) (models.Entry, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "market") || strings.EqualFold(s, "n/a") {
		return models.MarketEntry(), nil
	}

	// диапазон вида LOW-HIGH, иногда с префиксом "zone"
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(s), "zone"))
	if lo, hi, ok := splitRange(cleaned); ok {
		if lo > hi {
			lo, hi = hi, lo
		}
		return models.RangeEntry(lo, hi), nil
	}

	px, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || px <= 0 {
		return models.Entry{}, fmt.Errorf("parse: цена входа %q", s)
	}
	return models.PriceEntry(px), nil
}

func splitRange(s string) (lo, hi float64, ok bool) {
	sep := strings.IndexByte(s, '-')
	if sep <= 0 || sep >= len(s)-1 {
		return 0, 0, false
	}
	lo, err1 := strconv.ParseFloat(strings.TrimSpace(s[:sep]), 64)
	hi, err2 := strconv.ParseFloat(strings.TrimSpace(s[sep+1:]), 64)
	if err1 != nil || err2 != nil || lo <= 0 || hi <= 0 {
		return 0, 0, false
	}
	return lo, hi, true
}

// parseOptPrice: число строкой, "N/A" и пустота — это ноль.
func parseOptPrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "n/a") || strings.EqualFold(s, "none") {
		return 0, nil
	}
	px, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("не число: %q", s)
	}
	if px < 0 {
		return 0, fmt.Errorf("отрицательное: %q", s)
	}
	return px, nil
}

// parseClosePct терпит и число, и строку — модели путаются в типах.
func parseClosePct(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		if x > 0 && x <= 100 {
			return x
		}
	case string:
		if px, err := parseOptPrice(x); err == nil && px <= 100 {
			return px
		}
	}
	return 0
}
