package service

import (
	"fmt"
	"time"

	"signal_bot/internal/models"
)

// Реткоды MT5, которые мы различаем.
const (
	RetcodeDone        = 10009
	RetcodeDonePartial = 10010
	RetcodeRequote     = 10004
	RetcodeReject      = 10006
	RetcodeInvalidVol  = 10014
	RetcodeInvalidPx   = 10015
	RetcodeInvalidStop = 10016
	RetcodeMarketClose = 10018
	RetcodeNoMoney     = 10019
	RetcodePriceChange = 10020
	RetcodePriceOff    = 10021
	RetcodeInvalidFill = 10030
)

// Режимы исполнения, между которыми переключаемся при INVALID_FILL.
const (
	FillIOC = "IOC"
	FillFOK = "FOK"
)

// BridgeError — отказ бриджа с реткодом терминала.
type BridgeError struct {
	Retcode int
	Comment string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge: retcode=%d comment=%q", e.Retcode, e.Comment)
}

func IsRetryableRetcode(code int) bool {
	switch code {
	case RetcodeRequote, RetcodePriceChange, RetcodePriceOff:
		return true
	}
	return false
}

type Tick struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
}

func (t Tick) Spread() float64 { return t.Ask - t.Bid }

type SymbolInfo struct {
	Symbol      string  `json:"symbol"`
	Digits      int     `json:"digits"`
	Point       float64 `json:"point"`
	TickSize    float64 `json:"tick_size"`
	VolumeMin   float64 `json:"volume_min"`
	VolumeMax   float64 `json:"volume_max"`
	VolumeStep  float64 `json:"volume_step"`
	StopsLevel  int     `json:"stops_level"` // минимальная дистанция стопов, в пунктах
	TradeAllows bool    `json:"trade_allowed"`
}

type Position struct {
	Ticket    int64   `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"` // BUY / SELL
	Volume    float64 `json:"volume"`
	PriceOpen float64 `json:"price_open"`
	SL        float64 `json:"sl"`
	TP        float64 `json:"tp"`
	Profit    float64 `json:"profit"`
	Comment   string  `json:"comment"`
}

type Order struct {
	Ticket    int64   `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"` // BUY_LIMIT / SELL_STOP / ...
	Volume    float64 `json:"volume"`
	PriceOpen float64 `json:"price_open"`
	SL        float64 `json:"sl"`
	TP        float64 `json:"tp"`
	Comment   string  `json:"comment"`
}

type Deal struct {
	Ticket     int64   `json:"ticket"`
	PositionID int64   `json:"position_id"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	Profit     float64 `json:"profit"`
	Reason     string  `json:"reason"` // TP / SL / CLIENT / ...
	Time       int64   `json:"time"`
}

// OrderRequest — то, что уходит на бридж при постановке.
type OrderRequest struct {
	Symbol    string           `json:"symbol"`
	Direction models.Direction `json:"direction"`
	Kind      models.OrderKind `json:"kind"`
	Volume    float64          `json:"volume"`
	Price     float64          `json:"price,omitempty"` // 0 для market
	SL        float64          `json:"sl,omitempty"`
	TP        float64          `json:"tp,omitempty"`
	Comment   string           `json:"comment,omitempty"`
	FillMode  string           `json:"fill_mode,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

type OrderResult struct {
	Retcode int     `json:"retcode"`
	Comment string  `json:"comment"`
	Order   int64   `json:"order"`
	Deal    int64   `json:"deal"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
}

func (t Tick) At() time.Time { return time.Unix(t.Time, 0) }
