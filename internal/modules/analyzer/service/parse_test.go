package service

import (
	"testing"

	"signal_bot/internal/models"
)

func TestParseVerdictSignal(t *testing.T) {
	raw := []byte(`{
		"message_type": "new_signal",
		"action": "buy",
		"symbol": "xauusd",
		"entry": "1990-2000",
		"stop_loss": "1980",
		"take_profits": ["2010", "2020", "N/A"],
		"sentiment": 0.8
	}`)

	v, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Type != models.MessageNewSignal || v.Signal == nil {
		t.Fatalf("ожидался сигнал, получено %+v", v)
	}
	sig := v.Signal
	if sig.Direction != models.Buy || sig.Symbol != "XAUUSD" {
		t.Errorf("направление/символ: %s %s", sig.Direction, sig.Symbol)
	}
	if sig.Entry.Kind != models.EntryRange || sig.Entry.Low != 1990 || sig.Entry.High != 2000 {
		t.Errorf("вход: %+v", sig.Entry)
	}
	if sig.StopLoss != 1980 {
		t.Errorf("SL: %g", sig.StopLoss)
	}
	if len(sig.TakeProfits) != 2 || sig.TakeProfits[0] != 2010 || sig.TakeProfits[1] != 2020 {
		t.Errorf("TP: %v", sig.TakeProfits)
	}
}

func TestParseVerdictEntryForms(t *testing.T) {
	cases := []struct {
		name  string
		entry string
		want  models.Entry
		bad   bool
	}{
		{"market", "Market", models.MarketEntry(), false},
		{"na", "N/A", models.MarketEntry(), false},
		{"price", "1995.5", models.PriceEntry(1995.5), false},
		{"range", "1990-2000", models.RangeEntry(1990, 2000), false},
		{"range reversed", "2000-1990", models.RangeEntry(1990, 2000), false},
		{"zone prefix", "zone 1990-2000", models.RangeEntry(1990, 2000), false},
		{"garbage", "at best", models.Entry{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseEntry(tc.entry)
			if tc.bad {
				if err == nil {
					t.Fatalf("ожидалась ошибка для %q", tc.entry)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEntry(%q): %v", tc.entry, err)
			}
			if got != tc.want {
				t.Errorf("parseEntry(%q) = %+v, ожидалось %+v", tc.entry, got, tc.want)
			}
		})
	}
}

func TestParseVerdictUpdate(t *testing.T) {
	raw := []byte(`{
		"message_type": "update",
		"update_type": "partial_close",
		"symbol": "xauusd",
		"target_msg_id": 42,
		"target_trade_index": 2,
		"close_percentage": "50"
	}`)

	v, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Type != models.MessageUpdate || v.Update == nil {
		t.Fatalf("ожидалось обновление, получено %+v", v)
	}
	if v.Update.Kind != models.UpdatePartialClose || v.Update.TargetMsgID != 42 {
		t.Errorf("update: %+v", v.Update)
	}
	if v.Update.Symbol != "XAUUSD" || v.Update.TargetTradeIndex != 2 {
		t.Errorf("подсказки цели: %+v", v.Update)
	}
	if v.Update.ClosePct != 50 {
		t.Errorf("ClosePct = %g", v.Update.ClosePct)
	}
}

func TestParseVerdictUnknownUpdateKind(t *testing.T) {
	raw := []byte(`{"message_type":"update","update_type":"hedge_all","target_msg_id":7}`)
	v, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Update == nil || v.Update.Kind != models.UpdateUnknown || v.Update.TargetMsgID != 7 {
		t.Errorf("ожидался unknown, получено %+v", v.Update)
	}
}

func TestParseVerdictErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `обычный текст`},
		{"bad message type", `{"message_type":"spam"}`},
		{"bad direction", `{"message_type":"new_signal","action":"HOLD","symbol":"XAUUSD","entry":"Market","sentiment":0.5}`},
		{"bad sentiment", `{"message_type":"new_signal","action":"BUY","symbol":"XAUUSD","entry":"Market","sentiment":1.5}`},
		{"bad stop loss", `{"message_type":"new_signal","action":"BUY","symbol":"XAUUSD","entry":"Market","stop_loss":"дорого","sentiment":0.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseVerdict([]byte(tc.raw)); err == nil {
				t.Errorf("ожидалась ошибка")
			}
		})
	}
}

func TestParseVerdictIgnore(t *testing.T) {
	v, err := ParseVerdict([]byte(`{"message_type":"ignore"}`))
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Type != models.MessageIgnore {
		t.Errorf("тип = %s", v.Type)
	}
}
