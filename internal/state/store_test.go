package state

import (
	"testing"
	"time"

	"signal_bot/internal/models"
)

func TestTradesByMsgID(t *testing.T) {
	s := NewStore(10, 100)
	s.AddTrade(models.TradeInfo{Ticket: 1, OriginalMsgID: 42})
	s.AddTrade(models.TradeInfo{Ticket: 2, OriginalMsgID: 42})
	s.AddTrade(models.TradeInfo{Ticket: 3, OriginalMsgID: 7})

	got := s.TradesByMsgID(42)
	if len(got) != 2 {
		t.Fatalf("TradesByMsgID(42) = %d сделок, ждали 2", len(got))
	}

	s.RemoveTrade(1)
	if got := s.TradesByMsgID(42); len(got) != 1 {
		t.Fatalf("после удаления = %d, ждали 1", len(got))
	}
}

func TestUpdateTrade(t *testing.T) {
	s := NewStore(10, 100)
	s.AddTrade(models.TradeInfo{Ticket: 5, StopLoss: 1.1})

	ok := s.UpdateTrade(5, func(tr *models.TradeInfo) { tr.StopLoss = 2.2 })
	if !ok {
		t.Fatal("UpdateTrade вернул false для существующего тикета")
	}
	tr, _ := s.Trade(5)
	if tr.StopLoss != 2.2 {
		t.Fatalf("StopLoss = %g, ждали 2.2", tr.StopLoss)
	}

	if s.UpdateTrade(999, func(*models.TradeInfo) {}) {
		t.Fatal("UpdateTrade вернул true для несуществующего тикета")
	}
}

func TestDedupEviction(t *testing.T) {
	s := NewStore(10, 3)
	for id := 1; id <= 4; id++ {
		s.MarkProcessed(id)
	}

	if s.IsProcessed(1) {
		t.Fatal("старейший id должен быть вытеснен")
	}
	for id := 2; id <= 4; id++ {
		if !s.IsProcessed(id) {
			t.Fatalf("id %d потерян", id)
		}
	}

	// повторная отметка не плодит записи в очереди
	s.MarkProcessed(4)
	s.MarkProcessed(5)
	if !s.IsProcessed(2) {
		t.Fatal("id 2 вытеснен слишком рано")
	}
}

func TestHistoryRing(t *testing.T) {
	s := NewStore(2, 100)
	s.AddHistory(1, "первое")
	s.AddHistory(2, "второе")
	s.AddHistory(3, "третье")

	got := s.RecentHistory()
	if len(got) != 2 || got[0] != "второе" || got[1] != "третье" {
		t.Fatalf("RecentHistory = %v", got)
	}

	if _, ok := s.HistoryText(1); ok {
		t.Fatal("вытесненное сообщение всё ещё находится")
	}
	if txt, ok := s.HistoryText(3); !ok || txt != "третье" {
		t.Fatalf("HistoryText(3) = %q, %v", txt, ok)
	}
}

func TestConfirmationSweep(t *testing.T) {
	s := NewStore(10, 100)
	now := time.Now()
	s.AddConfirmation(models.PendingConfirmation{ID: "a", ExpiresAt: now.Add(-time.Minute)})
	s.AddConfirmation(models.PendingConfirmation{ID: "b", ExpiresAt: now.Add(time.Minute)})

	expired := s.SweepConfirmations(now)
	if len(expired) != 1 || expired[0].ID != "a" {
		t.Fatalf("SweepConfirmations = %v", expired)
	}

	if _, ok := s.PopConfirmation("b"); !ok {
		t.Fatal("живое подтверждение пропало")
	}
	if _, ok := s.PopConfirmation("a"); ok {
		t.Fatal("просроченное подтверждение осталось")
	}
}

func TestCooldown(t *testing.T) {
	s := NewStore(10, 100)
	now := time.Now()
	s.MarkCooldown("XAUUSD", now)

	if !s.InCooldown("XAUUSD", time.Minute, now.Add(30*time.Second)) {
		t.Fatal("кулдаун должен действовать")
	}
	if s.InCooldown("XAUUSD", time.Minute, now.Add(2*time.Minute)) {
		t.Fatal("кулдаун должен истечь")
	}
	if s.InCooldown("EURUSD", time.Minute, now) {
		t.Fatal("чужой символ не в кулдауне")
	}
}
