package state

import (
	"sync"
	"time"

	"signal_bot/internal/models"
)

// Store — всё изменяемое состояние бота: активные сделки, история канала,
// ожидающие подтверждения, кулдауны и фильтр дубликатов.
type Store struct {
	mu sync.RWMutex

	trades map[int64]*models.TradeInfo // ticket -> сделка

	history    []historyItem // кольцо последних сообщений канала
	historyCap int

	confirmations map[string]models.PendingConfirmation

	cooldowns map[string]time.Time // symbol -> момент последнего рыночного входа

	seen      map[int]struct{} // обработанные msg id
	seenQueue []int            // порядок вытеснения
	seenCap   int
}

type historyItem struct {
	MsgID int
	Text  string
}

func NewStore(historyCap, dedupCap int) *Store {
	if historyCap <= 0 {
		historyCap = 10
	}
	if dedupCap <= 0 {
		dedupCap = 500
	}
	return &Store{
		trades:        make(map[int64]*models.TradeInfo),
		historyCap:    historyCap,
		confirmations: make(map[string]models.PendingConfirmation),
		cooldowns:     make(map[string]time.Time),
		seen:          make(map[int]struct{}),
		seenCap:       dedupCap,
	}
}

// --- сделки ---

func (s *Store) AddTrade(t models.TradeInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.trades[t.Ticket] = &cp
}

func (s *Store) Trade(ticket int64) (models.TradeInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trades[ticket]
	if !ok {
		return models.TradeInfo{}, false
	}
	return *t, true
}

func (s *Store) RemoveTrade(ticket int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trades, ticket)
}

// TradesByMsgID — все сделки, порождённые одним сигналом.
func (s *Store) TradesByMsgID(msgID int) []models.TradeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TradeInfo
	for _, t := range s.trades {
		if t.OriginalMsgID == msgID {
			out = append(out, *t)
		}
	}
	return out
}

func (s *Store) AllTrades() []models.TradeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TradeInfo, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, *t)
	}
	return out
}

// UpdateTrade — точечная правка под мьютексом; false, если тикета уже нет.
func (s *Store) UpdateTrade(ticket int64, fn func(*models.TradeInfo)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[ticket]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// --- история канала ---

func (s *Store) AddHistory(msgID int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, historyItem{MsgID: msgID, Text: text})
	if len(s.history) > s.historyCap {
		s.history = s.history[len(s.history)-s.historyCap:]
	}
}

func (s *Store) RecentHistory() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.history))
	for _, h := range s.history {
		out = append(out, h.Text)
	}
	return out
}

// HistoryText — текст сообщения по id, для эвристики правок.
func (s *Store) HistoryText(msgID int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].MsgID == msgID {
			return s.history[i].Text, true
		}
	}
	return "", false
}

// --- подтверждения рыночных входов ---

func (s *Store) AddConfirmation(pc models.PendingConfirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations[pc.ID] = pc
}

func (s *Store) PopConfirmation(id string) (models.PendingConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.confirmations[id]
	if ok {
		delete(s.confirmations, id)
	}
	return pc, ok
}

// SweepConfirmations — удаляет просроченные, возвращает их для уведомления.
func (s *Store) SweepConfirmations(now time.Time) []models.PendingConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []models.PendingConfirmation
	for id, pc := range s.confirmations {
		if now.After(pc.ExpiresAt) {
			expired = append(expired, pc)
			delete(s.confirmations, id)
		}
	}
	return expired
}

// --- кулдауны ---

func (s *Store) MarkCooldown(symbol string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldowns[symbol] = at
}

func (s *Store) InCooldown(symbol string, period time.Duration, now time.Time) bool {
	if period <= 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	last, ok := s.cooldowns[symbol]
	return ok && now.Sub(last) < period
}

// --- дубликаты ---

func (s *Store) IsProcessed(msgID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[msgID]
	return ok
}

// MarkProcessed — отмечаем всегда, в том числе на ошибочных путях,
// иначе битое сообщение будет молотиться вечно.
func (s *Store) MarkProcessed(msgID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[msgID]; ok {
		return
	}
	s.seen[msgID] = struct{}{}
	s.seenQueue = append(s.seenQueue, msgID)
	if len(s.seenQueue) > s.seenCap {
		oldest := s.seenQueue[0]
		s.seenQueue = s.seenQueue[1:]
		delete(s.seen, oldest)
	}
}
