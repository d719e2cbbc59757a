package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"signal_bot/internal/modules/config"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Client — HTTP/WS клиент MT5-бриджа.
type Client struct {
	cfg *config.Config

	http     *http.Client
	wsDialer *websocket.Dialer
	baseURL  string
	apiKey   string

	mu      sync.RWMutex
	ticks   map[string]Tick // последний тик по символу из ws-потока
	tickAt  map[string]time.Time
	symbols map[string]SymbolInfo // метаданные символов, меняются редко
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Bridge.Timeout},
		wsDialer: &websocket.Dialer{},
		baseURL:  cfg.Bridge.BaseURL,
		apiKey:   cfg.Bridge.APIKey,
		ticks:    make(map[string]Tick),
		tickAt:   make(map[string]time.Time),
		symbols:  make(map[string]SymbolInfo),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("bridge marshal: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("bridge new request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge do %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("bridge http %d %s: %s", resp.StatusCode, path, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("bridge decode %s: %w; body=%s", path, err, string(data))
		}
	}
	return nil
}

// Tick — свежий тик: из ws-кэша, при устаревании добираем по REST.
func (c *Client) Tick(ctx context.Context, symbol string) (Tick, error) {
	c.mu.RLock()
	t, ok := c.ticks[symbol]
	at := c.tickAt[symbol]
	c.mu.RUnlock()

	if ok && time.Since(at) < 5*time.Second {
		return t, nil
	}

	var out Tick
	if err := c.do(ctx, http.MethodGet, "/market/tick?symbol="+symbol, nil, &out); err != nil {
		return Tick{}, fmt.Errorf("Tick %s: %w", symbol, err)
	}
	if out.Bid <= 0 || out.Ask <= 0 {
		return Tick{}, fmt.Errorf("Tick %s: пустая котировка bid=%g ask=%g", symbol, out.Bid, out.Ask)
	}

	c.storeTick(out)
	return out, nil
}

func (c *Client) storeTick(t Tick) {
	c.mu.Lock()
	c.ticks[t.Symbol] = t
	c.tickAt[t.Symbol] = time.Now()
	c.mu.Unlock()
}

func (c *Client) Symbol(ctx context.Context, symbol string) (SymbolInfo, error) {
	c.mu.RLock()
	si, ok := c.symbols[symbol]
	c.mu.RUnlock()
	if ok {
		return si, nil
	}

	var out SymbolInfo
	if err := c.do(ctx, http.MethodGet, "/market/symbol?symbol="+symbol, nil, &out); err != nil {
		return SymbolInfo{}, fmt.Errorf("Symbol %s: %w", symbol, err)
	}
	if out.Point <= 0 || out.VolumeStep <= 0 {
		return SymbolInfo{}, fmt.Errorf("Symbol %s: некорректные метаданные point=%g step=%g",
			symbol, out.Point, out.VolumeStep)
	}

	c.mu.Lock()
	c.symbols[symbol] = out
	c.mu.Unlock()
	return out, nil
}

func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var out struct {
		Positions []Position `json:"positions"`
	}
	if err := c.do(ctx, http.MethodGet, "/trade/positions", nil, &out); err != nil {
		return nil, fmt.Errorf("Positions: %w", err)
	}
	return out.Positions, nil
}

func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/trade/orders", nil, &out); err != nil {
		return nil, fmt.Errorf("Orders: %w", err)
	}
	return out.Orders, nil
}

// HistoryDeals — сделки по закрытой позиции (для профита и причины закрытия).
func (c *Client) HistoryDeals(ctx context.Context, positionID int64) ([]Deal, error) {
	var out struct {
		Deals []Deal `json:"deals"`
	}
	path := fmt.Sprintf("/history/deals?position=%d", positionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("HistoryDeals %d: %w", positionID, err)
	}
	return out.Deals, nil
}
