package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// Client — клиент OpenAI-совместимой модели для классификации сообщений канала.
type Client struct {
	cfg  *config.Config
	http *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.LLM.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Analyze классифицирует сообщение: новый сигнал, обновление или мусор.
// history — последние сообщения канала, price — текущая цена инструмента
// по умолчанию; обе подсказки уходят модели.
func (c *Client) Analyze(ctx context.Context, text string, edited bool, replyToID int, history []string, price float64) (Verdict, error) {
	body := map[string]any{
		"model":       c.cfg.LLM.Model,
		"temperature": c.cfg.LLM.Temperature,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(text, edited, replyToID, history, price)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return Verdict{}, fmt.Errorf("Analyze marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		strings.TrimRight(c.cfg.LLM.Endpoint, "/")+"/chat/completions",
		bytes.NewReader(payload),
	)
	if err != nil {
		return Verdict{}, fmt.Errorf("Analyze new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.LLM.APIKey)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("Analyze do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		return Verdict{}, fmt.Errorf("Analyze http %d: %s", resp.StatusCode, string(data))
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return Verdict{}, fmt.Errorf("Analyze decode: %w; body=%s", err, string(data))
	}
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == "" {
		return Verdict{}, fmt.Errorf("Analyze: пустой ответ модели; body=%s", string(data))
	}

	logger.Info("llm: ответ за %s", time.Since(started).Round(time.Millisecond))

	v, err := ParseVerdict([]byte(r.Choices[0].Message.Content))
	if err != nil {
		// мусор на выходе модели трактуем как ignore, а не как падение
		logger.Warn("llm: вердикт не разобрался, сообщение игнорируем: %v", err)
		return Verdict{Type: models.MessageIgnore}, nil
	}
	return v, nil
}
