package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"market-miner/internal/storage"
)

// Notification 封装一条跨服务器价差告警。
type Notification struct {
	Comparison storage.ComparisonRow
	MinSpread  int64
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().
		Int("itemid", note.Comparison.ItemID).
		Str("name", note.Comparison.Name).
		Int64("spread", note.Comparison.PriceDifference).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	cmp := note.Comparison
	builder := strings.Builder{}
	builder.WriteString("[Cross-Server Spread Alert]\n")
	builder.WriteString(fmt.Sprintf("Item: %s (ID %d, %s)\n", cmp.Name, cmp.ItemID, cmp.Scope))
	builder.WriteString(fmt.Sprintf("Low: %s %d gil\n", cmp.LowestServer, cmp.LowestPrice))
	builder.WriteString(fmt.Sprintf("High: %s %d gil\n", cmp.HighestServer, cmp.HighestPrice))
	builder.WriteString(fmt.Sprintf("Spread: %d gil (threshold %d)\n", cmp.PriceDifference, note.MinSpread))
	builder.WriteString(fmt.Sprintf("Average: %d gil over %d servers\n", cmp.AveragePrice, cmp.ServerCount))
	if cmp.Category != "" {
		builder.WriteString(fmt.Sprintf("Category: %s\n", cmp.Category))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
