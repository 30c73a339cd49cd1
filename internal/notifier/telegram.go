package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// telegramMaxRunes stays under the Bot API's 4096 character message limit
const telegramMaxRunes = 4000

// TelegramNotifier posts reports to a chat through the Bot API
type TelegramNotifier struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(token, chatID string, logger zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("notifier", "telegram").Logger(),
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Send posts the subject and text body. Recipients are ignored; the chat
// is fixed by configuration.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message, _ []string) error {
	if t.token == "" || t.chatID == "" {
		return &NotifyError{Channel: t.Name(), Err: ErrNotConfigured}
	}

	text := msg.Text
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + text
	}

	for i, chunk := range splitMessage(text, telegramMaxRunes) {
		if err := t.sendMessage(ctx, chunk); err != nil {
			return &NotifyError{Channel: t.Name(), Err: fmt.Errorf("part %d: %w", i+1, err)}
		}
	}
	t.logger.Info().Str("chat_id", t.chatID).Msg("telegram message sent")
	return nil
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("send failed status=%d body=%s", resp.StatusCode, string(raw))
	}
	return nil
}

// splitMessage breaks text on line boundaries into chunks of at most max runes
func splitMessage(text string, max int) []string {
	if len([]rune(text)) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > max {
			flush()
			chunks = append(chunks, string(runes[:max]))
			runes = runes[max:]
		}
		if curLen+len(runes) > max {
			flush()
		}
		cur.WriteString(string(runes))
		curLen += len(runes)
	}
	flush()
	return chunks
}
