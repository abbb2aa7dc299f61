// Package telegram publishes rewritten posts to the broadcast channel
// via the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ChannelRelay/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Poster sends messages to one target chat via bot API.
type Poster struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ ports.Publisher = (*Poster)(nil)

// NewPoster registers bot token and target chat identifier.
func NewPoster(botToken, chatID string, logger *slog.Logger) *Poster {
	return &Poster{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		logger:   logger,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Publish posts the text, attaching the image when a path is given.
// When Telegram rejects the markup it retries once with every special
// character escaped, so a post never dies on formatting alone.
func (p *Poster) Publish(ctx context.Context, text, imagePath string) (int64, error) {
	if p.botToken == "" || p.chatID == "" || p.client == nil {
		return 0, fmt.Errorf("telegram poster misconfigured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	id, err := p.send(ctx, text, imagePath)
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		p.warn("markup rejected, retrying escaped", "error", err)
		// The resend counts against the same 1 msg/s budget.
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limit wait: %w", err)
		}
		return p.send(ctx, EscapeMarkdownV2(text), imagePath)
	}
	return id, err
}

func (p *Poster) send(ctx context.Context, text, imagePath string) (int64, error) {
	if imagePath == "" {
		return p.sendMessage(ctx, text)
	}
	return p.sendPhoto(ctx, text, imagePath)
}

func (p *Poster) sendMessage(ctx context.Context, text string) (int64, error) {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", p.apiBase, p.botToken)
	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "MarkdownV2")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.do(req)
}

func (p *Poster) sendPhoto(ctx context.Context, caption, imagePath string) (int64, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return 0, fmt.Errorf("open photo: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("chat_id", p.chatID)
	_ = writer.WriteField("caption", caption)
	_ = writer.WriteField("parse_mode", "MarkdownV2")
	part, err := writer.CreateFormFile("photo", filepath.Base(imagePath))
	if err != nil {
		return 0, fmt.Errorf("multipart photo: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return 0, fmt.Errorf("read photo: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("finish multipart: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", p.apiBase, p.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return p.do(req)
}

func (p *Poster) do(req *http.Request) (int64, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode telegram response (%s): %w", resp.Status, err)
	}
	if !parsed.OK {
		return 0, fmt.Errorf("telegram error: %s", parsed.Description)
	}

	p.debug("message delivered", "chat_id", p.chatID, "message_id", parsed.Result.MessageID)
	return parsed.Result.MessageID, nil
}

// EscapeMarkdownV2 escapes every character MarkdownV2 treats as markup.
func EscapeMarkdownV2(text string) string {
	const special = "_*[]()~`>#+-=|{}.!"
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p *Poster) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Poster) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
