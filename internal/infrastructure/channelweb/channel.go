// Package channelweb harvests public Telegram channels through their
// t.me/s preview pages, which need no bot membership and no API key.
package channelweb

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ChannelRelay/internal/domain"
	"ChannelRelay/internal/source"
)

const titleRunes = 100

// Adapter scrapes one public channel's preview page.
type Adapter struct {
	channel string
	session *Session
	logger  *slog.Logger
}

var _ source.Adapter = (*Adapter)(nil)

// NewAdapter builds an adapter for a channel username (no leading @).
func NewAdapter(channel string, session *Session, logger *slog.Logger) *Adapter {
	return &Adapter{
		channel: strings.TrimPrefix(channel, "@"),
		session: session,
		logger:  logger,
	}
}

func (a *Adapter) Name() string { return "t.me/" + a.channel }

func (a *Adapter) Kind() domain.SourceKind { return domain.SourceChannel }

// Fetch loads the preview page and maps its message blocks. Preview
// pages list oldest first, so the tail holds the newest messages.
func (a *Adapter) Fetch(ctx context.Context, limit int) ([]domain.CandidateItem, error) {
	client, err := a.session.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", a.channel, err)
	}

	pageURL := fmt.Sprintf("%s/s/%s", a.session.BaseURL(), a.channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", a.channel, err)
	}
	req.Header.Set("User-Agent", "ChannelRelay/1.0")

	resp, err := client.Do(req)
	if err != nil {
		a.session.Reset()
		return nil, fmt.Errorf("channel %s: %w", a.channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel %s: preview returned status %d", a.channel, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("channel %s: parse preview: %w", a.channel, err)
	}

	var items []domain.CandidateItem
	doc.Find(".tgme_widget_message").Each(func(_ int, msg *goquery.Selection) {
		item, ok := a.mapMessage(msg)
		if !ok {
			return
		}
		items = append(items, item)
	})

	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	reverse(items)
	a.debug("channel page scraped", "channel", a.channel, "items", len(items))
	return items, nil
}

func (a *Adapter) mapMessage(msg *goquery.Selection) (domain.CandidateItem, bool) {
	body := strings.TrimSpace(msg.Find(".tgme_widget_message_text").First().Text())
	if body == "" {
		// Pure media posts carry nothing to rewrite.
		return domain.CandidateItem{}, false
	}

	locator := ""
	if post, ok := msg.Attr("data-post"); ok && post != "" {
		locator = a.session.BaseURL() + "/" + post
	}

	publishedAt := time.Now().UTC()
	if stamp, ok := msg.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			publishedAt = t.UTC()
		}
	}

	media := domain.MediaNone
	switch {
	case msg.Find(".tgme_widget_message_photo_wrap").Length() > 0:
		media = domain.MediaPhoto
	case msg.Find(".tgme_widget_message_video_player, .tgme_widget_message_video_wrap").Length() > 0:
		media = domain.MediaVideo
	}

	return domain.CandidateItem{
		Title:       messageTitle(body),
		Body:        body,
		Locator:     locator,
		Kind:        domain.SourceChannel,
		SourceName:  a.Name(),
		PublishedAt: publishedAt,
		MediaHint:   media,
	}, true
}

// messageTitle derives a short title from the first line of the body.
func messageTitle(body string) string {
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	runes := []rune(line)
	if len(runes) <= titleRunes {
		return line
	}
	return string(runes[:titleRunes]) + "..."
}

func reverse(items []domain.CandidateItem) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
