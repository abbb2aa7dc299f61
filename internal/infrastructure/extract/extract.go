// Package extract upgrades short feed summaries to full article text
// before rewriting. Extraction is best effort: any failure leaves the
// original summary in place.
package extract

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"ChannelRelay/internal/domain"
	"ChannelRelay/internal/ports"
)

type Extractor struct {
	client   *http.Client
	minRunes int
	logger   *slog.Logger
}

var _ ports.Enricher = (*Extractor)(nil)

// New builds an extractor that only accepts results of at least
// minRunes, so a cookie wall does not replace a usable summary.
func New(minRunes int, logger *slog.Logger) *Extractor {
	return &Extractor{
		client:   &http.Client{Timeout: 30 * time.Second},
		minRunes: minRunes,
		logger:   logger,
	}
}

// Enrich fetches the linked page and distills its readable text.
// Channel posts are already full text and pass through untouched.
func (e *Extractor) Enrich(ctx context.Context, item domain.CandidateItem) (string, bool) {
	if item.Kind != domain.SourceFeed || item.Locator == "" {
		return "", false
	}

	pageURL, err := url.Parse(item.Locator)
	if err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.Locator, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", "ChannelRelay/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		e.debug("article fetch failed", "url", item.Locator, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.debug("article fetch failed", "url", item.Locator, "status", resp.StatusCode)
		return "", false
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		e.debug("readability gave up", "url", item.Locator, "error", err)
		return "", false
	}

	text := strings.TrimSpace(article.TextContent)
	if utf8.RuneCountInString(text) < e.minRunes {
		return "", false
	}
	if utf8.RuneCountInString(text) <= utf8.RuneCountInString(item.Body) {
		return "", false
	}
	e.debug("summary upgraded to full text", "url", item.Locator, "runes", utf8.RuneCountInString(text))
	return text, true
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
