package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"ChannelRelay/internal/domain"
	"ChannelRelay/internal/source"
)

// Adapter reads one RSS or Atom feed.
type Adapter struct {
	url    string
	parser *gofeed.Parser
}

var _ source.Adapter = (*Adapter)(nil)

// New builds an adapter for a single feed URL.
func New(url string) *Adapter {
	parser := gofeed.NewParser()
	parser.UserAgent = "ChannelRelay/1.0"
	return &Adapter{url: url, parser: parser}
}

// Name identifies the adapter in logs.
func (a *Adapter) Name() string { return a.url }

func (a *Adapter) Kind() domain.SourceKind { return domain.SourceFeed }

// Fetch parses the feed and maps up to limit entries in feed order,
// which for virtually every feed means newest first.
func (a *Adapter) Fetch(ctx context.Context, limit int) ([]domain.CandidateItem, error) {
	parsed, err := a.parser.ParseURLWithContext(a.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", a.url, err)
	}

	sourceName := parsed.Title
	if sourceName == "" {
		sourceName = a.url
	}

	items := make([]domain.CandidateItem, 0, limit)
	for _, entry := range parsed.Items {
		if len(items) >= limit {
			break
		}

		body := entry.Description
		if body == "" {
			body = entry.Content
		}
		if body == "" {
			continue
		}

		items = append(items, domain.CandidateItem{
			Title:       entry.Title,
			Body:        body,
			Locator:     entry.Link,
			Kind:        domain.SourceFeed,
			SourceName:  sourceName,
			PublishedAt: entryTime(entry),
			MediaHint:   entryMedia(entry),
		})
	}

	return items, nil
}

func entryTime(entry *gofeed.Item) time.Time {
	switch {
	case entry.PublishedParsed != nil:
		return *entry.PublishedParsed
	case entry.UpdatedParsed != nil:
		return *entry.UpdatedParsed
	default:
		return time.Now()
	}
}

func entryMedia(entry *gofeed.Item) domain.MediaHint {
	if entry.Image != nil && entry.Image.URL != "" {
		return domain.MediaPhoto
	}
	return domain.MediaNone
}
