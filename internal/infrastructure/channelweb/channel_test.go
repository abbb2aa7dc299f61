package channelweb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func previewPage(messages ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><section class="tgme_channel_history">`)
	for _, m := range messages {
		b.WriteString(m)
	}
	b.WriteString(`</section></body></html>`)
	return b.String()
}

func message(post, text, datetime, extra string) string {
	return fmt.Sprintf(
		`<div class="tgme_widget_message" data-post="%s">%s<div class="tgme_widget_message_text">%s</div><a class="tgme_widget_message_date"><time datetime="%s"></time></a></div>`,
		post, extra, text, datetime,
	)
}

func previewServer(t *testing.T, page string, heads *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			if heads != nil {
				heads.Add(1)
			}
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/s/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMapsMessages(t *testing.T) {
	t.Parallel()

	page := previewPage(
		message("technews/41", "First line of the post\nSecond line with details", "2026-08-22T10:00:00+00:00",
			`<a class="tgme_widget_message_photo_wrap" href="x"></a>`),
	)
	srv := previewServer(t, page, nil)

	a := NewAdapter("@technews", NewSession(srv.URL), nil)
	items, err := a.Fetch(context.Background(), 5)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	item := items[0]
	if item.Title != "First line of the post" {
		t.Errorf("Title = %q", item.Title)
	}
	if !strings.Contains(item.Body, "Second line") {
		t.Errorf("Body lost content: %q", item.Body)
	}
	if item.Locator != srv.URL+"/technews/41" {
		t.Errorf("Locator = %q", item.Locator)
	}
	if item.Kind != "channel" || item.SourceName != "t.me/technews" {
		t.Errorf("Kind/SourceName = %q/%q", item.Kind, item.SourceName)
	}
	if got := item.PublishedAt.Format("2006-01-02 15:04"); got != "2026-08-22 10:00" {
		t.Errorf("PublishedAt = %s", got)
	}
	if item.MediaHint != "photo" {
		t.Errorf("MediaHint = %q, want photo", item.MediaHint)
	}
}

func TestFetchTakesNewestFromPageTail(t *testing.T) {
	t.Parallel()

	// Preview pages list oldest first.
	page := previewPage(
		message("c/1", "oldest", "2026-08-20T08:00:00+00:00", ""),
		message("c/2", "older", "2026-08-21T08:00:00+00:00", ""),
		message("c/3", "newer", "2026-08-22T08:00:00+00:00", ""),
		message("c/4", "newest", "2026-08-23T08:00:00+00:00", ""),
	)
	srv := previewServer(t, page, nil)

	a := NewAdapter("c", NewSession(srv.URL), nil)
	items, err := a.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Body != "newest" || items[1].Body != "newer" {
		t.Errorf("order = %q, %q; want newest, newer", items[0].Body, items[1].Body)
	}
}

func TestFetchSkipsTextlessPosts(t *testing.T) {
	t.Parallel()

	page := previewPage(
		`<div class="tgme_widget_message" data-post="c/7"><a class="tgme_widget_message_photo_wrap"></a></div>`,
		message("c/8", "has text", "2026-08-22T08:00:00+00:00", ""),
	)
	srv := previewServer(t, page, nil)

	a := NewAdapter("c", NewSession(srv.URL), nil)
	items, err := a.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 || items[0].Body != "has text" {
		t.Fatalf("items = %+v, want only the text post", items)
	}
}

func TestFetchSharesOneSession(t *testing.T) {
	t.Parallel()

	var heads atomic.Int64
	page := previewPage(message("c/1", "post", "2026-08-22T08:00:00+00:00", ""))
	srv := previewServer(t, page, &heads)

	session := NewSession(srv.URL)
	first := NewAdapter("one", session, nil)
	second := NewAdapter("two", session, nil)

	if _, err := first.Fetch(context.Background(), 1); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if _, err := second.Fetch(context.Background(), 1); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if got := heads.Load(); got != 1 {
		t.Errorf("session probed %d times, want 1", got)
	}
}

func TestFetchFailsWhenHostIsDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	a := NewAdapter("c", NewSession(srv.URL), nil)
	if _, err := a.Fetch(context.Background(), 5); err == nil {
		t.Fatal("Fetch succeeded against a closed server")
	}
}

func TestMessageTitleTruncatesLongFirstLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ы", 140)
	got := messageTitle(long + "\nrest")
	want := strings.Repeat("ы", 100) + "..."
	if got != want {
		t.Errorf("messageTitle truncated to %d runes", len([]rune(got)))
	}

	if got := messageTitle("short line\nbody"); got != "short line" {
		t.Errorf("messageTitle(short) = %q", got)
	}
}
