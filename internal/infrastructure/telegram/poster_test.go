package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testPoster(t *testing.T, handler http.HandlerFunc) *Poster {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewPoster("test-token", "-100777", nil)
	p.apiBase = srv.URL
	// The production pace of 1 msg/s would stall every retry test.
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	return p
}

func TestPublishSendsFormEncodedMessage(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText, gotMode string
	p := testPoster(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		gotMode = r.PostFormValue("parse_mode")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":4242}}`))
	})

	id, err := p.Publish(context.Background(), "fresh post", "")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != 4242 {
		t.Errorf("message id = %d, want 4242", id)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChat != "-100777" || gotText != "fresh post" || gotMode != "MarkdownV2" {
		t.Errorf("form = chat %q text %q mode %q", gotChat, gotText, gotMode)
	}
}

func TestPublishUploadsPhotoAsMultipart(t *testing.T) {
	t.Parallel()

	photo := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(photo, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	var gotPath, gotCaption, gotFile string
	p := testPoster(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotCaption = r.FormValue("caption")
		file, _, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("photo part: %v", err)
		} else {
			buf := make([]byte, 32)
			n, _ := file.Read(buf)
			gotFile = string(buf[:n])
			_ = file.Close()
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	})

	id, err := p.Publish(context.Background(), "captioned", photo)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != 7 {
		t.Errorf("message id = %d, want 7", id)
	}
	if gotPath != "/bottest-token/sendPhoto" {
		t.Errorf("path = %q", gotPath)
	}
	if gotCaption != "captioned" || gotFile != "jpeg-bytes" {
		t.Errorf("caption %q file %q", gotCaption, gotFile)
	}
}

func TestPublishRetriesEscapedWhenMarkupRejected(t *testing.T) {
	t.Parallel()

	var texts []string
	p := testPoster(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		texts = append(texts, r.PostFormValue("text"))
		if len(texts) == 1 {
			_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: can't parse entities: Character '.' is reserved"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":11}}`))
	})

	id, err := p.Publish(context.Background(), "v2.0 is out!", "")
	if err != nil {
		t.Fatalf("Publish after retry: %v", err)
	}
	if id != 11 {
		t.Errorf("message id = %d, want 11", id)
	}
	if len(texts) != 2 {
		t.Fatalf("send attempts = %d, want 2", len(texts))
	}
	if texts[1] != `v2\.0 is out\!` {
		t.Errorf("retry text = %q", texts[1])
	}
}

func TestPublishRetryHonorsRateLimit(t *testing.T) {
	t.Parallel()

	var stamps []time.Time
	p := testPoster(t, func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		_ = r.ParseForm()
		if len(stamps) == 1 {
			_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: can't parse entities: Character '.' is reserved"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":3}}`))
	})
	p.limiter = rate.NewLimiter(rate.Every(80*time.Millisecond), 1)

	if _, err := p.Publish(context.Background(), "v2.0", ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(stamps) != 2 {
		t.Fatalf("send attempts = %d, want 2", len(stamps))
	}
	if gap := stamps[1].Sub(stamps[0]); gap < 60*time.Millisecond {
		t.Errorf("escaped resend left after %v, before the limiter opened", gap)
	}
}

func TestPublishDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	p := testPoster(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	})

	_, err := p.Publish(context.Background(), "text", "")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("send attempts = %d, want 1", calls)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"plain text", "plain text"},
		{"snake_case*bold*", `snake\_case\*bold\*`},
		{"v2.0 (beta)!", `v2\.0 \(beta\)\!`},
		{"a-b=c|d", `a\-b\=c\|d`},
		{"кириллица.", `кириллица\.`},
	}
	for _, tc := range cases {
		if got := EscapeMarkdownV2(tc.in); got != tc.want {
			t.Errorf("EscapeMarkdownV2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
