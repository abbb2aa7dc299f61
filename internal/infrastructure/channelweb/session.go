package channelweb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// Session is the single HTTP identity shared by every channel adapter.
// It comes up lazily on first use; when establishment fails the
// adapters contribute nothing that run, and the next use tries again.
type Session struct {
	baseURL string

	mu     sync.Mutex
	client *http.Client
}

// NewSession points the shared session at the public preview host.
func NewSession(baseURL string) *Session {
	if baseURL == "" {
		baseURL = "https://t.me"
	}
	return &Session{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// BaseURL exposes the preview host, mostly for building locators.
func (s *Session) BaseURL() string { return s.baseURL }

// Acquire returns the shared client, establishing it when needed. The
// probe keeps a dead host from looking like an empty channel.
func (s *Session) Acquire(ctx context.Context) (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: 20 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", s.baseURL, err)
	}
	_ = resp.Body.Close()

	s.client = client
	return client, nil
}

// Reset drops the established client so the next Acquire rebuilds it.
func (s *Session) Reset() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}
