// Package llm rewrites harvested posts through the Gemini REST API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ChannelRelay/internal/config"
	"ChannelRelay/internal/ports"
)

// GeminiClient implements ports.Rewriter against generateContent.
type GeminiClient struct {
	endpoint    string
	model       string
	apiKey      string
	prompt      string
	channelLink string
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ ports.Rewriter = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration. The channel link
// is rendered into the prompt so the model can sign off posts.
func NewGeminiClient(cfg config.GeminiConfig, channelLink string, logger *slog.Logger) *GeminiClient {
	return &GeminiClient{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		prompt:      cfg.RewritePrompt,
		channelLink: channelLink,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Rewrite sends the post text through the configured prompt and
// returns the model's version. An empty generation is an error so the
// caller can fall back to the original text.
func (c *GeminiClient) Rewrite(ctx context.Context, text string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("gemini client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("gemini client misconfigured")
	}

	prompt := strings.ReplaceAll(c.prompt, "{channel_link}", c.channelLink)
	prompt = strings.ReplaceAll(prompt, "{text}", text)

	body, err := json.Marshal(generateRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.9,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 1024,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("rewrite request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini error %s: %s", parsed.Error.Status, parsed.Error.Message)
	}

	var out strings.Builder
	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			out.WriteString(part.Text)
		}
		break
	}
	result := strings.TrimSpace(out.String())
	if result == "" {
		return "", fmt.Errorf("gemini returned an empty generation")
	}

	c.debug("post rewritten", "model", c.model, "in_chars", len(text), "out_chars", len(result))
	return result, nil
}

func (c *GeminiClient) debug(msg string, args ...any) {
	if c != nil && c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
