package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/infrastructure/resilience"
)

// Client calls the Gemini generateContent API with the document bytes
// inlined. Requests are rate limited locally; failures are not retried
// automatically, the breaker only shields a melting endpoint.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Config struct {
	BaseURL           string
	Model             string
	APIKey            string
	RequestsPerMinute int
	HTTPTimeout       time.Duration
	Executor          *resilience.Executor
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		executor:   cfg.Executor,
	}
}

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Analyze(ctx context.Context, documentContent []byte, mimeType string) (*domain.ExtractedData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("vision rate limit: %w", err)
	}

	request := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(documentContent),
			}},
			{Text: userPrompt},
		}}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	}

	var raw map[string]any
	call := func(ctx context.Context) error {
		text, err := c.generate(ctx, request)
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(extractJSONObject(text)), &raw); err != nil {
			return fmt.Errorf("parse extraction json: %w", err)
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "vision.analyze", call, classifyGeminiError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("vision analyze", err)
	}

	return Normalize(raw, time.Now().UTC()), nil
}

func (c *Client) generate(ctx context.Context, request generateRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision api error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &HTTPStatusError{
			Operation:  "generate",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}

	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("vision api error: empty response")
	}
	return strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
