package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.VoiceLister = (*Client)(nil)
	_ domain.Synthesizer = (*Client)(nil)
)

// ClientOption configures the Google TTS client.
type ClientOption func(*Client)

// WithBaseURL points the client at another REST root (tests, proxies).
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPTimeout sets the HTTP client timeout for REST requests.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client talks to the Google Cloud Text-to-Speech REST API. Each of its
// two operations allows a single outstanding call; a concurrent second
// call is rejected with domain.ErrBusy.
type Client struct {
	apiKey     string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *logger.Logger

	listing      atomic.Bool
	synthesizing atomic.Bool
}

// NewClient creates a TTS client authenticated with an API key.
func NewClient(apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		userAgent: defaultUA,
		httpClient: &http.Client{
			Timeout: DefaultHTTPTimeout,
		},
		log: log.With("google"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type voicesResponse struct {
	Voices *[]struct {
		Name          string   `json:"name"`
		LanguageCodes []string `json:"languageCodes"`
	} `json:"voices"`
}

// FetchVoices lists voices for a locale and keeps only those whose name is
// prefixed by it, in the order the service returned them.
func (c *Client) FetchVoices(ctx context.Context, localeID string) ([]domain.VoiceCatalogEntry, error) {
	if !c.listing.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("voice list: %w", domain.ErrBusy)
	}
	defer c.listing.Store(false)

	q := url.Values{}
	q.Set("languageCode", localeID)
	q.Set("key", c.apiKey)
	endpoint := c.baseURL + "/v1/voices?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug("listing voices for %s", localeID)
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("voice list: %w", err)
	}

	var parsed voicesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("voice list: %w: %v", domain.ErrParse, err)
	}
	if parsed.Voices == nil {
		return nil, fmt.Errorf("voice list: %w: missing voices field", domain.ErrParse)
	}

	out := make([]domain.VoiceCatalogEntry, 0, len(*parsed.Voices))
	for _, v := range *parsed.Voices {
		entry := domain.VoiceCatalogEntry{ID: v.Name, LocaleID: localeID}
		if entry.HasLocale(localeID) {
			out = append(out, entry)
		}
	}
	c.log.Debug("got %d voices, %d match %s", len(*parsed.Voices), len(out), localeID)
	return out, nil
}

type synthesizeResponse struct {
	AudioContent *string `json:"audioContent"`
}

// Synthesize submits a built request and returns the decoded audio bytes.
func (c *Client) Synthesize(ctx context.Context, sr domain.SynthesisRequest) ([]byte, error) {
	if !c.synthesizing.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("synthesize: %w", domain.ErrBusy)
	}
	defer c.synthesizing.Store(false)

	payload, err := encodeRequest(sr)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	endpoint := c.baseURL + "/v1/text:synthesize?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug("synthesizing %d chars (%s) with voice %s", len(sr.Payload), sr.InputMode, sr.Voice.VoiceID)
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	var parsed synthesizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("synthesize: %w: %v", domain.ErrParse, err)
	}
	if parsed.AudioContent == nil {
		return nil, fmt.Errorf("synthesize: %w: missing audioContent", domain.ErrParse)
	}

	audio, err := base64.StdEncoding.DecodeString(*parsed.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w: %v", domain.ErrDecode, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesize: %w: empty audio", domain.ErrDecode)
	}

	c.log.Debug("got %d bytes of audio", len(audio))
	return audio, nil
}

// do performs the request and maps failures onto the error taxonomy:
// no response -> ErrNetwork, non-2xx -> *APIError.
func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		c.log.Warn("http %d from %s", resp.StatusCode, req.URL.Path)
		return nil, &domain.APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
		}
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrNetwork, err)
	}
	return body, nil
}

// redact strips the API key from transport errors, which embed the URL.
func redact(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "REDACTED")
}
