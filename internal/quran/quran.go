// Package quran fetches verse text, translations and the surah index from
// the alquran.cloud REST API.
package quran

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"imanconnect/internal/config"
	"imanconnect/internal/ratelimit"
	"imanconnect/internal/utils"
)

const (
	DefaultBaseURL = "http://api.alquran.cloud/v1"

	arabicEdition      = "ar"
	translationEdition = "en.sahih"

	// SurahCount is the number of surahs in the mushaf.
	SurahCount = 114
)

// ErrNotFound is returned for a verse or surah the API does not know.
var ErrNotFound = errors.New("not found")

// Surah is one entry of the surah index
type Surah struct {
	Number                 int    `json:"number"`
	Name                   string `json:"name"`
	EnglishName            string `json:"englishName"`
	EnglishNameTranslation string `json:"englishNameTranslation"`
	NumberOfAyahs          int    `json:"numberOfAyahs"`
	RevelationType         string `json:"revelationType"`
}

// Provider is the read-only Quran text source the CLI depends on
type Provider interface {
	VerseText(ctx context.Context, surah, ayah int) (string, error)
	Translation(ctx context.Context, surah, ayah int) (string, error)
	ListSurahs(ctx context.Context) ([]Surah, error)
}

// Client implements Provider over HTTP
type Client struct {
	baseURL string
	http    *ratelimit.Client
	log     *utils.Logger

	mu     sync.Mutex
	surahs []Surah
}

// NewClient creates a client for baseURL using the given retrying HTTP client.
func NewClient(baseURL string, hc *ratelimit.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		log:     utils.GetLogger().Component("quran"),
	}
}

// ClientFromConfig builds a client with retries, timeout and a circuit
// breaker from the quran config section.
func ClientFromConfig(cfg config.QuranConfig) (*Client, error) {
	delay, err := time.ParseDuration(cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("quran.retry_delay: %w", err)
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("quran.timeout: %w", err)
	}
	hc := ratelimit.NewClient(ratelimit.Config{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: delay,
		Timeout:    timeout,
		Breaker:    ratelimit.NewCircuitBreaker(ratelimit.DefaultBreakerThreshold, ratelimit.DefaultBreakerCooldown),
		Stats:      ratelimit.NewStats(),
		Host:       "alquran.cloud",
	})
	return NewClient(cfg.BaseURL, hc), nil
}

// VerseText returns the Arabic text of surah:ayah.
func (c *Client) VerseText(ctx context.Context, surah, ayah int) (string, error) {
	return c.ayah(ctx, surah, ayah, arabicEdition)
}

// Translation returns the Sahih International translation of surah:ayah.
func (c *Client) Translation(ctx context.Context, surah, ayah int) (string, error) {
	return c.ayah(ctx, surah, ayah, translationEdition)
}

func (c *Client) ayah(ctx context.Context, surah, ayah int, edition string) (string, error) {
	if surah < 1 || surah > SurahCount || ayah < 1 {
		return "", fmt.Errorf("verse %d:%d: %w", surah, ayah, ErrNotFound)
	}
	var data struct {
		Text string `json:"text"`
	}
	if err := c.get(ctx, fmt.Sprintf("/ayah/%d:%d/%s", surah, ayah, edition), &data); err != nil {
		return "", fmt.Errorf("verse %d:%d: %w", surah, ayah, err)
	}
	return data.Text, nil
}

// ListSurahs returns the surah index. A successful response is cached for the
// life of the client.
func (c *Client) ListSurahs(ctx context.Context) ([]Surah, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.surahs != nil {
		return append([]Surah(nil), c.surahs...), nil
	}
	var data []Surah
	if err := c.get(ctx, "/surah", &data); err != nil {
		return nil, fmt.Errorf("surah index: %w", err)
	}
	c.log.Info("loaded %d surahs", len(data))
	c.surahs = data
	return append([]Surah(nil), data...), nil
}

// Surah returns one entry of the index.
func (c *Client) Surah(ctx context.Context, number int) (*Surah, error) {
	all, err := c.ListSurahs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Number == number {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("surah %d: %w", number, ErrNotFound)
}

type envelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// APIError is a non-OK answer from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quran api: %d %s", e.StatusCode, e.Message)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.http.Do(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || (env.Code != 0 && env.Code != http.StatusOK) {
		code := env.Code
		if code == 0 {
			code = resp.StatusCode
		}
		if code == http.StatusNotFound {
			return ErrNotFound
		}
		msg := env.Status
		if msg == "" {
			msg = strings.TrimSpace(string(env.Data))
		}
		return &APIError{StatusCode: code, Message: msg}
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("response missing data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
