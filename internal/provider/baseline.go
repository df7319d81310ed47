package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// MTBaseline produces drift baselines from a free machine-translation
// HTTP API (MyMemory-compatible).
type MTBaseline struct {
	baseURL string
	email   string
	client  *http.Client
}

// NewMTBaseline creates a baseline translator. baseURL defaults to the
// public MyMemory endpoint; email, when set, raises the daily quota.
func NewMTBaseline(baseURL, email string) *MTBaseline {
	if baseURL == "" {
		baseURL = "https://api.mymemory.translated.net"
	}
	return &MTBaseline{
		baseURL: baseURL,
		email:   email,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Translate returns the machine translation of text. The result is used
// only as a drift-scoring reference, never shown to readers.
func (b *MTBaseline) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "en"
	}

	apiURL := fmt.Sprintf("%s/get?q=%s&langpair=%s",
		b.baseURL,
		url.QueryEscape(text),
		url.QueryEscape(fmt.Sprintf("%s|%s", sourceLang, targetLang)))
	if b.email != "" {
		apiURL += fmt.Sprintf("&de=%s", url.QueryEscape(b.email))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create baseline request: %w", err)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("baseline request failed: %w", err)
	}
	defer resp.Body.Close()

	var mtResp struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
		ResponseStatus  int    `json:"responseStatus"`
		ResponseDetails string `json:"responseDetails"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mtResp); err != nil {
		return "", fmt.Errorf("failed to decode baseline response: %w", err)
	}
	if mtResp.ResponseStatus != 200 {
		return "", fmt.Errorf("baseline API error: %s (%d)", mtResp.ResponseDetails, mtResp.ResponseStatus)
	}
	return mtResp.ResponseData.TranslatedText, nil
}
