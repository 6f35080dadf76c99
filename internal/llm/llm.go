/*
Package llm - vision LLM gateway

Transports a (prompt, document bytes) pair to a vision-capable LLM endpoint,
classifies failures into quota/retryable/permanent categories from status
code and body text, and retries transient failures with jittered backoff.
Grounded on this codebase's Document AI processor (status/body string
matching to pick an error category) and request/response shape adapted to
the generationConfig JSON contract this system's callers expect.
*/
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"adva-reconciliation-engine/internal/apperrors"
	"adva-reconciliation-engine/internal/ratelimit"

	"github.com/sirupsen/logrus"
)

const (
	backoffBase    = 500 * time.Millisecond
	backoffCap     = 30 * time.Second
	jitterFraction = 0.2
)

// Gateway sends vision-extraction requests to a single LLM endpoint.
type Gateway struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
	Limiter  *ratelimit.Limiter
	Log      *logrus.Logger

	// sleep is overridable in tests to avoid real waits.
	sleep func(d time.Duration)
}

func NewGateway(endpoint, apiKey string, limiter *ratelimit.Limiter, log *logrus.Logger) *Gateway {
	return &Gateway{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 60 * time.Second},
		Limiter:  limiter,
		Log:      log,
		sleep:    time.Sleep,
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type requestBody struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidatePart struct {
	Text string `json:"text"`
}

type candidateContent struct {
	Parts []candidatePart `json:"parts"`
}

type candidate struct {
	Content candidateContent `json:"content"`
}

type responseBody struct {
	Candidates []candidate `json:"candidates"`
}

// AnalyzeDocument sends bytes (with mimeType) alongside prompt to the vision
// LLM and returns the first candidate's text. At least one attempt is made
// even when maxRetries is 0.
func (g *Gateway) AnalyzeDocument(ctx context.Context, docBytes []byte, mimeType, prompt string, maxRetries int) (string, error) {
	body := requestBody{
		Contents: []content{{
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(docBytes)}},
			},
		}},
		GenerationConfig: generationConfig{Temperature: 0.1, TopP: 0.8, MaxOutputTokens: 2048},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrPermanentExtract)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		if err := g.awaitRateLimit(ctx, "llm"); err != nil {
			return "", err
		}

		text, err := g.send(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err

		appErr, ok := apperrors.AsAppError(err)
		if !ok || !appErr.Retryable || attempt > maxRetries {
			return "", err
		}

		if g.Log != nil {
			g.Log.WithField("attempt", attempt).WithError(err).Warn("llm gateway retrying")
		}
		g.waitBackoff(attempt)
	}
	return "", lastErr
}

func (g *Gateway) awaitRateLimit(ctx context.Context, key string) error {
	for {
		allowed, _, resetMs := g.Limiter.Check(key)
		if allowed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(resetMs) * time.Millisecond):
		}
	}
}

func (g *Gateway) waitBackoff(attempt int) {
	d := backoffBase * time.Duration(1<<uint(attempt-1))
	if d > backoffCap {
		d = backoffCap
	}
	jitter := time.Duration(float64(d) * jitterFraction * (2*rand.Float64() - 1))
	d += jitter
	if d < 0 {
		d = 0
	}
	g.sleep(d)
}

func (g *Gateway) send(ctx context.Context, payload []byte) (string, error) {
	url := g.Endpoint
	if g.APIKey != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url = fmt.Sprintf("%s%skey=%s", url, sep, g.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrTransient)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrTransient)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp.StatusCode, raw)
	}

	var parsed responseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrPermanentExtract)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.ErrPermanentExtract.WithMessage("llm response had no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// classifyHTTPError maps a status code and response body to the error
// taxonomy from the gateway contract.
func classifyHTTPError(status int, body []byte) error {
	bodyText := strings.ToLower(string(body))

	if status == http.StatusTooManyRequests && strings.Contains(bodyText, "quota") {
		return apperrors.ErrQuotaExceeded.WithMessage(fmt.Sprintf("status %d: quota exceeded", status))
	}

	switch status {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return apperrors.ErrTransient.WithMessage(fmt.Sprintf("status %d: %s", status, string(body)))
	}

	if status >= 400 && status < 500 {
		return apperrors.ErrPermanentExtract.WithMessage(fmt.Sprintf("status %d: %s", status, string(body)))
	}

	return apperrors.ErrTransient.WithMessage(fmt.Sprintf("status %d: %s", status, string(body)))
}
