/*
Package fxrate - ARS/USD exchange rate cache

Looks up the ARS<->USD rate for a given date from an external time-series
provider, caches it, and reports a clean "miss" when the provider has no
quote for that date so callers can treat a cross-currency match as
impossible rather than guessing.
*/
package fxrate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Rate is a single day's published quote. Converter uses Venta per spec.
type Rate struct {
	Fecha  string  `json:"fecha"`
	Compra float64 `json:"compra"`
	Venta  float64 `json:"venta"`
}

// Provider fetches a single day's rate from the external source.
type Provider interface {
	Fetch(ctx context.Context, date time.Time) (Rate, error)
}

// HTTPProvider calls GET {baseURL}/cotizaciones/dolar?fecha=YYYY-MM-DD.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{BaseURL: baseURL, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *HTTPProvider) Fetch(ctx context.Context, date time.Time) (Rate, error) {
	url := fmt.Sprintf("%s/cotizaciones/dolar?fecha=%s", p.BaseURL, date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Rate{}, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return Rate{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Rate{}, fmt.Errorf("fxrate provider returned status %d", resp.StatusCode)
	}
	var rate Rate
	if err := json.NewDecoder(resp.Body).Decode(&rate); err != nil {
		return Rate{}, fmt.Errorf("decoding fxrate response: %w", err)
	}
	return rate, nil
}

type cacheEntry struct {
	rate      Rate
	fetchedAt time.Time
}

// Cache is a concurrent-read, mutex-write rate cache keyed by date. Entries
// younger than MinRetention are never evicted, even on a provider error.
type Cache struct {
	provider     Provider
	mu           sync.RWMutex
	entries      map[string]cacheEntry
	MinRetention time.Duration
}

func NewCache(provider Provider) *Cache {
	return &Cache{
		provider:     provider,
		entries:      make(map[string]cacheEntry),
		MinRetention: 24 * time.Hour,
	}
}

func dateKey(d time.Time) string {
	return d.Format("2006-01-02")
}

// Venta returns the ARS-per-USD sell rate for date, or (0, false) on a
// cache/provider miss. Callers must treat a miss as "no cross-currency
// match is possible" (spec §4.3), never as a zero rate.
func (c *Cache) Venta(ctx context.Context, date time.Time) (float64, bool) {
	key := dateKey(date)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry.rate.Venta, true
	}

	rate, err := c.provider.Fetch(ctx, date)
	if err != nil {
		return 0, false
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{rate: rate, fetchedAt: time.Now()}
	c.mu.Unlock()

	return rate.Venta, true
}

// ConvertUSDToARS converts a USD amount to ARS using date's venta rate.
// Returns (0, false) on a rate miss.
func (c *Cache) ConvertUSDToARS(ctx context.Context, usdCents int64, date time.Time) (arsCents int64, ok bool) {
	venta, ok := c.Venta(ctx, date)
	if !ok || venta <= 0 {
		return 0, false
	}
	return int64(float64(usdCents) * venta), true
}
