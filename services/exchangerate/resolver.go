package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"sales_portal_backend/models"
)

// Plausible bounds for a CAD→USD quote. Values outside are treated as a
// provider failure and never cached.
const (
	MinPlausibleRate = 0.50
	MaxPlausibleRate = 1.00
)

// SourceFallback tags quotes produced from the configured constant when
// every provider fails.
const SourceFallback = "fallback"

// Provider fetches a conversion rate from one external source.
type Provider interface {
	Name() string
	FetchRate(ctx context.Context) (float64, error)
}

// Resolver walks an ordered provider chain and returns the first plausible
// quote. It never fails outright: an exhausted chain degrades to the
// constant fallback rate.
type Resolver struct {
	providers []Provider
	fallback  float64
	timeout   time.Duration
}

// NewResolver creates a resolver over the given provider chain.
func NewResolver(providers []Provider, fallback float64, timeout time.Duration) *Resolver {
	return &Resolver{providers: providers, fallback: fallback, timeout: timeout}
}

// NewDefaultResolver builds the production chain: frankfurter.app first,
// open.er-api.com second.
func NewDefaultResolver(fallback float64, timeout time.Duration) *Resolver {
	client := &http.Client{Timeout: timeout}
	return NewResolver([]Provider{
		NewFrankfurterProvider(client),
		NewOpenERAPIProvider(client),
	}, fallback, timeout)
}

// Resolve tries each provider in order and returns the first quote inside
// the plausible range. Provider failures are not retried within one call;
// the next scheduled cycle tries again.
func (r *Resolver) Resolve(ctx context.Context) models.RateQuote {
	for _, p := range r.providers {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		rate, err := p.FetchRate(pctx)
		cancel()

		if err != nil {
			log.Printf("Exchange rate provider %s failed: %v", p.Name(), err)
			continue
		}
		if rate < MinPlausibleRate || rate > MaxPlausibleRate {
			log.Printf("Exchange rate provider %s returned implausible rate %.4f, skipping", p.Name(), rate)
			continue
		}

		log.Printf("Exchange rate fetched: 1 CAD = %.4f USD (from %s)", rate, p.Name())
		return models.RateQuote{Rate: rate, Source: p.Name(), FetchedAt: time.Now()}
	}

	log.Printf("All exchange rate providers failed, using fallback rate %.4f", r.fallback)
	return models.RateQuote{Rate: r.fallback, Source: SourceFallback, FetchedAt: time.Now()}
}

// fetchJSON performs a GET and decodes the JSON body into out.
func fetchJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "SalesPortal/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// FrankfurterProvider fetches CAD→USD from api.frankfurter.app.
type FrankfurterProvider struct {
	client  *http.Client
	baseURL string
}

func NewFrankfurterProvider(client *http.Client) *FrankfurterProvider {
	return &FrankfurterProvider{client: client, baseURL: "https://api.frankfurter.app"}
}

func (p *FrankfurterProvider) Name() string { return "frankfurter.app" }

func (p *FrankfurterProvider) FetchRate(ctx context.Context) (float64, error) {
	var data struct {
		Rates map[string]float64 `json:"rates"`
	}
	url := p.baseURL + "/latest?from=CAD&to=USD"
	if err := fetchJSON(ctx, p.client, url, &data); err != nil {
		return 0, err
	}
	rate, ok := data.Rates["USD"]
	if !ok {
		return 0, fmt.Errorf("no USD rate in response")
	}
	return rate, nil
}

// OpenERAPIProvider fetches CAD→USD from open.er-api.com.
type OpenERAPIProvider struct {
	client  *http.Client
	baseURL string
}

func NewOpenERAPIProvider(client *http.Client) *OpenERAPIProvider {
	return &OpenERAPIProvider{client: client, baseURL: "https://open.er-api.com"}
}

func (p *OpenERAPIProvider) Name() string { return "open.er-api.com" }

func (p *OpenERAPIProvider) FetchRate(ctx context.Context) (float64, error) {
	var data struct {
		Rates map[string]float64 `json:"rates"`
	}
	url := p.baseURL + "/v6/latest/CAD"
	if err := fetchJSON(ctx, p.client, url, &data); err != nil {
		return 0, err
	}
	rate, ok := data.Rates["USD"]
	if !ok {
		return 0, fmt.Errorf("no USD rate in response")
	}
	return rate, nil
}
