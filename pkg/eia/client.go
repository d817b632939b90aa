// Package eia is a minimal client for the EIA open-data v2 seriesid
// endpoint, covering the weekly fuel price series the surcharge
// pipeline consumes.
package eia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Weekly fuel price series applied against carrier surcharge tables.
const (
	// DefaultDieselSeries is U.S. No 2 Diesel Retail Prices, $/gal, weekly.
	DefaultDieselSeries = "PET.EMD_EPD2D_PTE_NUS_DPG.W"
	// DefaultJetSeries is U.S. Gulf Coast Kerosene-Type Jet Fuel Spot
	// Price FOB, $/gal, weekly.
	DefaultJetSeries = "PET.EER_EPJK_PF4_RGC_DPG.W"
)

const defaultBaseURL = "https://api.eia.gov/v2"

// SeriesRow is one observation of a series.
type SeriesRow struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

type seriesResponse struct {
	Response *struct {
		Data  []SeriesRow `json:"data"`
		Total any         `json:"total"`
	} `json:"response"`
}

// Client calls the EIA API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an EIA client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SeriesParams bounds a series fetch.
type SeriesParams struct {
	SeriesID string
	Start    string
	End      string
	Length   int
}

// FetchSeries returns observations for one series, most recent first as
// the API delivers them.
func (c *Client) FetchSeries(ctx context.Context, params SeriesParams) ([]SeriesRow, error) {
	if params.SeriesID == "" {
		return nil, eris.New("eia: series id is required")
	}
	length := params.Length
	if length == 0 {
		length = 500
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("length", strconv.Itoa(length))
	if params.Start != "" {
		q.Set("start", params.Start)
	}
	if params.End != "" {
		q.Set("end", params.End)
	}

	endpoint := fmt.Sprintf("%s/seriesid/%s?%s", c.baseURL, url.PathEscape(params.SeriesID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "eia: create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "eia: fetch series %s", params.SeriesID)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "eia: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("eia: request failed: %d %s", resp.StatusCode, string(body))
	}

	var parsed seriesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "eia: decode response")
	}
	if parsed.Response == nil || parsed.Response.Data == nil {
		return nil, eris.New("eia: unexpected response shape")
	}
	return parsed.Response.Data, nil
}
