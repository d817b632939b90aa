package eia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSeries(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"response": {
				"total": "2",
				"data": [
					{"period": "2026-08-24", "value": 3.712},
					{"period": "2026-08-17", "value": 3.689}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	rows, err := c.FetchSeries(context.Background(), SeriesParams{
		SeriesID: DefaultDieselSeries,
		Start:    "2026-08-01",
		Length:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, "/seriesid/"+DefaultDieselSeries, gotPath)
	assert.Contains(t, gotQuery, "api_key=test-key")
	assert.Contains(t, gotQuery, "length=10")
	assert.Contains(t, gotQuery, "start=2026-08-01")

	require.Len(t, rows, 2)
	assert.Equal(t, "2026-08-24", rows[0].Period)
	assert.InDelta(t, 3.712, rows[0].Value, 1e-9)
}

func TestFetchSeries_DefaultLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "500", r.URL.Query().Get("length"))
		_, _ = w.Write([]byte(`{"response": {"data": []}}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	rows, err := c.FetchSeries(context.Background(), SeriesParams{SeriesID: DefaultJetSeries})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchSeries_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.FetchSeries(context.Background(), SeriesParams{SeriesID: DefaultDieselSeries})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFetchSeries_BadShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"request": {}}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.FetchSeries(context.Background(), SeriesParams{SeriesID: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response shape")
}

func TestFetchSeries_MissingSeriesID(t *testing.T) {
	c := NewClient("k")
	_, err := c.FetchSeries(context.Background(), SeriesParams{})
	require.Error(t, err)
}
