package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeText_Bounded(t *testing.T) {
	tests := []struct {
		in       string
		wantID   string
		wantLow  float64
		wantHigh float64
	}{
		{"$1.50 - $1.99", "1.50_1.99", 1.50, 1.99},
		{"1.50-1.99", "1.50_1.99", 1.50, 1.99},
		{"$2.00 to $2.49", "2.00_2.49", 2.00, 2.49},
		{"$1,000.00 - $1,249.99", "1000.00_1249.99", 1000.00, 1249.99},
		{"$3.50 – $3.99", "3.50_3.99", 3.50, 3.99}, // en dash
		{"4 - 4.49", "4.00_4.49", 4, 4.49},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RangeText(tt.in)
			require.NotNil(t, got.IndexLow)
			require.NotNil(t, got.IndexHigh)
			assert.Equal(t, tt.wantLow, *got.IndexLow)
			assert.Equal(t, tt.wantHigh, *got.IndexHigh)
			assert.Equal(t, tt.wantID, got.BracketID)
			assert.Nil(t, got.Warning)
		})
	}
}

func TestRangeText_OpenHigh(t *testing.T) {
	tests := []struct {
		in      string
		wantID  string
		wantLow float64
	}{
		{"4.00+", "4.00_plus", 4.00},
		{"$4.00 +", "4.00_plus", 4.00},
		{"4.00 and above", "4.00_plus", 4.00},
		{">= 4.00", "4.00_plus", 4.00},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RangeText(tt.in)
			require.NotNil(t, got.IndexLow)
			assert.Equal(t, tt.wantLow, *got.IndexLow)
			assert.Nil(t, got.IndexHigh)
			assert.Equal(t, tt.wantID, got.BracketID)
		})
	}
}

func TestRangeText_OpenLow(t *testing.T) {
	tests := []struct {
		in       string
		wantID   string
		wantHigh float64
	}{
		{"< 1.00", "lt_1.00", 1.00},
		{"under 1.00", "lt_1.00", 1.00},
		{"less than $1.00", "lt_1.00", 1.00},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RangeText(tt.in)
			assert.Nil(t, got.IndexLow)
			require.NotNil(t, got.IndexHigh)
			assert.Equal(t, tt.wantHigh, *got.IndexHigh)
			assert.Equal(t, tt.wantID, got.BracketID)
		})
	}
}

func TestRangeText_Fallback(t *testing.T) {
	got := RangeText("All other shipments")
	assert.Nil(t, got.IndexLow)
	assert.Nil(t, got.IndexHigh)
	assert.Equal(t, "all_other_shipments", got.BracketID)
	require.NotNil(t, got.Warning)
	assert.Equal(t, "RANGE_PARSE_FAILED", got.Warning.Code)
}

func TestRangeText_EmptyFallback(t *testing.T) {
	got := RangeText("   ")
	assert.Equal(t, "unknown_range", got.BracketID)
	require.NotNil(t, got.Warning)
}

func TestRangeText_Deterministic(t *testing.T) {
	// Identical text must always yield an identical id; this is the join
	// key across snapshots taken at different times.
	for i := 0; i < 3; i++ {
		assert.Equal(t, "1.50_1.99", RangeText("$1.50 - $1.99").BracketID)
	}
}
