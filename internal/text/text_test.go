package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureHTML = `<!doctype html>
<html>
<head>
  <title>Fuel Surcharges</title>
  <style>body { color: black }</style>
  <script>trackPageView();</script>
</head>
<body>
  <h1>UPS Ground Fuel Surcharge</h1>
  <p>Effective   January 8,
     2026</p>
  <div hidden>internal note</div>
  <div aria-hidden="true">screen reader junk</div>
  <span style="display: none">hidden price</span>
  <table>
    <tr><td>$1.50 - $1.99</td><td>12.50%</td></tr>
  </table>
  <noscript>enable javascript</noscript>
</body>
</html>`

func TestFromHTML(t *testing.T) {
	got, err := FromHTML([]byte(fixtureHTML))
	require.NoError(t, err)

	assert.Contains(t, got, "UPS Ground Fuel Surcharge")
	assert.Contains(t, got, "Effective January 8, 2026")
	assert.Contains(t, got, "$1.50 - $1.99")
	assert.Contains(t, got, "12.50%")

	assert.NotContains(t, got, "trackPageView")
	assert.NotContains(t, got, "color: black")
	assert.NotContains(t, got, "internal note")
	assert.NotContains(t, got, "screen reader junk")
	assert.NotContains(t, got, "hidden price")
	assert.NotContains(t, got, "enable javascript")
	assert.NotContains(t, got, "Fuel Surcharges") // title lives in head
}

func TestFromHTML_Empty(t *testing.T) {
	got, err := FromHTML([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a  b  ", "a b"},
		{"a\n\tb\r\nc", "a b c"},
		{"", ""},
		{"   ", ""},
		{"one", "one"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeWhitespace(tc.in))
	}
}

func TestFromPDF_Invalid(t *testing.T) {
	_, err := FromPDF([]byte("not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf")
}
