package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storywire/internal/utils/text"
)

func TestSignificantTokens(t *testing.T) {
	got := text.SignificantTokens("The Earthquake hits the northern coast of Japan, earthquake!")
	assert.Equal(t, []string{"earthquake", "hits", "northern", "coast", "japan"}, got)
}

func TestCapitalizedTokens(t *testing.T) {
	got := text.CapitalizedTokens("The Fed and ECB meet in Frankfurt; fed officials say ECB")
	assert.Equal(t, []string{"Fed", "ECB", "Frankfurt"}, got)
}

func TestExtractEntities_Limit(t *testing.T) {
	got := text.ExtractEntities(3, "Tokyo Osaka", "Kyoto tokyo Nagoya Sapporo")
	assert.Equal(t, []string{"Tokyo", "Osaka", "Kyoto"}, got)
}

func TestDiceAndOverlap(t *testing.T) {
	a := []string{"earthquake", "strikes", "northern", "japan"}
	b := []string{"earthquake", "hits", "northern", "japan", "region"}

	assert.InDelta(t, 6.0/9.0, text.Dice(a, b), 1e-9)
	assert.InDelta(t, 0.75, text.Overlap(a, b), 1e-9)
	assert.Zero(t, text.Dice(nil, b))
	assert.Zero(t, text.Overlap(a, nil))
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{
			name: "close rewording",
			a:    "Earthquake Strikes Northern Japan",
			b:    "Earthquake Hits Northern Japan Region",
			want: (6.0/9.0 + 0.75) / 2,
		},
		{
			name: "short follow-up",
			a:    "Japan Earthquake Update",
			b:    "Earthquake Strikes Northern Japan",
			want: (4.0/7.0 + 2.0/3.0) / 2,
		},
		{
			name: "unrelated",
			a:    "Markets Rally On Rate Cut Hopes",
			b:    "Earthquake Strikes Northern Japan",
			want: 0,
		},
		{
			name: "identical",
			a:    "Central Bank Raises Rates",
			b:    "central bank raises rates",
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, text.TitleSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSharedCapitalized(t *testing.T) {
	n := text.SharedCapitalized("Tesla Recalls Cybertruck In Texas", "Cybertruck recall hits Tesla", "Texas regulators respond")
	assert.Equal(t, 3, n)
}

func TestFingerprint(t *testing.T) {
	a := text.Fingerprint("Quake Strikes Japan", []string{"Japan", "Tokyo"})
	b := text.Fingerprint("Japan: the quake strikes", []string{"tokyo", "japan", "Japan"})
	c := text.Fingerprint("Quake Strikes Chile", []string{"Chile"})

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
