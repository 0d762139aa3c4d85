package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAdPricingMissingFile(t *testing.T) {
	p, err := LoadAdPricing(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, []string{"community", "feed"}, p.Candidates(" Community "))
	assert.Equal(t, []string{"sidebar"}, p.Candidates("sidebar"))
	assertDecimal(t, "0.05", p.ViewCost("feed", decimal.NewFromInt(50)))
	assertDecimal(t, "0.3", p.ClickCost("feed", decimal.RequireFromString("0.3")))
}

func TestLoadAdPricingFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ad_pricing.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"placements": {"Result": {"view_cost": 0.02}},
		"fallbacks": {"result": ["feed", "result"], "sidebar": ["news"]}
	}`), 0o644))

	p, err := LoadAdPricing(path)
	require.NoError(t, err)

	assertDecimal(t, "0.02", p.ViewCost("result", decimal.NewFromInt(500)))
	assertDecimal(t, "0.9", p.ClickCost("result", decimal.RequireFromString("0.9")))
	assert.Equal(t, []string{"result", "feed"}, p.Candidates("result"))
	assert.Equal(t, []string{"sidebar", "news"}, p.Candidates("sidebar"))
	assert.Equal(t, []string{"community"}, p.Candidates("community"), "file fallbacks replace the defaults")
}

func TestLoadAdPricingRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ad_pricing.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := LoadAdPricing(path)
	assert.Error(t, err)
}

func TestUpdateAdPricingPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing", "ad_pricing.json")
	p := NewAdPricing(path, PricingConfig{})

	view, click := 0.4, 2.0
	require.NoError(t, p.Update(PricingConfig{
		Placements: map[string]PlacementPricing{"news": {ViewCost: &view, ClickCost: &click}},
		Fallbacks:  map[string][]string{"news": {"feed"}},
	}))
	assertDecimal(t, "0.4", p.ViewCost("news", decimal.NewFromInt(100)))
	assertDecimal(t, "2", p.ClickCost("news", decimal.NewFromInt(1)))

	reloaded, err := LoadAdPricing(path)
	require.NoError(t, err)
	assert.Equal(t, p.Snapshot(), reloaded.Snapshot())

	negative := -1.0
	err = p.Update(PricingConfig{Placements: map[string]PlacementPricing{"feed": {ViewCost: &negative}}})
	assert.ErrorIs(t, err, ErrValidation)
	assertDecimal(t, "0.4", p.ViewCost("news", decimal.NewFromInt(100)))
}

func TestUpdateAdPricingFallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ad_pricing.json")
	p := NewAdPricing(path, PricingConfig{})

	require.NoError(t, p.Update(PricingConfig{Fallbacks: map[string][]string{}}))
	assert.Equal(t, []string{"community"}, p.Candidates("community"))

	reloaded, err := LoadAdPricing(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"community"}, reloaded.Candidates("community"), "cleared fallbacks survive a reload")

	require.NoError(t, p.Update(PricingConfig{}))
	assert.Equal(t, []string{"community", "feed"}, p.Candidates("community"))
}

func TestUpdateAdPricingRejectsBadPlacementNames(t *testing.T) {
	cost := 0.1
	tests := []struct {
		name string
		cfg  PricingConfig
	}{
		{"dotted placement", PricingConfig{Placements: map[string]PlacementPricing{"home.top": {ViewCost: &cost}}}},
		{"spaced fallback key", PricingConfig{Fallbacks: map[string][]string{"side bar": {"feed"}}}},
		{"dotted fallback target", PricingConfig{Fallbacks: map[string][]string{"news": {"feed.main"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewAdPricing(filepath.Join(t.TempDir(), "ad_pricing.json"), PricingConfig{})
			assert.ErrorIs(t, p.Update(tt.cfg), ErrValidation)
			assert.Equal(t, []string{"news", "feed"}, p.Candidates("news"))
		})
	}
}

func TestLoadAdPricingKeepsDottedNamesFlat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ad_pricing.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"placements": {"home.top": {"view_cost": 0.07}}
	}`), 0o644))

	p, err := LoadAdPricing(path)
	require.NoError(t, err)
	assertDecimal(t, "0.07", p.ViewCost("home.top", decimal.NewFromInt(500)))
	assertDecimal(t, "0.5", p.ViewCost("home", decimal.NewFromInt(500)))
}
