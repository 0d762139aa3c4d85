package services

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// PlacementPricing overrides bid-derived costs for one placement. Nil means "use the bid".
type PlacementPricing struct {
	ViewCost  *float64 `mapstructure:"view_cost" json:"view_cost,omitempty"`
	ClickCost *float64 `mapstructure:"click_cost" json:"click_cost,omitempty"`
}

// PricingConfig is the on-disk ad pricing file. A nil Fallbacks map means the
// default fallbacks; an empty one means none.
type PricingConfig struct {
	Placements map[string]PlacementPricing `mapstructure:"placements" json:"placements"`
	Fallbacks  map[string][]string         `mapstructure:"fallbacks" json:"fallbacks"`
}

var defaultFallbacks = map[string][]string{
	"community": {"feed"},
	"news":      {"feed"},
	"result":    {"feed"},
}

var thousand = decimal.NewFromInt(1000)

var placementName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// pricingKeyDelimiter keeps viper from nesting placement names on ".".
const pricingKeyDelimiter = "::"

func newPricingViper() *viper.Viper {
	return viper.NewWithOptions(viper.KeyDelimiter(pricingKeyDelimiter))
}

// AdPricing holds the pricing file in memory. It is read once at startup and
// again only when an admin replaces it through Update.
type AdPricing struct {
	path string

	mu  sync.RWMutex
	cfg PricingConfig
}

// LoadAdPricing reads path; a missing file yields bid-only pricing with the default fallbacks.
func LoadAdPricing(path string) (*AdPricing, error) {
	p := &AdPricing{path: path}
	cfg, err := readPricingFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Printf("[Ads] ⚠️ pricing file %s not found, using bid-based pricing", path)
		cfg = PricingConfig{}
	}
	p.cfg = normalizePricing(cfg)
	return p, nil
}

// NewAdPricing builds an in-memory pricing table, for tests and defaults.
func NewAdPricing(path string, cfg PricingConfig) *AdPricing {
	return &AdPricing{path: path, cfg: normalizePricing(cfg)}
}

func readPricingFile(path string) (PricingConfig, error) {
	var cfg PricingConfig
	if _, err := os.Stat(path); err != nil {
		return cfg, err
	}
	v := newPricingViper()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read pricing file: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode pricing file: %w", err)
	}
	// viper drops empty maps when unmarshalling; "fallbacks": {} still means none.
	if cfg.Fallbacks == nil && v.IsSet("fallbacks") {
		cfg.Fallbacks = map[string][]string{}
	}
	return cfg, nil
}

func normalizePricing(cfg PricingConfig) PricingConfig {
	out := PricingConfig{
		Placements: make(map[string]PlacementPricing, len(cfg.Placements)),
		Fallbacks:  make(map[string][]string),
	}
	for k, v := range cfg.Placements {
		out.Placements[strings.ToLower(strings.TrimSpace(k))] = v
	}
	fallbacks := cfg.Fallbacks
	if fallbacks == nil {
		fallbacks = defaultFallbacks
	}
	for k, list := range fallbacks {
		key := strings.ToLower(strings.TrimSpace(k))
		for _, f := range list {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" && f != key {
				out.Fallbacks[key] = append(out.Fallbacks[key], f)
			}
		}
	}
	return out
}

// Candidates lists the ad placements eligible to fill a slot, the slot itself first.
func (p *AdPricing) Candidates(placement string) []string {
	placement = strings.ToLower(strings.TrimSpace(placement))
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := []string{placement}
	return append(out, p.cfg.Fallbacks[placement]...)
}

// ViewCost is the configured per-view price for placement, else cpm/1000.
func (p *AdPricing) ViewCost(placement string, cpmBid decimal.Decimal) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pp, ok := p.cfg.Placements[strings.ToLower(placement)]; ok && pp.ViewCost != nil {
		return decimal.NewFromFloat(*pp.ViewCost)
	}
	return cpmBid.Div(thousand)
}

// ClickCost is the configured per-click price for placement, else the cpc bid.
func (p *AdPricing) ClickCost(placement string, cpcBid decimal.Decimal) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pp, ok := p.cfg.Placements[strings.ToLower(placement)]; ok && pp.ClickCost != nil {
		return decimal.NewFromFloat(*pp.ClickCost)
	}
	return cpcBid
}

func (p *AdPricing) Snapshot() PricingConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := PricingConfig{
		Placements: make(map[string]PlacementPricing, len(p.cfg.Placements)),
		Fallbacks:  make(map[string][]string, len(p.cfg.Fallbacks)),
	}
	for k, v := range p.cfg.Placements {
		out.Placements[k] = v
	}
	for k, v := range p.cfg.Fallbacks {
		out.Fallbacks[k] = append([]string(nil), v...)
	}
	return out
}

// Update validates cfg, writes it to the pricing file and reloads it.
func (p *AdPricing) Update(cfg PricingConfig) error {
	for name, pp := range cfg.Placements {
		if (pp.ViewCost != nil && *pp.ViewCost < 0) || (pp.ClickCost != nil && *pp.ClickCost < 0) {
			return fmt.Errorf("placement %s has a negative cost: %w", name, ErrValidation)
		}
	}
	cfg = normalizePricing(cfg)
	if err := validatePlacementNames(cfg); err != nil {
		return err
	}

	if err := writePricingFile(p.path, cfg); err != nil {
		return err
	}
	reloaded, err := readPricingFile(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = normalizePricing(reloaded)
	p.mu.Unlock()
	log.Printf("[Ads] ✅ pricing reloaded from %s (%d placements)", p.path, len(cfg.Placements))
	return nil
}

func validatePlacementNames(cfg PricingConfig) error {
	check := func(name string) error {
		if !placementName.MatchString(name) {
			return fmt.Errorf("invalid placement name %q: %w", name, ErrValidation)
		}
		return nil
	}
	for name := range cfg.Placements {
		if err := check(name); err != nil {
			return err
		}
	}
	for name, list := range cfg.Fallbacks {
		if err := check(name); err != nil {
			return err
		}
		for _, f := range list {
			if err := check(f); err != nil {
				return err
			}
		}
	}
	return nil
}

func writePricingFile(path string, cfg PricingConfig) error {
	placements := make(map[string]interface{}, len(cfg.Placements))
	names := make([]string, 0, len(cfg.Placements))
	for name := range cfg.Placements {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pp := cfg.Placements[name]
		entry := map[string]interface{}{}
		if pp.ViewCost != nil {
			entry["view_cost"] = *pp.ViewCost
		}
		if pp.ClickCost != nil {
			entry["click_cost"] = *pp.ClickCost
		}
		placements[name] = entry
	}

	v := newPricingViper()
	v.SetConfigType("json")
	v.Set("placements", placements)
	v.Set("fallbacks", cfg.Fallbacks)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write pricing file: %w", err)
	}
	return nil
}
