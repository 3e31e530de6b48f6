package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"rec-lem-prices/internal/data"
	"rec-lem-prices/internal/model"
	"rec-lem-prices/internal/pricing"
	"rec-lem-prices/internal/schedule"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeframe = schedule.TimeframePre
	DefaultMechanism = pricing.MechanismMMR
	DefaultMarket    = schedule.MarketPool
	DefaultRounding  = model.RoundingTruncate
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	// Optional: load the community from a separate JSON or YAML file.
	// If both CommunityFile and Community are provided, Community overrides
	// CommunityFile field by field.
	CommunityFile string             `yaml:"community_file"`
	Community     model.Community    `yaml:"community"`
	Timeframe     schedule.Timeframe `yaml:"timeframe"`
	Pricing       pricing.Params     `yaml:"pricing"`
	Market        schedule.Market    `yaml:"market"`
	Scheduler     schedule.Config    `yaml:"scheduler"`
	Rounding      model.Rounding     `yaml:"rounding"`
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.CommunityFile != "" {
		communityPath := c.CommunityFile
		if !filepath.IsAbs(communityPath) {
			// Prefer the config file's directory, fall back to the cwd.
			cand := filepath.Join(filepath.Dir(path), communityPath)
			if _, err := os.Stat(cand); err == nil {
				communityPath = cand
			}
		}
		loaded, err := data.LoadCommunity(communityPath)
		if err != nil {
			return nil, fmt.Errorf("community_file: %w", err)
		}
		c.Community = MergeCommunity(*loaded, c.Community)
	}
	return &c, nil
}

// ApplyDefaults fills every unset field that has a default.
func (c *Config) ApplyDefaults() {
	if c.Timeframe == "" {
		c.Timeframe = DefaultTimeframe
	}
	if c.Pricing.Mechanism == "" {
		c.Pricing.Mechanism = DefaultMechanism
	}
	c.Pricing = c.Pricing.WithDefaults()
	if c.Market == "" {
		c.Market = DefaultMarket
	}
	c.Scheduler = c.Scheduler.WithDefaults()
	if c.Rounding == "" {
		c.Rounding = DefaultRounding
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Timeframe {
	case schedule.TimeframePre, schedule.TimeframePost:
	default:
		return fmt.Errorf("%w: timeframe must be pre or post, got %q", model.ErrInvalidParameter, c.Timeframe)
	}
	if err := c.Pricing.Validate(); err != nil {
		return fmt.Errorf("pricing config invalid: %w", err)
	}
	if err := c.Market.Validate(); err != nil {
		return err
	}
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("%w: scheduler.workers must be >= 0", model.ErrInvalidParameter)
	}
	if _, err := c.Community.Validate(c.Rounding); err != nil {
		return fmt.Errorf("community config invalid: %w", err)
	}
	return nil
}

// MergeCommunity overlays non-zero fields from override onto base.
// Members are matched by id: an override member replaces the base member with
// the same id, unknown ids are appended.
func MergeCommunity(base, override model.Community) model.Community {
	out := base
	if override.Horizon != 0 {
		out.Horizon = override.Horizon
	}
	if override.DeltaT != 0 {
		out.DeltaT = override.DeltaT
	}
	if override.ExtraPowerCost != 0 {
		out.ExtraPowerCost = override.ExtraPowerCost
	}
	if override.GridTariff != nil {
		out.GridTariff = override.GridTariff
	}
	if override.MarketBuy != nil {
		out.MarketBuy = override.MarketBuy
	}
	if override.MarketSell != nil {
		out.MarketSell = override.MarketSell
	}
	if override.PairGridTariff != nil {
		out.PairGridTariff = override.PairGridTariff
	}
	if len(override.Members) == 0 {
		return out
	}

	out.Members = append([]model.Member(nil), base.Members...)
	for _, m := range override.Members {
		replaced := false
		for i := range out.Members {
			if out.Members[i].ID == m.ID {
				out.Members[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			out.Members = append(out.Members, m)
		}
	}
	return out
}
