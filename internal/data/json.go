package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"rec-lem-prices/internal/model"
)

func LoadCommunityJSON(path string) (*model.Community, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c model.Community
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

type communityFileWrapper struct {
	Community model.Community `yaml:"community"`
}

// LoadCommunityYAML reads a YAML file holding a top-level "community" key.
func LoadCommunityYAML(path string) (*model.Community, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w communityFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &w.Community, nil
}

// LoadCommunity picks the decoder from the file extension. Anything that is
// not .yaml or .yml is read as JSON.
func LoadCommunity(path string) (*model.Community, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadCommunityYAML(path)
	default:
		return LoadCommunityJSON(path)
	}
}

// OfferBook is one session's offers, as read by the offline pricing tools.
type OfferBook struct {
	Buys  []model.Offer `json:"buys" yaml:"buys"`
	Sells []model.Offer `json:"sells" yaml:"sells"`
}

func LoadOfferBook(path string) (*OfferBook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b OfferBook
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &b, nil
}
