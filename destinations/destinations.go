// Package destinations holds the canonical destination reference data and
// the keyword lists driving text classification and policy enforcement.
//
// The data ships as an embedded YAML document so operators can review and
// edit keyword lists without touching classifier code. Load reads an
// override file; Default returns the embedded configuration.
package destinations

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Canonical destination keys. These are the only values ever stored in
// Session.RecommendedSpot and Session.CurrentLocation.
const (
	Dongseongro = "dongseongro"
	Dalseong    = "dalseong"
	Suseongmot  = "suseongmot"
)

// Spot describes one canonical destination.
type Spot struct {
	Name           string   `yaml:"name" json:"name"`
	Keywords       []string `yaml:"keywords" json:"keywords"`
	Description    string   `yaml:"description" json:"description,omitempty"`
	Transport      string   `yaml:"transport" json:"transport,omitempty"`
	Highlights     []string `yaml:"highlights" json:"highlights,omitempty"`
	FoodCategories []string `yaml:"food_categories" json:"food_categories,omitempty"`
	FoodAreas      []string `yaml:"food_areas" json:"food_areas,omitempty"`
}

// Config is the full destination and keyword configuration.
type Config struct {
	Spots            map[string]Spot   `yaml:"spots"`
	Alternatives     map[string]string `yaml:"alternatives"`
	Rotation         []string          `yaml:"rotation"`
	OtherCities      []string          `yaml:"other_cities"`
	MoveKeywords     []string          `yaml:"move_keywords"`
	FoodKeywords     []string          `yaml:"food_keywords"`
	TravelKeywords   []string          `yaml:"travel_keywords"`
	OffTopicKeywords []string          `yaml:"off_topic_keywords"`
	Profanity        []string          `yaml:"profanity"`
	CriticalTerms    []string          `yaml:"critical_terms"`
	JailbreakPhrases []string          `yaml:"jailbreak_phrases"`
}

// Spot returns the spot for a canonical key.
func (c *Config) Spot(key string) (Spot, bool) {
	s, ok := c.Spots[key]
	return s, ok
}

// IsCanonical reports whether key names one of the three destinations.
func (c *Config) IsCanonical(key string) bool {
	_, ok := c.Spots[key]
	return ok
}

// SpotNames returns the display names of all canonical destinations in
// rotation order.
func (c *Config) SpotNames() []string {
	names := make([]string, 0, len(c.Rotation))
	for _, key := range c.Rotation {
		if s, ok := c.Spots[key]; ok {
			names = append(names, s.Name)
		}
	}
	return names
}

// Validate checks structural requirements on the configuration.
func (c *Config) Validate() error {
	if len(c.Spots) != 3 {
		return fmt.Errorf("expected exactly 3 canonical spots, got %d", len(c.Spots))
	}
	for key, spot := range c.Spots {
		if spot.Name == "" {
			return fmt.Errorf("spot %q has no display name", key)
		}
		if len(spot.Keywords) == 0 {
			return fmt.Errorf("spot %q has no preference keywords", key)
		}
	}
	if len(c.Rotation) != len(c.Spots) {
		return fmt.Errorf("rotation must list every spot once, got %d entries", len(c.Rotation))
	}
	for _, key := range c.Rotation {
		if !c.IsCanonical(key) {
			return fmt.Errorf("rotation references unknown spot %q", key)
		}
	}
	for keyword, key := range c.Alternatives {
		if !c.IsCanonical(key) {
			return fmt.Errorf("alternative %q maps to unknown spot %q", keyword, key)
		}
	}
	for _, term := range c.CriticalTerms {
		if !contains(c.Profanity, term) {
			return fmt.Errorf("critical term %q is not in the profanity list", term)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse destination config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads a destination configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded destination configuration.
// It panics on a malformed embedded file since that is a build defect.
func Default() *Config {
	cfg, err := parse(defaultConfig)
	if err != nil {
		panic(err)
	}
	return cfg
}
