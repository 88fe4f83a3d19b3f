// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config/campaigns.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.DatabasePath()
//	book1, book2 := cfg.BookASINSets()
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Campaigns map[string]CampaignConfig `yaml:"campaigns"`
	Books     map[string]BookConfig     `yaml:"books"`
	Timeline  TimelineConfig            `yaml:"timeline"`
	Settings  SettingsConfig            `yaml:"settings"`
	Storage   StorageConfig             `yaml:"storage"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// CampaignConfig describes one ad campaign and its configured targets
type CampaignConfig struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"` // product_targeting or keyword_targeting
	Targets []TargetConfig `yaml:"targets"`
}

// TargetConfig is a single configured target within a campaign. The
// asin field carries the target text: a bare ASIN for product
// targeting campaigns, the keyword for keyword campaigns.
type TargetConfig struct {
	ASIN  string   `yaml:"asin"`
	Title string   `yaml:"title"`
	Bid   *float64 `yaml:"bid"`
}

// BookConfig identifies one advertised book across its formats
type BookConfig struct {
	ShortTitle    string `yaml:"short_title"`
	Title         string `yaml:"title"`
	ASINKindle    string `yaml:"asin_kindle"`
	ASINPaperback string `yaml:"asin_paperback"`
}

// TimelineConfig holds campaign history dates
type TimelineConfig struct {
	AmazonAdsStart string `yaml:"amazon_ads_start"`
}

// SettingsConfig holds analysis thresholds and tuning values.
// Zero values mean "unset"; consumers fall back to their documented
// defaults.
type SettingsConfig struct {
	TargetACOS               float64 `yaml:"target_acos"`
	BlendedRoyalty           float64 `yaml:"blended_royalty"`
	HighSpendFlag            float64 `yaml:"high_spend_flag"`
	LowImpressionsFlag       int     `yaml:"low_impressions_flag"`
	ExactMatchTransitionDate string  `yaml:"exact_match_transition_date"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${KDP_ADS_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
// Campaign and book definitions exist only in YAML, so this covers
// storage, settings, and logging.
func LoadFromEnv() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("KDP_ADS_DB_PATH", "db/kdp_ads.db"),
		},
		Settings: SettingsConfig{
			TargetACOS:         getEnvFloat("TARGET_ACOS", 0.50),
			BlendedRoyalty:     getEnvFloat("BLENDED_ROYALTY", 5.00),
			HighSpendFlag:      getEnvFloat("HIGH_SPEND_FLAG", 5.00),
			LowImpressionsFlag: getEnvInt("LOW_IMPRESSIONS_FLAG", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// LoadOrEnv tries to load from config/campaigns.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config/campaigns.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// DatabasePath returns the snapshot database path from config first,
// then the KDP_ADS_DB_PATH environment variable, then the default
// location.
func (c *Config) DatabasePath() string {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath
	}
	return getEnv("KDP_ADS_DB_PATH", "db/kdp_ads.db")
}

// AdsStartDate parses timeline.amazon_ads_start. Returns the zero
// time with no error when the date is not configured.
func (c *Config) AdsStartDate() (time.Time, error) {
	if c.Timeline.AmazonAdsStart == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", c.Timeline.AmazonAdsStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timeline.amazon_ads_start: %w", err)
	}
	return t, nil
}

// BookASINSets collects the configured ASINs for each of the two
// advertised books across every format. Books are matched by map key
// (book_1, book_2) or by short title.
func (c *Config) BookASINSets() (book1, book2 []string) {
	for key, book := range c.Books {
		asins := make([]string, 0, 2)
		if book.ASINKindle != "" {
			asins = append(asins, book.ASINKindle)
		}
		if book.ASINPaperback != "" {
			asins = append(asins, book.ASINPaperback)
		}
		switch {
		case strings.Contains(key, "book_1") || strings.Contains(book.ShortTitle, "Book 1"):
			book1 = append(book1, asins...)
		case strings.Contains(key, "book_2") || strings.Contains(book.ShortTitle, "Book 2"):
			book2 = append(book2, asins...)
		}
	}
	sort.Strings(book1)
	sort.Strings(book2)
	return book1, book2
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var result float64
		if _, err := fmt.Sscanf(val, "%f", &result); err == nil {
			return result
		}
	}
	return fallback
}
