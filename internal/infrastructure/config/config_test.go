package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
campaigns:
  book2_asin_targeting:
    name: "Book 2 - ASIN Targeting"
    type: product_targeting
    targets:
      - asin: "B01K1T4U5U"
        title: "Competitor Book"
        bid: 0.45
      - asin: "B0DG4QFPZW"
        title: "Another Competitor"
  book2_keywords:
    name: "Book 2 - Keywords"
    type: keyword_targeting
    targets:
      - asin: "middle grade fantasy"
        bid: 0.30

books:
  book_1:
    short_title: "Book 1"
    title: "Ascension Book 1"
    asin_kindle: "B0ABC11111"
    asin_paperback: "1234567890"
  book_2:
    short_title: "Book 2"
    title: "Ascension Book 2"
    asin_kindle: "B0ABC22222"
    asin_paperback: "0987654321"

timeline:
  amazon_ads_start: "2025-11-05"

settings:
  target_acos: 0.40
  blended_royalty: 4.50
  high_spend_flag: 6.00
  low_impressions_flag: 15
  exact_match_transition_date: "2025-11-12"

storage:
  database_path: "db/test.db"

logging:
  level: debug
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campaigns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))
	return path
}

func TestLoad_CampaignsYAML(t *testing.T) {
	path := writeSampleConfig(t)

	cfg, err := Load(path)
	require.NoError(t, err)

	asinCampaign := cfg.Campaigns["book2_asin_targeting"]
	assert.Equal(t, "Book 2 - ASIN Targeting", asinCampaign.Name)
	assert.Equal(t, "product_targeting", asinCampaign.Type)
	require.Len(t, asinCampaign.Targets, 2)
	assert.Equal(t, "B01K1T4U5U", asinCampaign.Targets[0].ASIN)
	assert.Equal(t, "Competitor Book", asinCampaign.Targets[0].Title)
	require.NotNil(t, asinCampaign.Targets[0].Bid)
	assert.InDelta(t, 0.45, *asinCampaign.Targets[0].Bid, 0.0001)
	assert.Nil(t, asinCampaign.Targets[1].Bid, "target without a bid stays nil")

	keywordCampaign := cfg.Campaigns["book2_keywords"]
	assert.Equal(t, "keyword_targeting", keywordCampaign.Type)
	assert.Equal(t, "middle grade fantasy", keywordCampaign.Targets[0].ASIN)

	assert.Equal(t, "B0ABC11111", cfg.Books["book_1"].ASINKindle)
	assert.Equal(t, "2025-11-05", cfg.Timeline.AmazonAdsStart)
	assert.InDelta(t, 0.40, cfg.Settings.TargetACOS, 0.0001)
	assert.InDelta(t, 4.50, cfg.Settings.BlendedRoyalty, 0.0001)
	assert.Equal(t, 15, cfg.Settings.LowImpressionsFlag)
	assert.Equal(t, "2025-11-12", cfg.Settings.ExactMatchTransitionDate)
	assert.Equal(t, "db/test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	// Set environment variables
	os.Setenv("KDP_ADS_DB_PATH", "env.db")
	os.Setenv("TARGET_ACOS", "0.25")
	os.Setenv("LOG_LEVEL", "warn")
	defer func() {
		os.Unsetenv("KDP_ADS_DB_PATH")
		os.Unsetenv("TARGET_ACOS")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg := LoadFromEnv()
	assert.NotNil(t, cfg)
	assert.Equal(t, "env.db", cfg.Storage.DatabasePath)
	assert.InDelta(t, 0.25, cfg.Settings.TargetACOS, 0.0001)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	// Clear environment variables
	os.Unsetenv("KDP_ADS_DB_PATH")
	os.Unsetenv("TARGET_ACOS")
	os.Unsetenv("LOG_LEVEL")

	cfg := LoadFromEnv()
	assert.NotNil(t, cfg)
	assert.Equal(t, "db/kdp_ads.db", cfg.Storage.DatabasePath)
	assert.InDelta(t, 0.50, cfg.Settings.TargetACOS, 0.0001)
	assert.InDelta(t, 5.00, cfg.Settings.BlendedRoyalty, 0.0001)
	assert.Equal(t, 10, cfg.Settings.LowImpressionsFlag)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	// Test fallback when config file doesn't exist
	os.Setenv("KDP_ADS_DB_PATH", "fallback.db")
	defer os.Unsetenv("KDP_ADS_DB_PATH")

	cfg := LoadOrEnv_WithPath("nonexistent.yaml")
	assert.NotNil(t, cfg)
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestEnvVarExpansion(t *testing.T) {
	// Create temp config file with env vars
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "campaigns.yaml")

	configContent := `
storage:
  database_path: "${TEST_DB_PATH}"
timeline:
  amazon_ads_start: "${TEST_ADS_START}"
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Set env vars
	os.Setenv("TEST_DB_PATH", "expanded.db")
	os.Setenv("TEST_ADS_START", "2025-11-05")
	defer func() {
		os.Unsetenv("TEST_DB_PATH")
		os.Unsetenv("TEST_ADS_START")
	}()

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "expanded.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "2025-11-05", cfg.Timeline.AmazonAdsStart)
}

func TestBookASINSets(t *testing.T) {
	cfg := &Config{
		Books: map[string]BookConfig{
			"first":  {ShortTitle: "Book 1 (Series)", ASINKindle: "B0AAA00001"},
			"book_2": {ASINKindle: "B0BBB00002", ASINPaperback: "1230987654"},
		},
	}

	book1, book2 := cfg.BookASINSets()

	assert.Equal(t, []string{"B0AAA00001"}, book1, "matched by short title")
	assert.Equal(t, []string{"1230987654", "B0BBB00002"}, book2, "matched by key, sorted")
}

func TestBookASINSets_EmptyFormatsDropped(t *testing.T) {
	cfg := &Config{
		Books: map[string]BookConfig{
			"book_1": {ShortTitle: "Book 1", ASINKindle: "B0AAA00001"},
		},
	}

	book1, book2 := cfg.BookASINSets()

	assert.Equal(t, []string{"B0AAA00001"}, book1)
	assert.Empty(t, book2)
}

func TestAdsStartDate(t *testing.T) {
	cfg := &Config{Timeline: TimelineConfig{AmazonAdsStart: "2025-11-05"}}

	start, err := cfg.AdsStartDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC), start)
}

func TestAdsStartDate_Unset(t *testing.T) {
	cfg := &Config{}

	start, err := cfg.AdsStartDate()
	require.NoError(t, err)
	assert.True(t, start.IsZero())
}

func TestAdsStartDate_Malformed(t *testing.T) {
	cfg := &Config{Timeline: TimelineConfig{AmazonAdsStart: "November 5th"}}

	_, err := cfg.AdsStartDate()
	assert.Error(t, err)
}

func TestDatabasePath_ConfigWins(t *testing.T) {
	os.Setenv("KDP_ADS_DB_PATH", "env.db")
	defer os.Unsetenv("KDP_ADS_DB_PATH")

	cfg := &Config{Storage: StorageConfig{DatabasePath: "configured.db"}}
	assert.Equal(t, "configured.db", cfg.DatabasePath())

	cfg = &Config{}
	assert.Equal(t, "env.db", cfg.DatabasePath())
}
