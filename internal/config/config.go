// Package config loads the engine's immutable configuration snapshot:
// environment variables (with an optional .env file for development) plus an
// optional YAML overrides file for the processing constants that science
// staff occasionally need to pin.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"

	"github.com/icewatch/seaice-stats/internal/mask"
	"github.com/icewatch/seaice-stats/internal/nasateam"
)

const envPrefix = "SEAICE"

// Config holds all engine settings. Loaded once at startup and treated as
// read-only afterwards.
type Config struct {
	// Datastore and input locations.
	DataDir        string   `envconfig:"DATA_DIR" default:"./datastore"`
	FinalDataPaths []string `envconfig:"FINAL_DATA_PATHS"`
	NRTDataPaths   []string `envconfig:"NRT_DATA_PATHS"`
	MaskDir        string   `envconfig:"MASK_DIR"`
	CellAreaDir    string   `envconfig:"CELL_AREA_DIR"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`

	// Optional Kafka publishing of updated records. Disabled when no
	// brokers are configured.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"seaice-stat-records"`

	GridCacheSize int `envconfig:"GRID_CACHE_SIZE" default:"64"`

	// Processing constants. Defaults match the published NASA Team record.
	ExtentThreshold                 float64 `envconfig:"EXTENT_THRESHOLD" default:"15"`
	MinValidDaysForMonth            int     `envconfig:"MIN_VALID_DAYS_FOR_MONTH" default:"20"`
	InterpolationMaxGap             int     `envconfig:"INTERPOLATION_MAX_GAP" default:"1"`
	AllowCrossPlatformInterpolation bool    `envconfig:"ALLOW_CROSS_PLATFORM_INTERPOLATION" default:"false"`
	WeightBeforeInterpolation       bool    `envconfig:"WEIGHT_BEFORE_INTERPOLATION" default:"true"`
	QAEvalDays                      int     `envconfig:"QA_EVAL_DAYS" default:"15"`
	QADeltaKm2                      float64 `envconfig:"QA_DELTA_KM2" default:"400000"`
	QAMinSample                     int     `envconfig:"QA_MIN_SAMPLE" default:"5"`
	ClimatologyStartYear            int     `envconfig:"CLIMATOLOGY_START_YEAR" default:"1981"`
	ClimatologyEndYear              int     `envconfig:"CLIMATOLOGY_END_YEAR" default:"2010"`

	// Populated from defaults and the overrides file, not from env.
	PlatformRanges []nasateam.PlatformRange        `ignored:"true"`
	BadMonths      []nasateam.BadConcentrationMonth `ignored:"true"`
	Regions        []mask.RegionDef                 `ignored:"true"`
}

// overrides mirrors the YAML file pointed to by SEAICE_OVERRIDES. Every field
// is optional; absent fields keep their defaults.
type overrides struct {
	ExtentThreshold      *float64                         `yaml:"extent_threshold"`
	MinValidDaysForMonth *int                             `yaml:"minimum_days_for_valid_month"`
	PlatformRanges       []nasateam.PlatformRange         `yaml:"platform_ranges"`
	BadMonths            []nasateam.BadConcentrationMonth `yaml:"bad_concentration_months"`
	Regions              []mask.RegionDef                 `yaml:"regions"`
}

// Load reads configuration from the environment, applying a .env file if one
// is present and the overrides file if SEAICE_OVERRIDES is set. Any
// validation failure is returned; callers treat it as fatal.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.PlatformRanges = nasateam.DefaultPlatformRanges
	cfg.BadMonths = nasateam.DefaultBadConcentrationMonths

	if path := os.Getenv(envPrefix + "_OVERRIDES"); path != "" {
		if err := cfg.applyOverrides(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read overrides %s: %w", path, err)
	}
	var o overrides
	if err := yaml.UnmarshalStrict(data, &o); err != nil {
		return fmt.Errorf("config: parse overrides %s: %w", path, err)
	}

	if o.ExtentThreshold != nil {
		c.ExtentThreshold = *o.ExtentThreshold
	}
	if o.MinValidDaysForMonth != nil {
		c.MinValidDaysForMonth = *o.MinValidDaysForMonth
	}
	if o.PlatformRanges != nil {
		c.PlatformRanges = o.PlatformRanges
	}
	if o.BadMonths != nil {
		c.BadMonths = o.BadMonths
	}
	if o.Regions != nil {
		c.Regions = o.Regions
	}
	return nil
}

// Validate checks cross-field constraints the envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: DATA_DIR is required")
	}
	if len(c.FinalDataPaths) == 0 && len(c.NRTDataPaths) == 0 {
		return errors.New("config: at least one of FINAL_DATA_PATHS or NRT_DATA_PATHS is required")
	}
	if c.ExtentThreshold < 0 || c.ExtentThreshold > 100 {
		return fmt.Errorf("config: EXTENT_THRESHOLD %v outside [0,100]", c.ExtentThreshold)
	}
	if c.MinValidDaysForMonth < 1 || c.MinValidDaysForMonth > 31 {
		return fmt.Errorf("config: MIN_VALID_DAYS_FOR_MONTH %d outside [1,31]", c.MinValidDaysForMonth)
	}
	if c.InterpolationMaxGap < 0 {
		return fmt.Errorf("config: INTERPOLATION_MAX_GAP %d is negative", c.InterpolationMaxGap)
	}
	if c.QAEvalDays < 1 {
		return fmt.Errorf("config: QA_EVAL_DAYS %d must be positive", c.QAEvalDays)
	}
	if c.QADeltaKm2 <= 0 {
		return fmt.Errorf("config: QA_DELTA_KM2 %v must be positive", c.QADeltaKm2)
	}
	if c.ClimatologyStartYear > c.ClimatologyEndYear {
		return fmt.Errorf("config: climatology years %d-%d are reversed",
			c.ClimatologyStartYear, c.ClimatologyEndYear)
	}
	if c.GridCacheSize < 0 {
		return fmt.Errorf("config: GRID_CACHE_SIZE %d is negative", c.GridCacheSize)
	}
	if err := nasateam.ValidatePlatformRanges(c.PlatformRanges); err != nil {
		return fmt.Errorf("config: platform ranges: %w", err)
	}
	return nil
}

// PublishEnabled reports whether updated records should be published to
// Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
