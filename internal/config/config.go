package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/energy-demand-features/internal/energy"
)

var validate = validator.New()

type AppConfig struct {
	WeatherAPIKey    string `validate:"required"`
	WeatherLocation  string `validate:"required"`
	WeatherUnitGroup string `validate:"oneof=metric us uk base"`
	WeatherBaseURL   string `validate:"omitempty,url"`

	EIAAPIKey     string `validate:"required"`
	EIARespondent string `validate:"required"`
	EIABaseURL    string `validate:"omitempty,url"`

	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`

	// HTTPTimeout bounds each upstream request (0 = no timeout).
	HTTPTimeout time.Duration `validate:"gte=0"`

	// FailOnWeatherGaps aborts a build when any weather window failed.
	FailOnWeatherGaps bool

	// OutputPath, when set, receives the feature table as CSV.
	OutputPath string

	// EvalSplitDate, when set, splits features into train/test for a baseline RMSE.
	EvalSplitDate string `validate:"omitempty,datetime=2006-01-02"`

	// Serve mode: HTTP API plus periodic refresh.
	Serve           bool
	Port            string        `validate:"required,numeric"`
	RefreshInterval time.Duration `validate:"gt=0"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max datasets per request (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of datasets (0 = unlimited)

	LogLevel string `validate:"oneof=debug info warn error"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the current environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.WeatherLocation = os.Getenv("WEATHER_LOCATION")
	cfg.WeatherUnitGroup = getenvDefault("WEATHER_UNIT_GROUP", "metric")
	cfg.WeatherBaseURL = os.Getenv("WEATHER_BASE_URL")

	cfg.EIAAPIKey = os.Getenv("EIA_API_KEY")
	cfg.EIARespondent = strings.ToUpper(os.Getenv("EIA_RESPONDENT"))
	cfg.EIABaseURL = os.Getenv("EIA_BASE_URL")

	cfg.StartDate = os.Getenv("START_DATE")
	cfg.EndDate = os.Getenv("END_DATE")
	cfg.OutputPath = os.Getenv("OUTPUT_PATH")
	cfg.EvalSplitDate = os.Getenv("EVAL_SPLIT_DATE")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "24h"); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "168h"); err != nil {
		return nil, err
	}
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 10)

	cfg.FailOnWeatherGaps = getenvBool("FAIL_ON_WEATHER_GAPS", false)
	cfg.Serve = getenvBool("SERVE", false)
	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.Range(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Range returns the configured inclusive date range.
func (c *AppConfig) Range() (energy.DateRange, error) {
	return energy.NewDateRange(c.StartDate, c.EndDate)
}

// Request returns the dataset request described by the configuration.
func (c *AppConfig) Request() (energy.Request, error) {
	r, err := c.Range()
	if err != nil {
		return energy.Request{}, err
	}
	return energy.Request{
		Respondent: c.EIARespondent,
		Location:   c.WeatherLocation,
		Range:      r,
	}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
