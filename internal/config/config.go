package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/indexcast/internal/window"
)

// Config represents the complete application configuration
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Window   WindowConfig   `mapstructure:"window"`
	Scaling  ScalingConfig  `mapstructure:"scaling"`
	Training TrainingConfig `mapstructure:"training"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Report   ReportConfig   `mapstructure:"report"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig holds the historical data provider configuration
type SourceConfig struct {
	APIBaseURL      string        `mapstructure:"api_base_url"`
	APIKey          string        `mapstructure:"api_key"`
	IndexDataset    string        `mapstructure:"index_dataset"`
	IndexColumn     string        `mapstructure:"index_column"`
	ExtraColumns    []string      `mapstructure:"extra_columns"`
	ExchangeDataset string        `mapstructure:"exchange_dataset"`
	ExchangeColumn  string        `mapstructure:"exchange_column"`
	UseExchange     bool          `mapstructure:"use_exchange"`
	Fill            string        `mapstructure:"fill"`
	FromDate        string        `mapstructure:"from_date"`
	ToDate          string        `mapstructure:"to_date"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelayBase  time.Duration `mapstructure:"retry_delay_base"`
}

// WindowConfig holds the windowing preprocessor configuration
type WindowConfig struct {
	WindowLength  int     `mapstructure:"window_length"`
	StridePolicy  string  `mapstructure:"stride_policy"`
	Horizon       int     `mapstructure:"horizon"`
	TrainFraction float64 `mapstructure:"train_fraction"`
	Trim          bool    `mapstructure:"trim"`
	ExtraHorizons []int   `mapstructure:"extra_horizons"`
	Weekdays      bool    `mapstructure:"weekdays"`
}

// ScalingConfig selects how values are normalized before windowing
type ScalingConfig struct {
	Method string `mapstructure:"method"`
}

// TrainingConfig holds trainer selection and hyperparameters
type TrainingConfig struct {
	Trainer       string  `mapstructure:"trainer"`
	Seed          int64   `mapstructure:"seed"`
	Hidden        int     `mapstructure:"hidden"`
	Population    int     `mapstructure:"population"`
	Generations   int     `mapstructure:"generations"`
	MutationRate  float64 `mapstructure:"mutation_rate"`
	MutationScale float64 `mapstructure:"mutation_scale"`
	Elite         int     `mapstructure:"elite"`
	Workers       int     `mapstructure:"workers"`
	Stagnation    int     `mapstructure:"stagnation"`
	Epochs        int     `mapstructure:"epochs"`
	LearningRate  float64 `mapstructure:"learning_rate"`
	Patience      int     `mapstructure:"patience"`
}

// StorageConfig holds the observation cache configuration
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ReportConfig holds output configuration
type ReportConfig struct {
	PredictionsPath string `mapstructure:"predictions_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. INDEXCAST_SOURCE_API_KEY
	v.SetEnvPrefix("INDEXCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.api_base_url", "https://www.quandl.com/api/v3")
	v.SetDefault("source.index_dataset", "BSE/SENSEX")
	v.SetDefault("source.index_column", "Close")
	v.SetDefault("source.extra_columns", []string{})
	v.SetDefault("source.exchange_dataset", "FRED/DEXINUS")
	v.SetDefault("source.exchange_column", "Value")
	v.SetDefault("source.use_exchange", false)
	v.SetDefault("source.fill", "drop")
	v.SetDefault("source.from_date", "2003-07-14")
	v.SetDefault("source.to_date", "2017-02-19")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.retry_delay_base", "1s")

	// Window defaults
	v.SetDefault("window.window_length", window.DefaultLength)
	v.SetDefault("window.stride_policy", string(window.StrideOverlapping))
	v.SetDefault("window.horizon", window.DefaultHorizon)
	v.SetDefault("window.train_fraction", 0.9)
	v.SetDefault("window.trim", true)
	v.SetDefault("window.extra_horizons", []int{})
	v.SetDefault("window.weekdays", false)

	// Scaling defaults
	v.SetDefault("scaling.method", "minmax")

	// Training defaults
	v.SetDefault("training.trainer", "evolve")
	v.SetDefault("training.seed", 1)
	v.SetDefault("training.hidden", 7)
	v.SetDefault("training.population", 150)
	v.SetDefault("training.generations", 300)
	v.SetDefault("training.mutation_rate", 0.1)
	v.SetDefault("training.mutation_scale", 0.3)
	v.SetDefault("training.elite", 2)
	v.SetDefault("training.stagnation", 0)
	v.SetDefault("training.workers", 0)
	v.SetDefault("training.epochs", 2000)
	v.SetDefault("training.learning_rate", 0.01)
	v.SetDefault("training.patience", 10)

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "./data/indexcast.db")

	// Report defaults
	v.SetDefault("report.predictions_path", "./data/predictions.csv")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Source config
	if c.Source.APIBaseURL == "" {
		return fmt.Errorf("source.api_base_url is required")
	}
	if c.Source.IndexDataset == "" || c.Source.IndexColumn == "" {
		return fmt.Errorf("source.index_dataset and source.index_column are required")
	}
	for _, col := range c.Source.ExtraColumns {
		if col == "" || strings.EqualFold(col, c.Source.IndexColumn) {
			return fmt.Errorf("source.extra_columns must name columns other than source.index_column, got %q", col)
		}
	}
	if c.Source.UseExchange && (c.Source.ExchangeDataset == "" || c.Source.ExchangeColumn == "") {
		return fmt.Errorf("source.exchange_dataset and source.exchange_column are required when use_exchange is set")
	}
	if c.Source.Fill != "drop" && c.Source.Fill != "pad" {
		return fmt.Errorf("source.fill must be one of: drop, pad")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if c.Source.MaxRetries < 1 {
		return fmt.Errorf("source.max_retries must be at least 1")
	}

	// Validate Window config
	if err := c.WindowOptions().Validate(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if c.Window.TrainFraction <= 0.0 || c.Window.TrainFraction >= 1.0 {
		return fmt.Errorf("window.train_fraction must be between 0.0 and 1.0 (exclusive): %w", window.ErrInvalidConfig)
	}
	seenHorizons := map[int]bool{c.Window.Horizon: true}
	for _, h := range c.Window.ExtraHorizons {
		if h <= 0 {
			return fmt.Errorf("window.extra_horizons must be positive, got %d: %w", h, window.ErrInvalidConfig)
		}
		if seenHorizons[h] {
			return fmt.Errorf("window.extra_horizons must not repeat a horizon, got %d", h)
		}
		seenHorizons[h] = true
	}

	// Validate Scaling config
	validMethods := map[string]bool{"minmax": true, "mean": true}
	if !validMethods[c.Scaling.Method] {
		return fmt.Errorf("scaling.method must be one of: minmax, mean")
	}

	// Validate Training config
	switch c.Training.Trainer {
	case "evolve":
		if c.Training.Population < 2 {
			return fmt.Errorf("training.population must be at least 2")
		}
		if c.Training.Generations < 1 {
			return fmt.Errorf("training.generations must be at least 1")
		}
		if c.Training.Elite < 0 || c.Training.Elite >= c.Training.Population {
			return fmt.Errorf("training.elite must be between 0 and population-1")
		}
		if c.Training.Stagnation < 0 {
			return fmt.Errorf("training.stagnation must be non-negative")
		}
		if c.Training.MutationRate < 0.0 || c.Training.MutationRate > 1.0 {
			return fmt.Errorf("training.mutation_rate must be between 0.0 and 1.0")
		}
	case "gradient":
		if c.Training.Epochs < 1 {
			return fmt.Errorf("training.epochs must be at least 1")
		}
		if c.Training.LearningRate <= 0 {
			return fmt.Errorf("training.learning_rate must be positive")
		}
	case "linear":
		if c.Window.Weekdays {
			return fmt.Errorf("window.weekdays cannot be used with the linear trainer (the flags are collinear with the intercept)")
		}
	default:
		return fmt.Errorf("training.trainer must be one of: evolve, gradient, linear")
	}
	if c.Training.Trainer != "linear" && c.Training.Hidden < 1 {
		return fmt.Errorf("training.hidden must be at least 1")
	}
	if c.Training.Workers < 0 {
		return fmt.Errorf("training.workers must not be negative")
	}

	// Validate Storage config
	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("storage.driver must be one of: sqlite, postgres")
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// WindowOptions converts the window section into preprocessor options
func (c *Config) WindowOptions() window.Options {
	return window.Options{
		Length:         c.Window.WindowLength,
		Horizon:        c.Window.Horizon,
		Stride:         window.StridePolicy(c.Window.StridePolicy),
		TrimToMultiple: c.Window.Trim,
	}
}
