package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Validation struct {
		StartDate       string   `yaml:"start_date"` // RFC3339 or YYYY-MM-DD
		EndDate         string   `yaml:"end_date"`
		Frequency       string   `yaml:"frequency"` // 1h, 1d, 1w
		MinConfidence   float64  `yaml:"min_confidence"`
		PrioritySources []string `yaml:"priority_sources"` // ordered, highest trust first
	} `yaml:"validation"`
	Price struct {
		MinPrice            float64       `yaml:"min_price"`
		MaxPrice            float64       `yaml:"max_price"`
		MaxGap              time.Duration `yaml:"max_gap"`
		BaseItemID          int64         `yaml:"base_item_id"`
		NormalizationWindow int           `yaml:"normalization_window"` // buckets
		VolatilityWindow    int           `yaml:"volatility_window"`    // buckets
		AnomalyThreshold    float64       `yaml:"anomaly_threshold"`    // sigmas
		TrendShortWindow    int           `yaml:"trend_short_window"`   // buckets
		TrendLongWindow     int           `yaml:"trend_long_window"`    // buckets
	} `yaml:"price"`
	ExchangeRate struct {
		MinRate              float64       `yaml:"min_rate"`
		MaxRate              float64       `yaml:"max_rate"`
		MaxGap               time.Duration `yaml:"max_gap"`
		ConsistencyThreshold float64       `yaml:"consistency_threshold"` // relative difference
	} `yaml:"exchange_rate"`
	Solver struct {
		ConditionBound        float64 `yaml:"condition_bound"`         // reject solve above this
		ResidualVarianceBound float64 `yaml:"residual_variance_bound"` // reject item above this
	} `yaml:"solver"`
	Anomaly struct {
		MinPoints int `yaml:"min_points"` // below this, points pass unflagged
	} `yaml:"anomaly"`
	Runner struct {
		Workers      int           `yaml:"workers"`
		Interval     time.Duration `yaml:"interval"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"runner"`
	Sources map[string]SourceConfig `yaml:"sources"`
	Stream  struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		Channels       []string      `yaml:"channels"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"stream"`
	Kafka struct {
		Brokers           []string `yaml:"brokers"`
		ObservationsTopic string   `yaml:"observations_topic"`
		AnchorsTopic      string   `yaml:"anchors_topic"`
		ErrorLogsTopic    string   `yaml:"error_logs_topic"`
		RequiredAcks      int      `yaml:"required_acks"`
		Compression       string   `yaml:"compression"`
		Producer          struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`

	// parsed validation window, set by Validate
	windowStart time.Time
	windowEnd   time.Time
}

// SourceConfig is the retry policy surface for an ingestion collaborator.
// The core consumes already-validated observations and is unaffected by
// these directly; source adapters read them.
type SourceConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("PRIORITY_SOURCES"); v != "" {
		c.Validation.PrioritySources = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Validation.Frequency == "" {
		c.Validation.Frequency = "1d"
	}
	if c.Validation.MinConfidence == 0 {
		c.Validation.MinConfidence = 0.3
	}
	if c.Price.MaxPrice == 0 {
		c.Price.MaxPrice = 1e9
	}
	if c.Price.BaseItemID == 0 {
		c.Price.BaseItemID = 1
	}
	if c.Price.MaxGap == 0 {
		c.Price.MaxGap = 7 * 24 * time.Hour
	}
	if c.Price.VolatilityWindow == 0 {
		c.Price.VolatilityWindow = 30
	}
	if c.Price.AnomalyThreshold == 0 {
		c.Price.AnomalyThreshold = 3.0
	}
	if c.Price.TrendShortWindow == 0 {
		c.Price.TrendShortWindow = 20
	}
	if c.Price.TrendLongWindow == 0 {
		c.Price.TrendLongWindow = 50
	}
	if c.Price.NormalizationWindow == 0 {
		c.Price.NormalizationWindow = 1
	}
	if c.ExchangeRate.MaxRate == 0 {
		c.ExchangeRate.MaxRate = 1e6
	}
	if c.ExchangeRate.MaxGap == 0 {
		c.ExchangeRate.MaxGap = 24 * time.Hour
	}
	if c.ExchangeRate.ConsistencyThreshold == 0 {
		c.ExchangeRate.ConsistencyThreshold = 0.02
	}
	if c.Solver.ConditionBound == 0 {
		c.Solver.ConditionBound = 1e8
	}
	if c.Solver.ResidualVarianceBound == 0 {
		c.Solver.ResidualVarianceBound = 1.0
	}
	if c.Anomaly.MinPoints == 0 {
		c.Anomaly.MinPoints = 5
	}
	if c.Runner.Workers == 0 {
		c.Runner.Workers = 4
	}
	if c.Runner.Interval == 0 {
		c.Runner.Interval = time.Minute
	}
	if c.Runner.BatchSize == 0 {
		c.Runner.BatchSize = 500
	}
	if c.Runner.BatchTimeout == 0 {
		c.Runner.BatchTimeout = 2 * time.Second
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = 5 * time.Second
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = 30 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Price.MinPrice < 0 {
		return fmt.Errorf("price.min_price must be >= 0")
	}
	if c.Price.MaxPrice <= c.Price.MinPrice {
		return fmt.Errorf("price.max_price must be greater than price.min_price")
	}
	if c.ExchangeRate.MinRate < 0 {
		return fmt.Errorf("exchange_rate.min_rate must be >= 0")
	}
	if c.ExchangeRate.MaxRate <= c.ExchangeRate.MinRate {
		return fmt.Errorf("exchange_rate.max_rate must be greater than exchange_rate.min_rate")
	}
	if c.Price.BaseItemID <= 0 {
		return fmt.Errorf("price.base_item_id must be positive")
	}
	if c.Validation.MinConfidence < 0 || c.Validation.MinConfidence > 1 {
		return fmt.Errorf("validation.min_confidence must be in [0,1]")
	}
	switch c.Validation.Frequency {
	case "1h", "1d", "1w":
	default:
		return fmt.Errorf("validation.frequency must be one of 1h, 1d, 1w, got '%s'", c.Validation.Frequency)
	}
	if c.Validation.StartDate != "" {
		t, err := parseDate(c.Validation.StartDate)
		if err != nil {
			return fmt.Errorf("validation.start_date: %w", err)
		}
		c.windowStart = t
	}
	if c.Validation.EndDate != "" {
		t, err := parseDate(c.Validation.EndDate)
		if err != nil {
			return fmt.Errorf("validation.end_date: %w", err)
		}
		c.windowEnd = t
	}
	if !c.windowStart.IsZero() && !c.windowEnd.IsZero() && c.windowEnd.Before(c.windowStart) {
		return fmt.Errorf("validation.end_date is before validation.start_date")
	}
	if c.Price.TrendShortWindow >= c.Price.TrendLongWindow {
		return fmt.Errorf("price.trend_short_window must be less than price.trend_long_window")
	}
	return nil
}

// ValidationWindow returns the configured [start, end] bounds; zero times
// mean unbounded on that side.
func (c *Config) ValidationWindow() (time.Time, time.Time) {
	return c.windowStart, c.windowEnd
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s' (want RFC3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}
