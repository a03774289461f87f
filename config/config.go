package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is MarketForge's nested, yaml.v3-unmarshaled configuration
// tree, the same shape as the teacher's own Config, re-keyed to the
// engine/feed/proxy domain instead of per-exchange reader/writer
// sections.
type Config struct {
	MarketForge AppConfig       `yaml:"marketforge"`
	Engine      EngineConfig    `yaml:"engine"`
	OrderBook   OrderBookConfig `yaml:"order_book"`
	Feed        FeedConfig      `yaml:"feed"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// AppConfig identifies the running service; cmd/marketforge logs its
// fields once at startup.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// EngineConfig sizes the candlestick aggregation pipeline: the window
// duration applied to every CandleGenerator and the fixed-size thread
// pool that fans completed candles out to the indicator registry.
type EngineConfig struct {
	WindowDurationSeconds   int64 `yaml:"window_duration_seconds"`
	ThreadPoolWorkers       int   `yaml:"thread_pool_workers"`
	ThreadPoolQueueCapacity int   `yaml:"thread_pool_queue_capacity"`
}

// OrderBookConfig sizes the arena-backed order storage core. ArenaBytes
// of zero (or ArenaCapacity of zero) selects the heap-backed fallback
// mode instead.
type OrderBookConfig struct {
	ArenaCapacity int `yaml:"arena_capacity"`
	ArenaBytes    int `yaml:"arena_bytes"`
}

// FeedConfig configures the multi-source producer pool: how orders are
// queued between sources and the CandlestickGenerator, whether duplicate
// source tags are rejected at start, where the integrity log lives, and
// the list of configured transport sources.
type FeedConfig struct {
	UniqueTags    bool               `yaml:"unique_tags"`
	QueueCapacity int                `yaml:"queue_capacity"`
	HashLogPath   string             `yaml:"hash_log_path"`
	Sources       []FeedSourceConfig `yaml:"sources"`
}

// FeedSourceConfig is a discriminated union over the five transport
// variants, selected by Type ("csv", "shm", "socket", "injector", "ws").
// Exactly one of the pointer fields matching Type should be set.
type FeedSourceConfig struct {
	Type     string                `yaml:"type"`
	Name     string                `yaml:"name"`
	CSV      *CSVSourceConfig      `yaml:"csv,omitempty"`
	SHM      *SHMSourceConfig      `yaml:"shm,omitempty"`
	Socket   *SocketSourceConfig   `yaml:"socket,omitempty"`
	Injector *InjectorSourceConfig `yaml:"injector,omitempty"`
	WS       *WSSourceConfig       `yaml:"ws,omitempty"`
}

type CSVSourceConfig struct {
	Filename    string `yaml:"filename"`
	TickDelayMs int    `yaml:"tick_delay_ms"`
}

type SHMSourceConfig struct {
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

type SocketSourceConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type InjectorSourceConfig struct {
	Filename string `yaml:"filename"`
}

type WSSourceConfig struct {
	URL string `yaml:"url"`
}

// DashboardConfig controls the websocket telemetry-streaming endpoint.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig mirrors the teacher's own logging section: level/format/
// output/rotation plus an optional CloudWatch metric-publishing path.
type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
	CloudWatch    CloudWatchConfig       `yaml:"cloudwatch"`
}

// CloudWatchConfig gates logger.LogMetric's optional CloudWatch
// publishing path. Region and Namespace may be overridden by the
// MARKETFORGE_CLOUDWATCH_REGION / MARKETFORGE_CLOUDWATCH_NAMESPACE
// environment variables, the same override pattern the teacher used for
// its own AWS credentials.
type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// LoadConfig reads and validates a yaml configuration file at path.
// path is first resolved against the current APP_ENV: if an
// environment-specific sibling file exists (config.production.yml
// alongside config.yml), it is loaded instead.
func LoadConfig(path string) (*Config, error) {
	path = ConfigPathForEnvironment(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Config{
		Engine: EngineConfig{
			WindowDurationSeconds:   60,
			ThreadPoolWorkers:       0, // 0 -> runtime.NumCPU()
			ThreadPoolQueueCapacity: 256,
		},
		Feed: FeedConfig{
			QueueCapacity: 1024,
		},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := strings.TrimSpace(os.Getenv("MARKETFORGE_CLOUDWATCH_REGION")); v != "" {
		cfg.Logging.CloudWatch.Region = v
	}
	if v := strings.TrimSpace(os.Getenv("MARKETFORGE_CLOUDWATCH_NAMESPACE")); v != "" {
		cfg.Logging.CloudWatch.Namespace = v
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.MarketForge.Name == "" {
		return fmt.Errorf("marketforge.name is required")
	}
	if cfg.MarketForge.Version == "" {
		return fmt.Errorf("marketforge.version is required")
	}
	if cfg.Engine.WindowDurationSeconds <= 0 {
		return fmt.Errorf("engine.window_duration_seconds must be greater than 0")
	}
	if cfg.Engine.ThreadPoolWorkers < 0 {
		return fmt.Errorf("engine.thread_pool_workers must be >= 0")
	}
	if cfg.Feed.QueueCapacity <= 0 {
		return fmt.Errorf("feed.queue_capacity must be greater than 0")
	}
	for i, src := range cfg.Feed.Sources {
		if err := validateSource(i, src); err != nil {
			return err
		}
	}
	if cfg.Dashboard.Enabled && cfg.Dashboard.Address == "" {
		return fmt.Errorf("dashboard.address is required when dashboard is enabled")
	}
	if cfg.Logging.CloudWatch.Enabled && cfg.Logging.CloudWatch.Region == "" {
		return fmt.Errorf("logging.cloudwatch.region is required when cloudwatch is enabled")
	}
	if IsProductionLike(AppEnvironment()) && !cfg.Logging.CloudWatch.Enabled {
		return fmt.Errorf("logging.cloudwatch.enabled is required in %s", AppEnvironment())
	}
	return nil
}

func validateSource(i int, src FeedSourceConfig) error {
	switch src.Type {
	case "csv":
		if src.CSV == nil || src.CSV.Filename == "" {
			return fmt.Errorf("feed.sources[%d]: csv source requires csv.filename", i)
		}
	case "shm":
		if src.SHM == nil || src.SHM.Path == "" {
			return fmt.Errorf("feed.sources[%d]: shm source requires shm.path", i)
		}
	case "socket":
		if src.Socket == nil || src.Socket.ListenAddr == "" {
			return fmt.Errorf("feed.sources[%d]: socket source requires socket.listen_addr", i)
		}
	case "injector":
		if src.Injector == nil || src.Injector.Filename == "" {
			return fmt.Errorf("feed.sources[%d]: injector source requires injector.filename", i)
		}
	case "ws":
		if src.WS == nil || src.WS.URL == "" {
			return fmt.Errorf("feed.sources[%d]: ws source requires ws.url", i)
		}
	default:
		return fmt.Errorf("feed.sources[%d]: unknown type %q", i, src.Type)
	}
	return nil
}
