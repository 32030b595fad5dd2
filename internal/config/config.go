package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// MaxBlockSize is the largest IN-list the ERP engine accepts, minus one for the
// trailing date parameter of the history queries.
const MaxBlockSize = 1499

// HTTP holds HTTP server configuration.
type HTTP struct {
	Host string
	Port int
}

// GRPC holds gRPC server configuration.
type GRPC struct {
	Host string
	Port int
}

// Database holds the ERP (read-only) connection settings.
type Database struct {
	Driver          string
	DSN             string
	PoolSize        int
	MaxConnLifetime time.Duration
	PingTimeout     time.Duration
}

// State configures the run journal database.
type State struct {
	Enabled bool
	Driver  string
	DSN     string
}

// Pipeline holds the knobs of the sales-to-ledger transformation.
type Pipeline struct {
	LegalEntityTaxID   string
	Workers            int
	ChunkDays          int
	BlockSize          int
	HistoryTablePrefix string
	HistoryPartitions  int
	OutputDir          string
	XLSXMirror         bool
}

// Cache configures caching behavior and backend selection.
type Cache struct {
	Enabled    bool
	Driver     string
	DefaultTTL time.Duration
	KeyPrefix  string
	Redis      Redis
}

// Redis contains redis-specific connection settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Messaging configures the message bus used by the application.
type Messaging struct {
	Driver        string
	Enabled       bool
	Kafka         Kafka
	ConsumerGroup string
	Workers       Worker
}

// Kafka holds Kafka connection details.
type Kafka struct {
	Brokers        []string
	ClientID       string
	EventsTopic    string
	RequestsTopic  string
	CommitInterval time.Duration
	MinBytes       int
	MaxBytes       int
	ConnectTimeout time.Duration
}

// Worker configures background worker concurrency and polling.
type Worker struct {
	Enabled      bool
	PollInterval time.Duration
	Concurrency  int
}

// Delivery configures the hand-off of finished ledger files.
type Delivery struct {
	SFTPEnabled    bool
	SFTPAddr       string
	SFTPUser       string
	SFTPPassword   string
	SFTPRemoteDir  string
	KnownHostsFile string
	Timeout        time.Duration
}

// Observability contains logging, tracing, and metrics configuration.
type Observability struct {
	ServiceName      string
	Environment      string
	LogLevel         string
	LogEncoding      string
	EnableTracing    bool
	TraceExporter    string
	TraceEndpoint    string
	TraceInsecure    bool
	// TraceSampleRatio is the fraction of root spans kept, between 0 and 1.
	TraceSampleRatio float64
	EnableMetrics    bool
	MetricsExporter  string
	PrometheusPath   string
	PushgatewayURL   string
}

// Config wraps all application configuration knobs.
type Config struct {
	HTTP          HTTP
	GRPC          GRPC
	Database      Database
	State         State
	Pipeline      Pipeline
	Cache         Cache
	Messaging     Messaging
	Delivery      Delivery
	Observability Observability
}

// Module wires the configuration loader into the Fx graph.
var Module = fx.Provide(New)

var loadEnvOnce sync.Once

// New builds a Config from environment variables or defaults.
func New() (Config, error) {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	cfg := Config{
		HTTP: HTTP{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
		GRPC: GRPC{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnvAsInt("GRPC_PORT", 9090),
		},
		Database: Database{
			Driver:          getEnv("DB_DRIVER", "firebird"),
			DSN:             getEnv("DB_DSN", ""),
			PoolSize:        getEnvAsInt("DB_POOL_SIZE", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Minute*30),
			PingTimeout:     getEnvAsDuration("DB_PING_TIMEOUT", 5*time.Second),
		},
		State: State{
			Enabled: getEnvAsBool("STATE_ENABLED", false),
			Driver:  getEnv("STATE_DRIVER", "postgres"),
			DSN:     getEnv("STATE_DSN", ""),
		},
		Pipeline: Pipeline{
			LegalEntityTaxID:   getEnv("PIPELINE_LEGAL_ENTITY_TAX_ID", ""),
			Workers:            getEnvAsInt("PIPELINE_WORKERS", 5),
			ChunkDays:          getEnvAsInt("PIPELINE_CHUNK_DAYS", 30),
			BlockSize:          getEnvAsInt("PIPELINE_BLOCK_SIZE", MaxBlockSize),
			HistoryTablePrefix: getEnv("HISTORY_TABLE_PREFIX", "HISTORICOPRODUTO"),
			HistoryPartitions:  getEnvAsInt("HISTORY_PARTITIONS", 10),
			OutputDir:          getEnv("PIPELINE_OUTPUT_DIR", "./arquivos"),
			XLSXMirror:         getEnvAsBool("PIPELINE_XLSX_MIRROR", false),
		},
		Cache: Cache{
			Enabled:    getEnvAsBool("CACHE_ENABLED", false),
			Driver:     getEnv("CACHE_DRIVER", "redis"),
			DefaultTTL: getEnvAsDuration("CACHE_DEFAULT_TTL", time.Hour*24*30),
			KeyPrefix:  getEnv("CACHE_KEY_PREFIX", "salesledger:"),
			Redis: Redis{
				Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		Messaging: Messaging{
			Driver:  getEnv("MESSAGING_DRIVER", "kafka"),
			Enabled: getEnvAsBool("MESSAGING_ENABLED", false),
			Kafka: Kafka{
				Brokers:        getEnvAsStringSlice("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
				ClientID:       getEnv("KAFKA_CLIENT_ID", "salesledger"),
				EventsTopic:    getEnv("KAFKA_EVENTS_TOPIC", "ledger.events"),
				RequestsTopic:  getEnv("KAFKA_REQUESTS_TOPIC", "ledger.requests"),
				CommitInterval: getEnvAsDuration("KAFKA_COMMIT_INTERVAL", time.Second),
				MinBytes:       getEnvAsInt("KAFKA_MIN_BYTES", 10e3),
				MaxBytes:       getEnvAsInt("KAFKA_MAX_BYTES", 10e6),
				ConnectTimeout: getEnvAsDuration("KAFKA_CONNECT_TIMEOUT", 5*time.Second),
			},
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "salesledger-worker"),
			Workers: Worker{
				Enabled:      getEnvAsBool("WORKER_ENABLED", true),
				PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
				Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 1),
			},
		},
		Delivery: Delivery{
			SFTPEnabled:    getEnvAsBool("SFTP_ENABLED", false),
			SFTPAddr:       getEnv("SFTP_HOST", ""),
			SFTPUser:       getEnv("SFTP_USER", ""),
			SFTPPassword:   getEnv("SFTP_PASSWORD", ""),
			SFTPRemoteDir:  getEnv("SFTP_REMOTE_DIR", "/workarea"),
			KnownHostsFile: getEnv("SFTP_KNOWN_HOSTS", "my_known_hosts"),
			Timeout:        getEnvAsDuration("SFTP_TIMEOUT", 30*time.Second),
		},
		Observability: Observability{
			ServiceName:      getEnv("OBS_SERVICE_NAME", "salesledger"),
			Environment:      getEnv("OBS_ENVIRONMENT", "local"),
			LogLevel:         getEnv("OBS_LOG_LEVEL", "info"),
			LogEncoding:      getEnv("OBS_LOG_ENCODING", "json"),
			EnableTracing:    getEnvAsBool("OBS_ENABLE_TRACING", false),
			TraceExporter:    getEnv("OBS_TRACE_EXPORTER", "stdout"),
			TraceEndpoint:    getEnv("OBS_OTLP_ENDPOINT", "localhost:4317"),
			TraceInsecure:    getEnvAsBool("OBS_OTLP_INSECURE", true),
			TraceSampleRatio: getEnvAsFloat("OBS_TRACE_SAMPLE_RATIO", 1),
			EnableMetrics:    getEnvAsBool("OBS_ENABLE_METRICS", true),
			MetricsExporter:  getEnv("OBS_METRICS_EXPORTER", "prometheus"),
			PrometheusPath:   getEnv("OBS_PROMETHEUS_PATH", "/metrics"),
			PushgatewayURL:   getEnv("OBS_PUSHGATEWAY_URL", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.HTTP.Port <= 0 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}

	if cfg.GRPC.Port <= 0 {
		return fmt.Errorf("invalid gRPC port: %d", cfg.GRPC.Port)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.DSN == "" && cfg.Database.Driver == "firebird" {
		cfg.Database.DSN = firebirdDSNFromEnv()
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("missing DB_DSN (or FIREBIRD_DB_PATH for the firebird driver)")
	}
	switch cfg.Database.Driver {
	case "firebird", "mysql", "postgres":
		// supported
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if cfg.Database.PoolSize <= 0 {
		return fmt.Errorf("invalid DB_POOL_SIZE: %d", cfg.Database.PoolSize)
	}
	if cfg.Database.PingTimeout <= 0 {
		cfg.Database.PingTimeout = 5 * time.Second
	}

	if cfg.State.Enabled {
		if cfg.State.DSN == "" {
			return fmt.Errorf("missing STATE_DSN for run journal")
		}
		switch cfg.State.Driver {
		case "mysql", "postgres":
			// supported
		default:
			return fmt.Errorf("unsupported state driver: %s", cfg.State.Driver)
		}
	}

	if err := cfg.Pipeline.Validate(); err != nil {
		return err
	}

	if !cfg.Cache.Enabled {
		cfg.Cache.Driver = "noop"
	}

	switch cfg.Cache.Driver {
	case "redis", "noop":
		// supported
	default:
		return fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}

	if cfg.Cache.Driver == "redis" && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("missing REDIS_ADDR for redis cache")
	}

	if cfg.Cache.DefaultTTL < 0 {
		cfg.Cache.DefaultTTL = time.Hour * 24
	}

	if !cfg.Messaging.Enabled {
		cfg.Messaging.Driver = "noop"
	}

	switch cfg.Messaging.Driver {
	case "kafka", "noop":
		// supported
	default:
		return fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}

	if cfg.Messaging.Driver == "kafka" {
		if len(cfg.Messaging.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS must be provided")
		}
		if cfg.Messaging.Kafka.EventsTopic == "" || cfg.Messaging.Kafka.RequestsTopic == "" {
			return fmt.Errorf("KAFKA_EVENTS_TOPIC and KAFKA_REQUESTS_TOPIC must be provided")
		}
		if cfg.Messaging.ConsumerGroup == "" {
			return fmt.Errorf("KAFKA_CONSUMER_GROUP must be provided")
		}
	}

	if cfg.Messaging.Workers.Concurrency <= 0 {
		cfg.Messaging.Workers.Concurrency = 1
	}
	if cfg.Messaging.Workers.PollInterval <= 0 {
		cfg.Messaging.Workers.PollInterval = time.Second
	}

	if cfg.Delivery.SFTPEnabled && (cfg.Delivery.SFTPAddr == "" || cfg.Delivery.SFTPUser == "") {
		return fmt.Errorf("SFTP_HOST and SFTP_USER must be provided when SFTP_ENABLED")
	}

	obs := &cfg.Observability
	obs.LogLevel = strings.ToLower(strings.TrimSpace(obs.LogLevel))
	if obs.LogLevel == "" {
		obs.LogLevel = "info"
	}
	obs.LogEncoding = strings.ToLower(strings.TrimSpace(obs.LogEncoding))
	if obs.LogEncoding == "" {
		obs.LogEncoding = "json"
	}
	obs.TraceExporter = strings.ToLower(strings.TrimSpace(obs.TraceExporter))
	if obs.TraceExporter == "" {
		obs.TraceExporter = "stdout"
	}
	if obs.TraceSampleRatio < 0 || obs.TraceSampleRatio > 1 {
		return fmt.Errorf("invalid OBS_TRACE_SAMPLE_RATIO: %v", obs.TraceSampleRatio)
	}
	obs.MetricsExporter = strings.ToLower(strings.TrimSpace(obs.MetricsExporter))
	if obs.MetricsExporter == "" {
		obs.MetricsExporter = "prometheus"
	}
	if obs.PrometheusPath == "" {
		obs.PrometheusPath = "/metrics"
	} else if !strings.HasPrefix(obs.PrometheusPath, "/") {
		obs.PrometheusPath = "/" + obs.PrometheusPath
	}

	return nil
}

// Validate checks the pipeline knobs; callers overriding values from flags
// should validate again.
func (p Pipeline) Validate() error {
	if p.Workers <= 0 {
		return fmt.Errorf("invalid PIPELINE_WORKERS: %d", p.Workers)
	}
	if p.ChunkDays <= 0 {
		return fmt.Errorf("invalid PIPELINE_CHUNK_DAYS: %d", p.ChunkDays)
	}
	if p.BlockSize <= 0 || p.BlockSize > MaxBlockSize {
		return fmt.Errorf("PIPELINE_BLOCK_SIZE must be between 1 and %d, got %d", MaxBlockSize, p.BlockSize)
	}
	if p.HistoryTablePrefix == "" {
		return fmt.Errorf("missing HISTORY_TABLE_PREFIX")
	}
	if p.HistoryPartitions <= 0 {
		return fmt.Errorf("invalid HISTORY_PARTITIONS: %d", p.HistoryPartitions)
	}
	if p.LegalEntityTaxID == "" {
		return fmt.Errorf("missing PIPELINE_LEGAL_ENTITY_TAX_ID")
	}
	return nil
}

// HistoryTables lists the partitioned history tables in partition order.
func (p Pipeline) HistoryTables() []string {
	tables := make([]string, 0, p.HistoryPartitions)
	for i := 1; i <= p.HistoryPartitions; i++ {
		tables = append(tables, fmt.Sprintf("%s%d", p.HistoryTablePrefix, i))
	}
	return tables
}
