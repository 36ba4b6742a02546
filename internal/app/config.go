package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/contractlens-backend/internal/data/db"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/jobs/worker"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis"
	"github.com/yungbote/contractlens-backend/internal/observability"
	"github.com/yungbote/contractlens-backend/internal/platform/envutil"
	"github.com/yungbote/contractlens-backend/internal/platform/gcp"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/realtime/bus"
)

const defaultMaxUploadBytes = 50 << 20

// fileConfig is the optional CONFIG_FILE document. Its values are defaults;
// environment variables win.
type fileConfig struct {
	Server struct {
		Port           string   `yaml:"port"`
		RunServer      *bool    `yaml:"run_server"`
		RunWorker      *bool    `yaml:"run_worker"`
		MaxUploadBytes int64    `yaml:"max_upload_bytes"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Database struct {
		Driver     string `yaml:"driver"`
		DSN        string `yaml:"dsn"`
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		User       string `yaml:"user"`
		Name       string `yaml:"name"`
		SSLMode    string `yaml:"sslmode"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		Addr    string `yaml:"addr"`
		Channel string `yaml:"channel"`
	} `yaml:"redis"`
	Analysis struct {
		RiskThreshold string `yaml:"risk_threshold"`
	} `yaml:"analysis"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Otel struct {
		Enabled     *bool  `yaml:"enabled"`
		ServiceName string `yaml:"service_name"`
		Environment string `yaml:"environment"`
		Endpoint    string `yaml:"endpoint"`
	} `yaml:"otel"`
}

type Config struct {
	Port      string
	RunServer bool
	RunWorker bool

	MaxUploadBytes       int64
	AllowedOrigins       []string
	DefaultRiskThreshold contracts.RiskLevel

	DB         db.Config
	Storage    gcp.ObjectStorageConfig
	DocumentAI gcp.DocumentAIConfig
	Redis      bus.RedisConfig
	Worker     worker.Config

	MetricsEnabled bool
	MetricsScrape  time.Duration
	Otel           observability.OtelConfig
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if strings.TrimSpace(path) == "" {
		return fc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func orString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func LoadConfig(log *logger.Logger) (Config, error) {
	fc, err := loadFileConfig(envutil.String("CONFIG_FILE", ""))
	if err != nil {
		return Config{}, err
	}

	threshold, err := analysis.ParseThreshold(
		envutil.String("DEFAULT_RISK_THRESHOLD", fc.Analysis.RiskThreshold),
		analysis.DefaultRiskThreshold,
	)
	if err != nil {
		return Config{}, fmt.Errorf("DEFAULT_RISK_THRESHOLD: %w", err)
	}

	storage, err := gcp.ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return Config{}, err
	}

	origins := splitList(envutil.String("CORS_ALLOWED_ORIGINS", ""))
	if len(origins) == 0 {
		origins = fc.Server.AllowedOrigins
	}

	maxUpload := fc.Server.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	cfg := Config{
		Port:      envutil.String("PORT", orString(fc.Server.Port, "8080")),
		RunServer: envutil.Bool("RUN_SERVER", boolOr(fc.Server.RunServer, true)),
		RunWorker: envutil.Bool("RUN_WORKER", boolOr(fc.Server.RunWorker, true)),

		MaxUploadBytes:       envutil.Int64("MAX_UPLOAD_BYTES", maxUpload),
		AllowedOrigins:       origins,
		DefaultRiskThreshold: threshold,

		DB: db.Config{
			Driver:       envutil.String("DB_DRIVER", orString(fc.Database.Driver, db.DriverPostgres)),
			DSN:          envutil.String("POSTGRES_DSN", fc.Database.DSN),
			Host:         envutil.String("POSTGRES_HOST", orString(fc.Database.Host, "localhost")),
			Port:         envutil.String("POSTGRES_PORT", orString(fc.Database.Port, "5432")),
			User:         envutil.String("POSTGRES_USER", orString(fc.Database.User, "postgres")),
			Password:     envutil.String("POSTGRES_PASSWORD", ""),
			Name:         envutil.String("POSTGRES_NAME", orString(fc.Database.Name, "contractlens")),
			SSLMode:      envutil.String("POSTGRES_SSLMODE", fc.Database.SSLMode),
			SQLitePath:   envutil.String("SQLITE_PATH", fc.Database.SQLitePath),
			MaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: envutil.Int("DB_MAX_IDLE_CONNS", 5),
		},
		Storage:    storage,
		DocumentAI: gcp.DocumentAIConfigFromEnv(),
		Redis: bus.RedisConfig{
			Addr:     envutil.String("REDIS_ADDR", fc.Redis.Addr),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
			Channel:  envutil.String("REDIS_CHANNEL", fc.Redis.Channel),
		},
		Worker: worker.ConfigFromEnv(),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", boolOr(fc.Metrics.Enabled, true)),
		MetricsScrape:  envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", boolOr(fc.Otel.Enabled, false)),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", orString(fc.Otel.ServiceName, "contractlens-api")),
			Environment: envutil.String("APP_ENV", orString(fc.Otel.Environment, "development")),
			Version:     envutil.String("APP_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", fc.Otel.Endpoint),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_TRACES_SAMPLER_RATIO", 1),
		},
	}
	if !cfg.RunServer && !cfg.RunWorker {
		return Config{}, fmt.Errorf("RUN_SERVER and RUN_WORKER are both false")
	}

	log.Info("config loaded",
		"db_driver", cfg.DB.Driver,
		"storage_mode", cfg.Storage.Mode,
		"document_ai", cfg.DocumentAI.Enabled(),
		"redis", cfg.Redis.Addr != "",
		"run_server", cfg.RunServer,
		"run_worker", cfg.RunWorker,
		"default_risk_threshold", cfg.DefaultRiskThreshold,
	)
	return cfg, nil
}
