// Package config resolves every service setting once at start-up.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/joao-fontenele/scoutshop/internal/domain"
)

// Config is read by viper from the environment, optionally seeded from a
// .env file outside production.
type Config struct {
	AppEnv         string `mapstructure:"APP_ENV"`
	ServiceName    string `mapstructure:"SERVICE_NAME"`
	ServiceVersion string `mapstructure:"SERVICE_VERSION"`
	Port           string `mapstructure:"PORT"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	PostgresURL    string `mapstructure:"POSTGRES_URL"`
	DBSchema       string `mapstructure:"DB_SCHEMA"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	RedisAddr string        `mapstructure:"REDIS_ADDR"`
	CacheTTL  time.Duration `mapstructure:"CACHE_TTL"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	OrdersServiceURL  string `mapstructure:"ORDERS_SERVICE_URL"`
	CatalogServiceURL string `mapstructure:"CATALOG_SERVICE_URL"`
	EmailServiceURL   string `mapstructure:"EMAIL_SERVICE_URL"`
	PublicBaseURL     string `mapstructure:"PUBLIC_BASE_URL"`

	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	AdminPasswordHash string        `mapstructure:"ADMIN_PASSWORD_HASH"`
	AdminTokenTTL     time.Duration `mapstructure:"ADMIN_TOKEN_TTL"`

	S3Endpoint      string `mapstructure:"S3_ENDPOINT"`
	S3Region        string `mapstructure:"S3_REGION"`
	S3AccessKey     string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey     string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket        string `mapstructure:"S3_BUCKET"`
	S3PublicBaseURL string `mapstructure:"S3_PUBLIC_BASE_URL"`

	DeliveryMinUnitsDefault int    `mapstructure:"DELIVERY_MIN_UNITS_DEFAULT"`
	OrderCodePrefixDefault  string `mapstructure:"ORDER_CODE_PREFIX_DEFAULT"`
}

// Load builds the config of one service. defaultPort is used when PORT is unset.
func Load(serviceName, defaultPort string) (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so that Unmarshal sees it.
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVICE_NAME", serviceName)
	v.SetDefault("SERVICE_VERSION", "0.1.0")
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("DB_SCHEMA", "shop")
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_GROUP_ID", "notification-worker")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CACHE_TTL", 30*time.Second)

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	v.SetDefault("ORDERS_SERVICE_URL", "")
	v.SetDefault("CATALOG_SERVICE_URL", "")
	v.SetDefault("EMAIL_SERVICE_URL", "")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("ADMIN_TOKEN_TTL", 12*time.Hour)

	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_PUBLIC_BASE_URL", "")

	v.SetDefault("DELIVERY_MIN_UNITS_DEFAULT", domain.DefaultConfigDefaults.DeliveryMinUnits)
	v.SetDefault("ORDER_CODE_PREFIX_DEFAULT", domain.DefaultConfigDefaults.OrderCodePrefix)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Brokers splits KAFKA_BROKERS; nil when messaging is not configured.
func (c Config) Brokers() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c Config) EventConfigDefaults() domain.ConfigDefaults {
	return domain.ConfigDefaults{
		DeliveryMinUnits: c.DeliveryMinUnitsDefault,
		OrderCodePrefix:  c.OrderCodePrefixDefault,
	}
}

func (c Config) StorageEnabled() bool {
	return c.S3Bucket != "" && c.S3Endpoint != ""
}
