package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	HTTPPort string

	APIBaseURL string
	APIToken   string

	StorageDriver   string
	SQLitePath      string
	RedisAddr       string
	RedisPassword   string
	MongoURI        string
	MongoDBName     string
	CartSnapshotTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	GatewayScriptURL string
	GatewayTimeout   time.Duration

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	StoreName string
	LogLevel  string
	LogJSON   bool
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	getEnv := func(key, defaultValue string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	c := Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:5000/api"),
		APIToken:         getEnv("API_TOKEN", ""),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", StorageSQLite)),
		SQLitePath:       getEnv("SQLITE_PATH", "storefront.db"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:      getEnv("MONGO_DB_NAME", "storefront"),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "storefront-checkout"),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "storefront-"+uuid.NewString()),
		GatewayScriptURL: getEnv("GATEWAY_SCRIPT_URL", "https://checkout.razorpay.com/v1/checkout.js"),
		StoreName:        getEnv("STORE_NAME", "ALGUD"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, b)
			}
		}
	}

	var err error
	if c.LogJSON, err = parseBool(getEnv("LOG_JSON", "false")); err != nil {
		return Config{}, fmt.Errorf("LOG_JSON: %w", err)
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"CART_SNAPSHOT_TTL", "0", &c.CartSnapshotTTL},
		{"GATEWAY_TIMEOUT", "15m", &c.GatewayTimeout},
		{"REQUEST_TIMEOUT", "15s", &c.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", "10s", &c.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return Config{}, fmt.Errorf("%s: must not be negative", d.key)
		}
		*d.dest = v
	}

	switch c.StorageDriver {
	case StorageSQLite, StorageRedis, StorageMongo, StorageMemory:
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER: unknown driver %q", c.StorageDriver)
	}
	return c, nil
}

func parseBool(v string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(v))
}
