package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds shared service configuration sourced from environment variables.
type Config struct {
	CollectorAddr         string
	QueryAddr             string
	AggregatorMetricsAddr string
	KafkaBrokers          []string
	KafkaTopicBehavior    string
	ConsumerGroup         string
	ClickHouseDSN         string
	DrainInterval         time.Duration
	ApplyTimeout          time.Duration
	HMACSecret            string
	JWTSecret             string
	CORSAllowOrigins      []string
	BotUserAgents         []string
	Shops                 map[string]ShopCredential
	ShopsConfigPath       string
}

// ShopCredential defines API key / HMAC secrets for a shop emitting events.
type ShopCredential struct {
	APIKey     string `yaml:"api_key"`
	HMACSecret string `yaml:"hmac_secret"`
}

type shopsFile struct {
	Shops map[string]ShopCredential `yaml:"shops"`
}

// Load parses process environment variables into a Config struct, applying
// defaults when unset. A .env file in the working directory is honored when
// present.
func Load() (Config, error) {
	_ = godotenv.Load()

	path := getenv("SHOPS_CONFIG_PATH", "config/shops.dev.yml")
	shops, err := loadShopsConfig(path)
	if err != nil {
		return Config{}, fmt.Errorf("load shops config: %w", err)
	}

	cfg := Config{
		CollectorAddr:         getenv("COLLECTOR_ADDR", ":8080"),
		QueryAddr:             getenv("QUERY_ADDR", ":8081"),
		AggregatorMetricsAddr: getenv("AGGREGATOR_METRICS_ADDR", ":9100"),
		KafkaBrokers:          splitAndTrim(getenv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicBehavior:    getenv("KAFKA_TOPIC_BEHAVIOR", "events.behavior"),
		ConsumerGroup:         getenv("KAFKA_CONSUMER_GROUP", "aggregator-group"),
		ClickHouseDSN:         getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000?database=default&dial_timeout=5s&compress=true"),
		DrainInterval:         durationDefault("DRAIN_INTERVAL_MS", 3000),
		ApplyTimeout:          durationDefault("APPLY_TIMEOUT_MS", 10000),
		HMACSecret:            os.Getenv("HMAC_SECRET"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		CORSAllowOrigins:      splitAndTrim(getenv("CORS_ALLOW_ORIGINS", "*")),
		BotUserAgents:         splitAndTrim(getenv("BOT_UA_DENYLIST", "bot,crawler,spider")),
		Shops:                 shops,
		ShopsConfigPath:       path,
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func atoiDefault(key string, def int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func durationDefault(key string, defMS int) time.Duration {
	return time.Duration(atoiDefault(key, defMS)) * time.Millisecond
}

func loadShopsConfig(path string) (map[string]ShopCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file shopsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Shops) == 0 {
		return nil, fmt.Errorf("no shops configured in %s", path)
	}
	out := make(map[string]ShopCredential, len(file.Shops))
	for id, cred := range file.Shops {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if cred.APIKey == "" {
			return nil, fmt.Errorf("shop %s missing api_key in %s", id, path)
		}
		out[id] = cred
	}
	return out, nil
}
