package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	NodeName      string
	ServiceName   string
	KeySeed       string
	NotaryName    string
	NotaryKeySeed string

	Storage     string
	DatabaseURL string

	// NotaryDatabaseURL holds the notary's commit log. Every node of a
	// network must point at the same one.
	NotaryDatabaseURL string
	RedisAddr         string

	KafkaBrokers      []string
	KafkaTopic        string
	KafkaAuditEnabled bool

	HTTPAddr    string
	GRPCAddr    string
	ObsHTTPAddr string

	FlowTimeout       time.Duration
	FlowRetryInterval time.Duration

	JWTSecret         string
	JWTIssuer         string
	JWTAudience       string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	TracingEnabled bool
	JaegerURL      string
}

// Load reads the node configuration from the environment, after loading a
// .env file from the working directory if one exists.
func Load() *Config {
	_ = godotenv.Load()

	node := mustEnv("NODE_NAME")
	return &Config{
		NodeName:      node,
		ServiceName:   getEnv("SERVICE_NAME", "ledgermsg-"+strings.ToLower(node)),
		KeySeed:       getEnv("KEY_SEED", node),
		NotaryName:    getEnv("NOTARY_NAME", "Notary"),
		NotaryKeySeed: getEnv("NOTARY_KEY_SEED", "notary"),

		Storage:           getEnv("STORAGE", StorageMemory),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		NotaryDatabaseURL: getEnv("NOTARY_DATABASE_URL", getEnv("DATABASE_URL", "")),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers:      getEnvSlice("KAFKA_BROKERS", nil),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "ledger-events"),
		KafkaAuditEnabled: getEnvBool("KAFKA_AUDIT_ENABLED", false),

		HTTPAddr:    fixPort(getEnv("HTTP_ADDR", ":8080")),
		GRPCAddr:    fixPort(getEnv("GRPC_ADDR", ":50051")),
		ObsHTTPAddr: fixPort(getEnv("OBS_HTTP_ADDR", ":8090")),

		FlowTimeout:       getEnvDuration("FLOW_TIMEOUT", 30*time.Second),
		FlowRetryInterval: getEnvDuration("FLOW_RETRY_INTERVAL", 2*time.Second),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTIssuer:         getEnv("JWT_ISSUER", "ledgermsg"),
		JWTAudience:       getEnv("JWT_AUDIENCE", "ledgerctl"),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		JaegerURL:      getEnv("JAEGER_URL", "http://localhost:14268/api/traces"),
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE %q: want %s or %s", c.Storage, StorageMemory, StoragePostgres)
	}
	if c.NodeName == c.NotaryName {
		return fmt.Errorf("NODE_NAME must differ from NOTARY_NAME")
	}
	if c.FlowTimeout <= 0 {
		return fmt.Errorf("FLOW_TIMEOUT must be positive")
	}
	if c.FlowRetryInterval <= 0 {
		return fmt.Errorf("FLOW_RETRY_INTERVAL must be positive")
	}
	if c.KafkaAuditEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_AUDIT_ENABLED needs KAFKA_BROKERS")
	}
	return nil
}

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required env: %s", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true"
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getEnvSlice(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
