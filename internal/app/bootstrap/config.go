package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/viralforge/deal-agents/internal/adapters/oracle"
	"github.com/viralforge/deal-agents/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. Empty infrastructure URLs
// select the in-process adapters.
type Config struct {
	ServiceID   string
	Environment string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	MaxDBConns                 int32
	KafkaConsumerGroup         string
	KafkaTopicNegotiationClose string
	KafkaTopicSettlementClose  string
	KafkaTopicContentSubmitted string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	ConsumerPollInterval time.Duration

	OracleProvider          string
	OracleBaseURL           string
	OracleAPIKey            string
	OracleModel             string
	OracleTimeout           time.Duration
	OracleRequestsPerSecond float64
	OracleBurst             int

	Network         string
	WalletAddress   string
	PrivateKey      string
	RPCURLs         map[string]string
	TransferTimeout time.Duration

	MaxRounds     int
	LockTTL       time.Duration
	ActivityLimit int

	JWTSecret string

	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceSampleRate float64
}

type configFile struct {
	Service struct {
		ID          string `yaml:"id"`
		Environment string `yaml:"environment"`
		HTTPPort    int    `yaml:"http_port"`
		GRPCPort    int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL                string   `yaml:"postgres_url"`
		RedisURL                   string   `yaml:"redis_url"`
		KafkaBrokers               []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup         string   `yaml:"kafka_consumer_group"`
		KafkaTopicNegotiationClose string   `yaml:"kafka_topic_negotiation_closed"`
		KafkaTopicSettlementClose  string   `yaml:"kafka_topic_settlement_closed"`
		KafkaTopicContentSubmitted string   `yaml:"kafka_topic_content_submitted"`
		OTLPEndpoint               string   `yaml:"otlp_endpoint"`
	} `yaml:"dependencies"`
	Oracle struct {
		Provider          string  `yaml:"provider"`
		BaseURL           string  `yaml:"base_url"`
		Model             string  `yaml:"model"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"oracle"`
	Settlement struct {
		Network                string            `yaml:"network"`
		WalletAddress          string            `yaml:"wallet_address"`
		RPCURLs                map[string]string `yaml:"rpc_urls"`
		TransferTimeoutSeconds int               `yaml:"transfer_timeout_seconds"`
	} `yaml:"settlement"`
	Negotiation struct {
		MaxRounds int `yaml:"max_rounds"`
	} `yaml:"negotiation"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                  "deal-agents",
		Environment:                "development",
		HTTPPort:                   8080,
		GRPCPort:                   9090,
		MaxDBConns:                 20,
		KafkaConsumerGroup:         "deal-agents",
		KafkaTopicNegotiationClose: "deal.negotiation_closed",
		KafkaTopicSettlementClose:  "deal.settlement_closed",
		KafkaTopicContentSubmitted: "deal.content_submitted",
		OutboxPollInterval:         2 * time.Second,
		OutboxBatchSize:            100,
		ConsumerPollInterval:       2 * time.Second,
		OracleBaseURL:              defaultOpenAIBaseURL,
		OracleModel:                defaultOpenAIModel,
		OracleTimeout:              60 * time.Second,
		Network:                    "base-sepolia",
		RPCURLs:                    map[string]string{},
		TransferTimeout:            120 * time.Second,
		MaxRounds:                  5,
		LockTTL:                    10 * time.Minute,
		ActivityLimit:              20,
		TraceSampleRate:            1,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.Environment != "" {
			cfg.Environment = f.Service.Environment
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
		}
		if f.Dependencies.KafkaTopicNegotiationClose != "" {
			cfg.KafkaTopicNegotiationClose = f.Dependencies.KafkaTopicNegotiationClose
		}
		if f.Dependencies.KafkaTopicSettlementClose != "" {
			cfg.KafkaTopicSettlementClose = f.Dependencies.KafkaTopicSettlementClose
		}
		if f.Dependencies.KafkaTopicContentSubmitted != "" {
			cfg.KafkaTopicContentSubmitted = f.Dependencies.KafkaTopicContentSubmitted
		}
		cfg.OTLPEndpoint = f.Dependencies.OTLPEndpoint
		if f.Oracle.Provider != "" {
			cfg.OracleProvider = f.Oracle.Provider
		}
		if f.Oracle.BaseURL != "" {
			cfg.OracleBaseURL = f.Oracle.BaseURL
		}
		if f.Oracle.Model != "" {
			cfg.OracleModel = f.Oracle.Model
		}
		if f.Oracle.TimeoutSeconds > 0 {
			cfg.OracleTimeout = time.Duration(f.Oracle.TimeoutSeconds) * time.Second
		}
		if f.Oracle.RequestsPerSecond > 0 {
			cfg.OracleRequestsPerSecond = f.Oracle.RequestsPerSecond
		}
		if f.Oracle.Burst > 0 {
			cfg.OracleBurst = f.Oracle.Burst
		}
		if f.Settlement.Network != "" {
			cfg.Network = f.Settlement.Network
		}
		if f.Settlement.WalletAddress != "" {
			cfg.WalletAddress = f.Settlement.WalletAddress
		}
		for network, url := range f.Settlement.RPCURLs {
			if strings.TrimSpace(url) != "" {
				cfg.RPCURLs[network] = strings.TrimSpace(url)
			}
		}
		if f.Settlement.TransferTimeoutSeconds > 0 {
			cfg.TransferTimeout = time.Duration(f.Settlement.TransferTimeoutSeconds) * time.Second
		}
		if f.Negotiation.MaxRounds > 0 {
			cfg.MaxRounds = f.Negotiation.MaxRounds
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.Environment = envOrDefault("APP_ENV", cfg.Environment)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicNegotiationClose = envOrDefault("KAFKA_TOPIC_NEGOTIATION_CLOSED", cfg.KafkaTopicNegotiationClose)
	cfg.KafkaTopicSettlementClose = envOrDefault("KAFKA_TOPIC_SETTLEMENT_CLOSED", cfg.KafkaTopicSettlementClose)
	cfg.KafkaTopicContentSubmitted = envOrDefault("KAFKA_TOPIC_CONTENT_SUBMITTED", cfg.KafkaTopicContentSubmitted)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.OracleBaseURL = envOrDefault("ORACLE_BASE_URL", cfg.OracleBaseURL)
	cfg.OracleAPIKey = envOrDefault("ORACLE_API_KEY", envOrDefault("OPENAI_API_KEY", cfg.OracleAPIKey))
	cfg.OracleModel = envOrDefault("ORACLE_MODEL", cfg.OracleModel)
	cfg.OracleTimeout = time.Duration(envInt("ORACLE_TIMEOUT_SECONDS", int(cfg.OracleTimeout.Seconds()))) * time.Second
	cfg.OracleRequestsPerSecond = envFloat("ORACLE_REQUESTS_PER_SECOND", cfg.OracleRequestsPerSecond)
	cfg.OracleBurst = envInt("ORACLE_BURST", cfg.OracleBurst)
	cfg.OracleProvider = strings.ToLower(strings.TrimSpace(envOrDefault("ORACLE_PROVIDER", cfg.OracleProvider)))
	resolveOracleProvider(&cfg)
	cfg.Network = envOrDefault("X402_NETWORK", cfg.Network)
	cfg.WalletAddress = envOrDefault("X402_WALLET_ADDRESS", cfg.WalletAddress)
	cfg.PrivateKey = envOrDefault("X402_PRIVATE_KEY", cfg.PrivateKey)
	if rpc := strings.TrimSpace(os.Getenv("X402_RPC_URL")); rpc != "" {
		cfg.RPCURLs[cfg.Network] = rpc
	}
	cfg.TransferTimeout = time.Duration(envInt("TRANSFER_TIMEOUT_SECONDS", int(cfg.TransferTimeout.Seconds()))) * time.Second
	cfg.MaxRounds = envInt("NEGOTIATION_MAX_ROUNDS", cfg.MaxRounds)
	cfg.LockTTL = time.Duration(envInt("RUN_LOCK_TTL_SECONDS", int(cfg.LockTTL.Seconds()))) * time.Second
	cfg.ActivityLimit = envInt("ACTIVITY_LIMIT", cfg.ActivityLimit)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.OTLPEndpoint = envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.OTLPInsecure = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTLPInsecure)
	cfg.TraceSampleRate = envFloat("OTEL_TRACES_SAMPLER_ARG", cfg.TraceSampleRate)

	if cfg.HTTPPort <= 0 || cfg.GRPCPort <= 0 {
		return Config{}, fmt.Errorf("invalid ports http=%d grpc=%d", cfg.HTTPPort, cfg.GRPCPort)
	}
	if cfg.MaxRounds <= 0 || cfg.MaxRounds > domain.MaxRoundsLimit {
		return Config{}, fmt.Errorf("invalid NEGOTIATION_MAX_ROUNDS %d, must be 1..%d", cfg.MaxRounds, domain.MaxRoundsLimit)
	}
	if cfg.OracleProvider != oracle.ProviderOpenAI && cfg.OracleProvider != oracle.ProviderAnthropic {
		return Config{}, fmt.Errorf("invalid ORACLE_PROVIDER %q", cfg.OracleProvider)
	}
	return cfg, nil
}

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o"
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
)

// resolveOracleProvider picks Anthropic when only ANTHROPIC_API_KEY is set,
// and swaps untouched OpenAI defaults for Anthropic ones.
func resolveOracleProvider(cfg *Config) {
	anthropicKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if cfg.OracleProvider == "" && cfg.OracleAPIKey == "" && anthropicKey != "" {
		cfg.OracleProvider = oracle.ProviderAnthropic
	}
	if cfg.OracleProvider == "" {
		cfg.OracleProvider = oracle.ProviderOpenAI
	}
	if cfg.OracleProvider != oracle.ProviderAnthropic {
		return
	}
	if cfg.OracleAPIKey == "" {
		cfg.OracleAPIKey = anthropicKey
	}
	if cfg.OracleBaseURL == defaultOpenAIBaseURL {
		cfg.OracleBaseURL = defaultAnthropicBaseURL
	}
	if cfg.OracleModel == defaultOpenAIModel {
		cfg.OracleModel = defaultAnthropicModel
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
