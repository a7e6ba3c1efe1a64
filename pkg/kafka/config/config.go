package kafka_config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"cuworking/pkg/logger"

	"github.com/segmentio/kafka-go"
)

var (
	compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}
	acks         = []int{-1, 0, 1}
)

type Config struct {
	Brokers                []string
	AllowAutoTopicCreation bool
	EnableMiddleware       bool

	Producer ProducerConfig
	Consumer ConsumerConfig
}

type ProducerConfig struct {
	MaxAttempts  int
	BatchTimeout time.Duration
	RequireAcks  int    // -1 all replicas, 0 none, 1 leader
	Compression  string // one of compressions
}

type ConsumerConfig struct {
	StartFrom         string // StartFromOldest or StartFromNewest
	MaxBytes          int
	MaxWait           time.Duration
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	RebalanceTimeout  time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
}

// StartOffset translates StartFrom into kafka-go's reader offset. It only
// applies to a group without committed offsets.
func (c ConsumerConfig) StartOffset() int64 {
	if c.StartFrom == StartFromNewest {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

// Load reads the KAFKA_* environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Brokers:                splitBrokers(getEnvStr(EnvKafkaBrokers, DefaultKafkaBrokers)),
		AllowAutoTopicCreation: getEnvBool(EnvKafkaAllowAutoTopicCreation, DefaultAllowAutoTopicCreation),
		EnableMiddleware:       getEnvBool(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
		Producer: ProducerConfig{
			MaxAttempts:  getEnvInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
			BatchTimeout: getEnvDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
			RequireAcks:  getEnvInt(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
			Compression:  strings.ToLower(getEnvStr(EnvKafkaProducerCompression, DefaultProducerCompression)),
		},
		Consumer: ConsumerConfig{
			StartFrom:         strings.ToLower(getEnvStr(EnvKafkaConsumerStartFrom, DefaultConsumerStartFrom)),
			MaxBytes:          getEnvInt(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes),
			MaxWait:           getEnvDuration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
			HeartbeatInterval: getEnvDuration(EnvKafkaConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
			SessionTimeout:    getEnvDuration(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout),
			RebalanceTimeout:  getEnvDuration(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
			MaxRetries:        getEnvInt(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries),
			RetryBackoff:      getEnvDuration(EnvKafkaConsumerRetryBackoff, DefaultConsumerRetryBackoff),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	return cfg, nil
}

func splitBrokers(value string) []string {
	brokers := strings.Split(value, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}
	return brokers
}

func (cfg *Config) Validate() error {
	var errors []string

	if len(cfg.Brokers) == 0 {
		errors = append(errors, "At least one Kafka broker is required")
	}
	for i, broker := range cfg.Brokers {
		if broker == "" {
			errors = append(errors, fmt.Sprintf("Broker %d cannot be empty", i))
		}
	}

	if !slices.Contains(compressions, cfg.Producer.Compression) {
		errors = append(errors, fmt.Sprintf("Producer.Compression must be one of %v, got: %s", compressions, cfg.Producer.Compression))
	}
	if !slices.Contains(acks, cfg.Producer.RequireAcks) {
		errors = append(errors, fmt.Sprintf("Producer.RequireAcks must be one of %v, got: %d", acks, cfg.Producer.RequireAcks))
	}
	if cfg.Consumer.StartFrom != StartFromOldest && cfg.Consumer.StartFrom != StartFromNewest {
		errors = append(errors, fmt.Sprintf("Consumer.StartFrom must be %q or %q, got: %q", StartFromOldest, StartFromNewest, cfg.Consumer.StartFrom))
	}

	positives := []struct {
		name  string
		value int64
	}{
		{"Producer.MaxAttempts", int64(cfg.Producer.MaxAttempts)},
		{"Producer.BatchTimeout", int64(cfg.Producer.BatchTimeout)},
		{"Consumer.MaxBytes", int64(cfg.Consumer.MaxBytes)},
		{"Consumer.MaxWait", int64(cfg.Consumer.MaxWait)},
		{"Consumer.HeartbeatInterval", int64(cfg.Consumer.HeartbeatInterval)},
		{"Consumer.SessionTimeout", int64(cfg.Consumer.SessionTimeout)},
		{"Consumer.RebalanceTimeout", int64(cfg.Consumer.RebalanceTimeout)},
	}
	for _, p := range positives {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive", p.name))
		}
	}

	if cfg.Consumer.HeartbeatInterval >= cfg.Consumer.SessionTimeout {
		errors = append(errors, "Consumer.HeartbeatInterval must be shorter than Consumer.SessionTimeout")
	}
	if cfg.Consumer.MaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("Consumer.MaxRetries cannot be negative, got: %d", cfg.Consumer.MaxRetries))
	}
	if cfg.Consumer.RetryBackoff < 0 {
		errors = append(errors, fmt.Sprintf("Consumer.RetryBackoff cannot be negative, got: %s", cfg.Consumer.RetryBackoff))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}
	return nil
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded successfully",
		"brokers", cfg.Brokers,
		"allow_auto_topic_creation", cfg.AllowAutoTopicCreation,
		"enable_middleware", cfg.EnableMiddleware,
		"producer_require_acks", cfg.Producer.RequireAcks,
		"producer_compression", cfg.Producer.Compression,
		"producer_max_attempts", cfg.Producer.MaxAttempts,
		"consumer_start_from", cfg.Consumer.StartFrom,
		"consumer_max_retries", cfg.Consumer.MaxRetries,
		"consumer_retry_backoff", cfg.Consumer.RetryBackoff,
	)
}

func getEnvStr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
