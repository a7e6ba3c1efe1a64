package kafka_config

import "time"

const (
	StartFromOldest = "oldest"
	StartFromNewest = "newest"
)

const (
	DefaultKafkaBrokers           = "localhost:9092"
	DefaultAllowAutoTopicCreation = false
	DefaultEnableMiddleware       = true

	// Reservation events are small and must not be lost, so every replica
	// acknowledges and the batch window stays short.
	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1
	DefaultProducerCompression  = "snappy"

	// A new consumer group reads the topic from the start; the notifier
	// dedups by event id.
	DefaultConsumerStartFrom         = StartFromOldest
	DefaultConsumerMaxBytes          = 1 << 20
	DefaultConsumerMaxWait           = 500 * time.Millisecond
	DefaultConsumerHeartbeatInterval = 3 * time.Second
	DefaultConsumerSessionTimeout    = 10 * time.Second
	DefaultConsumerRebalanceTimeout  = 30 * time.Second
	DefaultConsumerMaxRetries        = 3
	DefaultConsumerRetryBackoff      = 500 * time.Millisecond
)
