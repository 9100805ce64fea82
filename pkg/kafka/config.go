package kafka

import "time"

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration. Zero values fall back to the
// defaults in NewProducer.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	Async        bool

	// KeyPartitioning routes equal keys to one partition.
	KeyPartitioning bool
}

// WithBrokers sets Kafka brokers.
func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Brokers = brokers
	}
}

// WithCompression sets the codec: gzip, snappy, lz4 or zstd.
func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) {
		if compression != "" {
			c.Compression = compression
		}
	}
}

// WithRequiredAcks sets required acknowledgements (-1 = all in-sync replicas).
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
	}
}

// WithBatching bounds a write batch by message count, bytes and linger time.
// Non-positive values keep the defaults.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if bytes > 0 {
			c.BatchBytes = bytes
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
	}
}

// WithDelivery sets writer attempts and per-request timeouts. Async writes
// return before the broker acknowledges them.
func WithDelivery(maxAttempts int, write, read time.Duration, async bool) ProducerOption {
	return func(c *ProducerConfig) {
		if maxAttempts > 0 {
			c.MaxAttempts = maxAttempts
		}
		if write > 0 {
			c.WriteTimeout = write
		}
		if read > 0 {
			c.ReadTimeout = read
		}
		c.Async = async
	}
}

// WithKeyPartitioning hashes message keys to partitions; scored events use
// their event ID as key.
func WithKeyPartitioning(enabled bool) ProducerOption {
	return func(c *ProducerConfig) {
		c.KeyPartitioning = enabled
	}
}
