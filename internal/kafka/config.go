package kafka

import (
	"strings"

	"studysphere/internal/config"
)

// Config holds Kafka configuration
type Config struct {
	Brokers           string
	XPEventsTopic     string
	XPDLQTopic        string
	ConsumerGroup     string
	EnableIdempotence bool
	Acks              string
}

// ProducerConfig builds the producer side configuration of the API.
func ProducerConfig(cfg *config.APIConfig) *Config {
	return &Config{
		Brokers:           cfg.KafkaBrokers,
		XPEventsTopic:     cfg.XPEventsTopic,
		EnableIdempotence: true,
		Acks:              "all",
	}
}

// ConsumerConfig builds the consumer side configuration of the notifier.
func ConsumerConfig(cfg *config.NotifierConfig) *Config {
	return &Config{
		Brokers:           cfg.KafkaBrokers,
		XPEventsTopic:     cfg.Topic,
		XPDLQTopic:        cfg.DLQTopic,
		ConsumerGroup:     cfg.ConsumerGroup,
		EnableIdempotence: true,
		Acks:              "all",
	}
}

// GetBrokersList returns brokers as a slice
func (c *Config) GetBrokersList() []string {
	brokers := strings.Split(c.Brokers, ",")
	out := brokers[:0]
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
