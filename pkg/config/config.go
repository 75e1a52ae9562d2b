package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/redis"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/timescale"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig        `envPrefix:"APP_"`
	Timescale timescale.Config `envPrefix:"TIMESCALE_"`
	Feed      FeedConfig       `envPrefix:"FEED_"`
	RedisFeed RedisFeedConfig  `envPrefix:"REDIS_"`
	KafkaFeed KafkaFeedConfig  `envPrefix:"KAFKA_"`
	Pipeline  PipelineConfig   `envPrefix:"PIPELINE_"`
}

// AppConfig represents the application configuration.
type AppConfig struct {
	Name        string `env:"NAME" envDefault:"fx-ohlc-microservice"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// FeedConfig selects and tunes the tick source.
type FeedConfig struct {
	// Mode is one of: simulator, redis, kafka, none.
	Mode         string        `env:"MODE" envDefault:"simulator"`
	Symbol       string        `env:"SYMBOL" envDefault:"EURUSD"`
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	StartPrice   float64       `env:"START_PRICE" envDefault:"1.10"`
	MaxStep      float64       `env:"MAX_STEP" envDefault:"0.0005"`
	MinPrice     float64       `env:"MIN_PRICE" envDefault:"0.5"`
	MaxPrice     float64       `env:"MAX_PRICE" envDefault:"2.0"`
}

// RedisFeedConfig configures the Redis pub/sub tick feed.
type RedisFeedConfig struct {
	redis.Config
	Channel string `env:"CHANNEL" envDefault:"eurusd_ticks"`
}

// KafkaFeedConfig configures the Kafka tick feed.
type KafkaFeedConfig struct {
	Brokers       []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic         string   `env:"TOPIC" envDefault:"ticks"`
	ConsumerGroup string   `env:"CONSUMER_GROUP" envDefault:"fx-ohlc-microservice"`
}

// PipelineConfig tunes the aggregation and broadcast pipeline. Faster
// granularities refresh more often because their buckets close sooner.
type PipelineConfig struct {
	DayStartHour int `env:"DAY_START_HOUR" envDefault:"22"`

	BusBuffer       int `env:"BUS_BUFFER" envDefault:"1024"`
	SubscriberQueue int `env:"SUBSCRIBER_QUEUE" envDefault:"256"`

	LivenessTimeout time.Duration `env:"LIVENESS_TIMEOUT" envDefault:"60s"`

	PersistMaxAttempts int           `env:"PERSIST_MAX_ATTEMPTS" envDefault:"5"`
	PersistBackoff     time.Duration `env:"PERSIST_BACKOFF" envDefault:"100ms"`

	MinuteRefresh    time.Duration `env:"MINUTE_REFRESH" envDefault:"5s"`
	HourRefresh      time.Duration `env:"HOUR_REFRESH" envDefault:"30s"`
	DayRefresh       time.Duration `env:"DAY_REFRESH" envDefault:"5m"`
	CustomDayRefresh time.Duration `env:"CUSTOM_DAY_REFRESH" envDefault:"5m"`
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
