package source

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/config"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/errors"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
)

// KafkaSource consumes JSON ticks from a Kafka topic.
type KafkaSource struct {
	kafkaReader *kafka.Reader
	emit        EmitFunc
	logger      logger.Interface
}

// NewKafkaSource creates a Kafka tick feed.
func NewKafkaSource(cfg config.KafkaFeedConfig, emit EmitFunc, log logger.Interface) *KafkaSource {
	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return &KafkaSource{
		kafkaReader: kafkaReader,
		emit:        emit,
		logger:      log,
	}
}

// Run reads messages until ctx is done, then closes the reader.
func (s *KafkaSource) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting kafka tick feed", logger.Field{
		Key:   "action",
		Value: "kafka_feed_start",
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "context done", logger.Field{
				Key:   "action",
				Value: "kafka_feed_stop",
			})
			return s.kafkaReader.Close()
		default:
			msg, err := s.kafkaReader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return s.kafkaReader.Close()
				}
				s.logger.ErrorContext(ctx, errors.NewErrorDetails(err.Error(), string(errors.KafkaReadError), "read"), logger.Field{
					Key:   "action",
					Value: "read_message",
				})
				continue
			}

			var tick tickv1.Tick
			if err := json.Unmarshal(msg.Value, &tick); err != nil {
				s.logger.ErrorContext(ctx, errors.TracerFromError(err), logger.Field{
					Key:   "action",
					Value: "parse_tick",
				})
				continue
			}
			s.emit(tick)
		}
	}
}
