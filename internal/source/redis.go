package source

import (
	"context"
	"encoding/json"

	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/errors"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/redis"
)

// RedisSource consumes JSON ticks published on a Redis pub/sub channel.
type RedisSource struct {
	client  redis.Client
	channel string
	emit    EmitFunc
	logger  logger.Interface
}

// NewRedisSource creates a Redis pub/sub tick feed.
func NewRedisSource(client redis.Client, channel string, emit EmitFunc, log logger.Interface) *RedisSource {
	return &RedisSource{
		client:  client,
		channel: channel,
		emit:    emit,
		logger:  log,
	}
}

// Run subscribes to the configured channel and emits every parseable tick
// until ctx is done. A dropped connection triggers the client's reconnect
// loop and a fresh subscription.
func (s *RedisSource) Run(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return err
	}
	defer s.client.Disconnect(context.Background())

	for {
		pubSub, err := s.client.Subscribe(ctx, s.channel)
		if err != nil {
			return err
		}

		s.logger.InfoContext(ctx, "subscribed to tick channel", logger.Field{
			Key:   "channel",
			Value: s.channel,
		})

		ch := pubSub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				pubSub.Close()
				return nil
			case msg, ok := <-ch:
				if !ok {
					// Connection lost; the subscription is dead.
					pubSub.Close()
					break receive
				}
				var tick tickv1.Tick
				if err := json.Unmarshal([]byte(msg.Payload), &tick); err != nil {
					s.logger.ErrorContext(ctx, errors.TracerFromError(err), logger.Field{
						Key:   "action",
						Value: "parse_tick",
					})
					continue
				}
				s.emit(tick)
			}
		}

		if !s.client.Reconnect(ctx) {
			if ctx.Err() != nil {
				return nil
			}
			return errors.NewErrorDetails("reconnect attempts exhausted", string(errors.RedisConnectionError), "reconnect")
		}
	}
}
