// Package source provides the tick feeds that drive the pipeline: an
// in-process random-walk simulator plus Redis pub/sub and Kafka consumers
// for externally produced ticks. A source pushes every tick it produces
// into the emit callback and owns nothing downstream of it.
package source

import (
	"context"

	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
)

// EmitFunc receives every tick a source produces.
type EmitFunc func(tickv1.Tick)

// Source is a running tick feed. Run blocks until ctx is done and releases
// the feed's resources before returning.
type Source interface {
	Run(ctx context.Context) error
}
