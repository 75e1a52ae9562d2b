package source

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	tickv1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/tick/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/config"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/logger"
)

// Simulator produces a bounded random walk for one symbol: every interval
// the price moves by a uniform step in [-MaxStep, MaxStep], clamped to
// [MinPrice, MaxPrice] and rounded to five decimal places.
type Simulator struct {
	cfg    config.FeedConfig
	emit   EmitFunc
	logger logger.Interface

	price float64
	randF func() float64
}

// NewSimulator creates a simulator starting at cfg.StartPrice.
func NewSimulator(cfg config.FeedConfig, emit EmitFunc, log logger.Interface) *Simulator {
	return &Simulator{
		cfg:    cfg,
		emit:   emit,
		logger: log,
		price:  cfg.StartPrice,
		randF:  rand.Float64,
	}
}

// Run emits one tick per configured interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("starting tick simulator",
			logger.Field{Key: "symbol", Value: s.cfg.Symbol},
			logger.Field{Key: "interval", Value: s.cfg.TickInterval},
		)
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.emit(tickv1.Tick{
				Time:   time.Now().UTC(),
				Symbol: s.cfg.Symbol,
				Price:  s.step(),
			})
		}
	}
}

// step advances the walk one move and returns the new price.
func (s *Simulator) step() float64 {
	delta := (s.randF()*2 - 1) * s.cfg.MaxStep
	next := s.price + delta

	if next < s.cfg.MinPrice {
		next = s.cfg.MinPrice
	}
	if next > s.cfg.MaxPrice {
		next = s.cfg.MaxPrice
	}

	s.price = math.Round(next*1e5) / 1e5
	return s.price
}
