// tick-producer publishes simulated or file-sourced ticks to the Kafka
// topic or Redis channel the service consumes, for local development and
// load testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Tick mirrors the service's wire format.
type Tick struct {
	Time   time.Time `json:"time"`
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
}

// generateTicks produces a bounded random walk, one tick per second of
// synthetic time ending now.
func generateTicks(count int, symbol string, startPrice, maxStep, minPrice, maxPrice float64) []Tick {
	ticks := make([]Tick, count)
	price := startPrice
	base := time.Now().UTC().Add(-time.Duration(count) * time.Second)

	for i := 0; i < count; i++ {
		delta := (rand.Float64()*2 - 1) * maxStep
		price += delta
		if price < minPrice {
			price = minPrice
		}
		if price > maxPrice {
			price = maxPrice
		}
		price = math.Round(price*1e5) / 1e5

		ticks[i] = Tick{
			Time:   base.Add(time.Duration(i) * time.Second),
			Symbol: symbol,
			Price:  price,
		}
	}

	return ticks
}

func main() {
	var (
		mode       = flag.String("mode", "kafka", "Transport: kafka or redis")
		brokers    = flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
		topic      = flag.String("topic", "ticks", "Kafka topic name")
		redisAddr  = flag.String("redis-addr", "localhost:6379", "Redis address")
		channel    = flag.String("channel", "eurusd_ticks", "Redis pub/sub channel")
		file       = flag.String("file", "", "JSON file with ticks (optional, generates ticks if not provided)")
		delay      = flag.Duration("delay", time.Second, "Delay between ticks")
		count      = flag.Int("count", 1000, "Number of ticks to generate")
		symbol     = flag.String("symbol", "EURUSD", "Instrument symbol")
		startPrice = flag.Float64("start-price", 1.10, "Starting price")
		maxStep    = flag.Float64("max-step", 0.0005, "Maximum price move per tick")
		minPrice   = flag.Float64("min-price", 0.5, "Lower price bound")
		maxPrice   = flag.Float64("max-price", 2.0, "Upper price bound")
	)
	flag.Parse()

	ctx := context.Background()

	var ticks []Tick
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("Failed to read file %s: %v", *file, err)
		}
		if err := json.Unmarshal(data, &ticks); err != nil {
			log.Fatalf("Failed to parse JSON from file: %v", err)
		}
		log.Printf("Loaded %d ticks from file: %s", len(ticks), *file)
	} else {
		log.Printf("Generating %d ticks...", *count)
		ticks = generateTicks(*count, *symbol, *startPrice, *maxStep, *minPrice, *maxPrice)
	}

	var send func(t Tick, payload []byte) error
	switch *mode {
	case "kafka":
		writer := &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
			Topic:        *topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		}
		defer writer.Close()

		log.Printf("Sending ticks to Kafka broker: %s, topic: %s", *brokers, *topic)
		send = func(t Tick, payload []byte) error {
			return writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(t.Symbol),
				Value: payload,
				Time:  t.Time,
			})
		}
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer client.Close()

		log.Printf("Publishing ticks to Redis: %s, channel: %s", *redisAddr, *channel)
		send = func(_ Tick, payload []byte) error {
			return client.Publish(ctx, *channel, payload).Err()
		}
	default:
		log.Fatalf("Unknown mode: %s", *mode)
	}

	sent := 0
	for i, tick := range ticks {
		payload, err := json.Marshal(tick)
		if err != nil {
			log.Printf("Failed to marshal tick %d: %v", i+1, err)
			continue
		}

		if err := send(tick, payload); err != nil {
			log.Printf("Failed to send tick %d: %v", i+1, err)
			continue
		}
		sent++

		if (i+1)%100 == 0 || i == len(ticks)-1 {
			log.Printf("Sent tick %d/%d: %s @ %.5f", i+1, len(ticks), tick.Symbol, tick.Price)
		}

		if i < len(ticks)-1 {
			time.Sleep(*delay)
		}
	}

	log.Printf("Done. Sent %d/%d ticks.", sent, len(ticks))
}
