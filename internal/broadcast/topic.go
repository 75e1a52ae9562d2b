package broadcast

import (
	"fmt"

	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
)

// Topic names one live stream a subscriber can attach to.
type Topic string

// Available topics: the raw tick stream plus one per granularity.
const (
	TopicTicks     Topic = "ticks"
	TopicMinute    Topic = "minute"
	TopicHour      Topic = "hour"
	TopicDay       Topic = "day"
	TopicCustomDay Topic = "custom-day"
)

// ParseTopic validates a topic name.
func ParseTopic(name string) (Topic, error) {
	switch Topic(name) {
	case TopicTicks, TopicMinute, TopicHour, TopicDay, TopicCustomDay:
		return Topic(name), nil
	}
	return "", fmt.Errorf("unsupported topic: %s", name)
}

// TopicForGranularity maps a granularity to its aggregate topic.
func TopicForGranularity(g interval.Granularity) Topic {
	switch g {
	case interval.GranularityMinute:
		return TopicMinute
	case interval.GranularityHour:
		return TopicHour
	case interval.GranularityDay:
		return TopicDay
	default:
		return TopicCustomDay
	}
}
