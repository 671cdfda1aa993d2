package kafka

import "github.com/segmentio/kafka-go"

// headerCarrier lets the otel propagator write trace context straight into
// the headers of an outgoing message.
type headerCarrier []kafka.Header

func (h *headerCarrier) Get(key string) string {
	for _, x := range *h {
		if x.Key == key {
			return string(x.Value)
		}
	}
	return ""
}

func (h *headerCarrier) Set(key, value string) {
	for i, x := range *h {
		if x.Key == key {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

func (h *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*h))
	for _, x := range *h {
		keys = append(keys, x.Key)
	}
	return keys
}
