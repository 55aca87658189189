package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"localhost:9092", []string{"localhost:9092"}},
		{"a:9092, b:9092", []string{"a:9092", "b:9092"}},
		{"a:9092,,", []string{"a:9092"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Brokers(tt.in), "Brokers(%q)", tt.in)
	}
}

func TestNewWriter_KeyedBalancer(t *testing.T) {
	w := NewWriter("a:9092,b:9092", "escrow_events")
	defer w.Close()

	assert.Equal(t, "escrow_events", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
