package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/config"
)

func TestNewClientDisabledIsNoop(t *testing.T) {
	var cfg config.Config
	cfg.Messaging.Kafka.EventsTopic = "ledger.events"
	cfg.Messaging.Kafka.RequestsTopic = "ledger.requests"

	client, err := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if client.EventsTopic() != "ledger.events" || client.RequestsTopic() != "ledger.requests" {
		t.Fatalf("topics = %q, %q", client.EventsTopic(), client.RequestsTopic())
	}
	if err := client.Publish(context.Background(), []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = client.Consume(ctx, func(context.Context, Message) error {
		t.Fatal("noop client delivered a message")
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Consume = %v", err)
	}
}

func TestNewClientUnsupportedDriver(t *testing.T) {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Driver = "nats"
	if _, err := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop()); err == nil {
		t.Fatal("unsupported driver accepted")
	}
}

func TestNewKafkaClientTopics(t *testing.T) {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Driver = "kafka"
	cfg.Messaging.Kafka.Brokers = []string{"127.0.0.1:9092"}
	cfg.Messaging.Kafka.EventsTopic = "ledger.events"
	cfg.Messaging.Kafka.RequestsTopic = "ledger.requests"
	cfg.Messaging.Kafka.MinBytes = 1
	cfg.Messaging.Kafka.MaxBytes = 1 << 20
	cfg.Messaging.ConsumerGroup = "salesledger-worker"

	lc := fxtest.NewLifecycle(t)
	client, err := NewClient(lc, cfg, zap.NewNop())
	lc.RequireStart()
	if err != nil {
		t.Fatal(err)
	}
	kc := client.(*kafkaClient)
	if kc.EventsTopic() != "ledger.events" || kc.reader.Config().Topic != "ledger.requests" {
		t.Fatalf("events topic %q, reader topic %q", kc.EventsTopic(), kc.reader.Config().Topic)
	}
	lc.RequireStop()
}

func TestHeaderCarrierPropagatesTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var msg kafka.Message
	otel.GetTextMapPropagator().Inject(parent, headerCarrier{msg: &msg})
	if len(msg.Headers) != 1 || msg.Headers[0].Key != "traceparent" {
		t.Fatalf("headers = %v", msg.Headers)
	}

	got := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), headerCarrier{msg: &msg}))
	if got.TraceID() != traceID || got.SpanID() != spanID {
		t.Fatalf("extracted span context = %v", got)
	}
	if toMessage(msg).Headers["traceparent"] == "" {
		t.Fatal("header lost converting message")
	}
}
