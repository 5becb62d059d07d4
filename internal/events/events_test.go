package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type mockChannel struct {
	declareFn func(name, kind string, durable bool) error
	publishFn func(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	closed    bool
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if m.declareFn == nil {
		return nil
	}
	return m.declareFn(name, kind, durable)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.publishFn(ctx, exchange, key, msg)
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestAMQPPublisher_DeclaresTopicExchange(t *testing.T) {
	var gotName, gotKind string
	var gotDurable bool
	ch := &mockChannel{
		declareFn: func(name, kind string, durable bool) error {
			gotName, gotKind, gotDurable = name, kind, durable
			return nil
		},
	}

	if _, err := NewAMQPPublisher(ch, nil, "bakery.events", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != "bakery.events" || gotKind != "topic" || !gotDurable {
		t.Errorf("declared %q kind=%q durable=%v", gotName, gotKind, gotDurable)
	}
}

func TestAMQPPublisher_DeclareFails(t *testing.T) {
	ch := &mockChannel{
		declareFn: func(string, string, bool) error { return errors.New("access refused") },
	}
	if _, err := NewAMQPPublisher(ch, nil, "bakery.events", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestAMQPPublisher_Publish(t *testing.T) {
	tenantID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	var gotKey string
	var gotMsg amqp.Publishing
	ch := &mockChannel{
		publishFn: func(_ context.Context, exchange, key string, msg amqp.Publishing) error {
			if exchange != "bakery.events" {
				t.Errorf("exchange = %q", exchange)
			}
			gotKey, gotMsg = key, msg
			return nil
		},
	}
	p, err := NewAMQPPublisher(ch, nil, "bakery.events", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := New("internal_order.status_changed", tenantID, map[string]string{"status": "approved"})
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "tenant.11111111-1111-1111-1111-111111111111.internal_order.status_changed" {
		t.Errorf("routing key = %q", gotKey)
	}
	if gotMsg.DeliveryMode != amqp.Persistent || gotMsg.ContentType != "application/json" {
		t.Errorf("unexpected publishing %+v", gotMsg)
	}

	var body struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(gotMsg.Body, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Type != "internal_order.status_changed" || body.Payload["status"] != "approved" {
		t.Errorf("unexpected body %s", gotMsg.Body)
	}
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &mockChannel{}
	p, _ := NewAMQPPublisher(ch, nil, "x", nil)
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ch.closed {
		t.Error("channel not closed")
	}
}

func TestMulti_PublishesToAllAndCombinesErrors(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("broker down")}
	m := Multi{failing, ok}

	err := m.Publish(context.Background(), New("lock.acquired", uuid.New(), nil))
	if err == nil {
		t.Fatal("expected combined error")
	}
	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Errorf("every publisher must receive the event: ok=%d failing=%d", len(ok.events), len(failing.events))
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), Event{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
