package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	"github.com/jemi-ng/pickup-backend/pkg/outbox"
	"github.com/jemi-ng/pickup-backend/pkg/outbox/payloads"
)

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry("order-events")
	if err != nil {
		t.Fatalf("NewEventRegistry: %v", err)
	}
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return env
}

func TestResolveDecodesOrderPaid(t *testing.T) {
	reg := newTestRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: mustEnvelope(t, payloads.OrderPaidEvent{
			OrderID:     orderID,
			OrderNumber: "JM-20260301-AB12",
			Reference:   "JEMI-JM-20260301-AB12",
			AmountMinor: 2500000,
		}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Stream != "order-events" {
		t.Fatalf("unexpected stream %q", resolved.Descriptor.Stream)
	}
	paid, ok := resolved.Payload.(*payloads.OrderPaidEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if paid.AmountMinor != 2500000 || paid.OrderID != orderID {
		t.Fatalf("payload mismatch %+v", paid)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatal("envelope missing event id")
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestRegistry(t)
	valid := mustEnvelope(t, payloads.OrderCanceledEvent{OrderID: uuid.New()})

	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType: "order_teleported", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: valid,
		},
		"wrong aggregate": {
			EventType: enums.EventOrderCanceled, AggregateType: "cart", AggregateID: uuid.New(), Payload: valid,
		},
		"missing aggregate id": {
			EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder, Payload: valid,
		},
		"broken envelope": {
			EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{"data":`),
		},
		"null data": {
			EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{"version":1,"data":null}`),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresStream(t *testing.T) {
	if _, err := NewEventRegistry("  "); err == nil {
		t.Fatal("expected error for blank stream")
	}
}
