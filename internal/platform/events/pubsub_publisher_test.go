package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/orderforge/api/internal/services"
)

func newTestTopic(t *testing.T, name string) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, name)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return srv, topic
}

func TestPubSubOrderPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv, topic := newTestTopic(t, "order-events")

	publisher, err := NewPubSubOrderPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderPublisher: %v", err)
	}

	occurredAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	msg := services.OrderEventMessage{
		Type:           "order.status.changed",
		OrderID:        "ord_test",
		OrderNumber:    "ORD-20250601-AAAAAA",
		Status:         "PROCESSING",
		PreviousStatus: "PENDING",
		OccurredAt:     occurredAt,
	}

	if err := publisher.PublishOrderEvent(ctx, msg); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderNumber != msg.OrderNumber || payload.PreviousStatus != "PENDING" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["type"]; attr != "order.status.changed" {
		t.Fatalf("expected type attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["orderNumber"]; attr != msg.OrderNumber {
		t.Fatalf("expected order number attribute, got %q", attr)
	}
}

func TestPubSubInventoryPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv, topic := newTestTopic(t, "inventory-events")

	publisher, err := NewPubSubInventoryPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubInventoryPublisher: %v", err)
	}

	msg := services.InventoryEventMessage{
		Type:        "inventory.reserved",
		ProductCode: "SKU-1",
		OnHand:      10,
		Reserved:    3,
		Available:   7,
		OccurredAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	if err := publisher.PublishInventoryEvent(ctx, msg); err != nil {
		t.Fatalf("PublishInventoryEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.InventoryEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ProductCode != "SKU-1" || payload.Available != 7 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["productCode"]; attr != "SKU-1" {
		t.Fatalf("expected product code attribute, got %q", attr)
	}
}
