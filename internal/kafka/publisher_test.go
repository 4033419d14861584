package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/overlay-relay/internal/config"
	"github.com/overlay-relay/internal/domain"
)

func testPublisher(t *testing.T) (*EventPublisher, *mocks.SyncProducer) {
	t.Helper()
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, saramaConfig)
	cfg := config.DefaultConfig().Kafka
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEventPublisherWithProducer(&cfg, producer, logger), producer
}

func TestRecordOverlayEventKeyedBySlot(t *testing.T) {
	publisher, producer := testPublisher(t)

	event := domain.OverlayEvent{
		ID:         "6f1c0a52-9a55-4f7e-9a39-3f7f0e4b7a10",
		Slot:       domain.SlotPlayer2,
		Visible:    true,
		PlayerID:   "78449312",
		PlayerName: "Jane Doe",
		Payload:    json.RawMessage(`{"player":{"id":"78449312"},"visible":true}`),
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "overlay-events" {
			return fmt.Errorf("topic = %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "player2" {
			return fmt.Errorf("key = %q", key)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var got domain.OverlayEvent
		if err := json.Unmarshal(value, &got); err != nil {
			return err
		}
		if got.ID != event.ID || got.PlayerName != "Jane Doe" || !got.Visible {
			return fmt.Errorf("event = %+v", got)
		}
		return nil
	})

	if err := publisher.RecordOverlayEvent(context.Background(), event); err != nil {
		t.Fatalf("RecordOverlayEvent: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecordOverlayEventFailure(t *testing.T) {
	publisher, producer := testPublisher(t)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := publisher.RecordOverlayEvent(context.Background(), domain.OverlayEvent{
		ID:      "1",
		Slot:    domain.SlotPlayer1,
		Payload: domain.EmptyOverlayStateJSON,
	})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err = %v, want ErrOutOfBrokers", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
