package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"estatetoken/internal/events"
	"estatetoken/internal/logger"

	"github.com/shopspring/decimal"
)

func init() {
	logger.Init("test")
}

func TestHub_RegisterAndClose(t *testing.T) {
	hub := NewHub()
	a := NewClient("user-a")
	b := NewClient("user-a")
	hub.Register(a)
	hub.Register(b)
	hub.Register(b)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	a.Close()
	a.Close()
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after close, got %d", got)
	}
	if _, ok := <-a.Send; ok {
		t.Error("expected closed send queue")
	}
}

func TestHub_SendToUser(t *testing.T) {
	hub := NewHub()
	first := NewClient("user-a")
	second := NewClient("user-a")
	other := NewClient("user-b")
	for _, c := range []*Client{first, second, other} {
		hub.Register(c)
	}

	n, err := hub.SendToUser("user-a", map[string]string{"hello": "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	for _, c := range []*Client{first, second} {
		if got := string(<-c.Send); got != `{"hello":"world"}` {
			t.Errorf("unexpected payload %s", got)
		}
	}
	if len(other.Send) != 0 {
		t.Error("expected other user to receive nothing")
	}

	if n, _ := hub.SendToUser("nobody", "x"); n != 0 {
		t.Errorf("expected 0 deliveries for unknown user, got %d", n)
	}
}

func TestHub_SkipsFullAndClosedClients(t *testing.T) {
	hub := NewHub()
	slow := NewClient("user-a")
	hub.Register(slow)
	for i := 0; i < sendBufferSize; i++ {
		slow.Send <- []byte("backlog")
	}

	if n, _ := hub.SendToUser("user-a", "more"); n != 0 {
		t.Errorf("expected full client to be skipped, got %d deliveries", n)
	}

	closed := NewClient("user-c")
	hub.Register(closed)
	closed.Close()
	if closed.offer([]byte("late")) {
		t.Error("expected closed client to refuse messages")
	}
}

func TestHub_Subscribe(t *testing.T) {
	bus := events.NewBus(time.Second)
	hub := NewHub()
	hub.Subscribe(bus)

	client := NewClient("user-a")
	hub.Register(client)

	bus.Publish(context.Background(), events.PortfolioCandleUpdated{
		Envelope: events.NewEnvelope(events.TopicPortfolioCandleUpdated),
		UserID:   "user-a",
		Candle: events.Candle{
			Date:       "2026-10-14",
			OpenValue:  decimal.NewFromInt(100),
			HighValue:  decimal.NewFromInt(150),
			LowValue:   decimal.NewFromInt(90),
			CloseValue: decimal.NewFromInt(120),
		},
	})

	select {
	case msg := <-client.Send:
		var got events.PortfolioCandleUpdated
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("failed to decode message: %v", err)
		}
		if got.Topic != events.TopicPortfolioCandleUpdated {
			t.Errorf("expected topic %s, got %s", events.TopicPortfolioCandleUpdated, got.Topic)
		}
		if got.Candle.Date != "2026-10-14" || !got.Candle.CloseValue.Equal(decimal.NewFromInt(120)) {
			t.Errorf("unexpected candle %+v", got.Candle)
		}
	default:
		t.Fatal("expected a message for the subscribed user")
	}
}
