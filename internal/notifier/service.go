package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/dimasraya/live-orders/internal/events"
	kafkax "github.com/dimasraya/live-orders/internal/kafka"
	"github.com/dimasraya/live-orders/internal/redisx"
)

// Replier posts the payment prompt back to the buyer on the platform.
type Replier interface {
	SendPaymentPrompt(ctx context.Context, o events.OrderPendingPayload) error
}

type LedgerStore interface {
	MarkSent(ctx context.Context, orderKey string) (bool, error)
}

type Service struct {
	Ledger      LedgerStore
	Redis       *redis.Client
	Replier     Replier
	ServiceName string
}

// HandleOrderPending is the consumer handler: reply first, then flip the
// record to sent. A record that is already sent (replayed event) is a no-op.
func (s *Service) HandleOrderPending(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != events.EventOrderPending {
		return nil
	}

	// dedup via Redis on event_id
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[events.OrderPendingPayload](env.Payload)
	if err != nil {
		return err
	}

	if err := s.Replier.SendPaymentPrompt(ctx, p); err != nil {
		return err
	}
	if _, err := s.Ledger.MarkSent(ctx, p.OrderKey); err != nil {
		return err
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
