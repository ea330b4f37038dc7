package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPending = "OrderPending"
	EventOrderSent    = "OrderSent"
)

const (
	TopicOrderPending = "order.pending"
)

type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "liveorder-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_key
	Payload       json.RawMessage `json:"payload"`
}

// OrderPendingPayload is everything the notifier needs to compose the
// payment prompt without re-querying the ledger.
type OrderPendingPayload struct {
	OrderKey      string `json:"order_key"`
	PostID        string `json:"post_id"`
	Code          string `json:"code"`
	AuthorID      string `json:"author_id"`
	AuthorName    string `json:"author_name"`
	Quantity      int    `json:"quantity"`
	PriceCents    int    `json:"price_cents"`
	SubtotalCents int    `json:"subtotal_cents"`
	CommentID     string `json:"comment_id"`
}

// Partition key = order_key, so events for one order stay ordered.
func PartitionKey(orderKey string) []byte { return []byte(orderKey) }
