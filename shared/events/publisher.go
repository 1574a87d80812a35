package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamMaxLen bounds the stream; consumers that fall further behind than this
// only lose cache invalidations, never ledger data.
const streamMaxLen = 100000

// Stream entry fields. "event" holds the JSON-encoded Event; "type" and
// "account" are duplicated alongside it so the stream can be inspected with
// XRANGE without decoding.
const (
	fieldEvent   = "event"
	fieldType    = "type"
	fieldAccount = "account"
)

// Publisher appends ledger events to a single Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
	now    func() time.Time
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream, now: time.Now}
}

func (p *Publisher) PublishMovementRecorded(ctx context.Context, e MovementRecordedEvent) error {
	return p.xadd(ctx, MovementRecorded, e.AccountNumber, e)
}

func (p *Publisher) PublishBalanceUpdated(ctx context.Context, e BalanceUpdatedEvent) error {
	return p.xadd(ctx, BalanceUpdated, e.AccountNumber, e)
}

func (p *Publisher) xadd(ctx context.Context, eventType, accountNumber string, data any) error {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: p.now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			fieldEvent:   payload,
			fieldType:    eventType,
			fieldAccount: accountNumber,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish %s event to %s: %w", eventType, p.stream, err)
	}
	return nil
}
