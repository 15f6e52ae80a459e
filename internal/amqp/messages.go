package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutboxMessage announces a queued mutation. It carries only the outbox id;
// the worker reads the mutation itself from the shared database.
type OutboxMessage struct {
	OutboxID      int64     `json:"outbox_id"`
	Operation     string    `json:"operation"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewOutboxMessage(outboxID int64, operation, transactionID string) *OutboxMessage {
	return &OutboxMessage{
		OutboxID:      outboxID,
		Operation:     operation,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *OutboxMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OutboxMessageFromJSON decodes a message; an id is required.
func OutboxMessageFromJSON(data []byte) (*OutboxMessage, error) {
	var msg OutboxMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OutboxID <= 0 {
		return nil, fmt.Errorf("outbox message without id")
	}
	return &msg, nil
}
