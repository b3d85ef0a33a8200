package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the ledger queue.
const (
	KindExpenseRecorded    = "expense_recorded"
	KindSettlementRecorded = "settlement_recorded"
)

// LedgerEventMessage is a lightweight notification that something was
// appended to a group's history. It carries only identifiers, the worker
// fetches the full record from the database before exporting it.
type LedgerEventMessage struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Sequence  int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseRecordedMessage creates an event for a newly appended expense
func NewExpenseRecordedMessage(id, groupID string, seq int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:      KindExpenseRecorded,
		ID:        id,
		GroupID:   groupID,
		Sequence:  seq,
		Timestamp: time.Now(),
	}
}

// NewSettlementRecordedMessage creates an event for a newly appended settlement
func NewSettlementRecordedMessage(id, groupID string, seq int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:      KindSettlementRecorded,
		ID:        id,
		GroupID:   groupID,
		Sequence:  seq,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
