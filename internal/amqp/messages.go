package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeKind is the routing key suffix of a change notification.
type ChangeKind string

const (
	ChangeAssignment  ChangeKind = "assignment"
	ChangeCategory    ChangeKind = "category"
	ChangeAccount     ChangeKind = "account"
	ChangeTransaction ChangeKind = "transaction"
	ChangeTransfer    ChangeKind = "transfer"
)

func (k ChangeKind) known() bool {
	switch k {
	case ChangeAssignment, ChangeCategory, ChangeAccount, ChangeTransaction, ChangeTransfer:
		return true
	}
	return false
}

// LedgerChangeMessage only says what changed. Consumers read the
// current state from the sync queue or the ledger itself.
type LedgerChangeMessage struct {
	MessageID string     `json:"message_id"`
	Kind      ChangeKind `json:"kind"`
	EntityID  int64      `json:"entity_id"`
	Month     string     `json:"month,omitempty"` // assignments only
	Timestamp time.Time  `json:"timestamp"`
}

func NewLedgerChangeMessage(kind ChangeKind, entityID int64, month string) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		MessageID: uuid.NewString(),
		Kind:      kind,
		EntityID:  entityID,
		Month:     month,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerChangeMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }

// LedgerChangeMessageFromJSON decodes a delivery body and rejects
// messages no consumer could act on.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	msg := new(LedgerChangeMessage)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode ledger change: %w", err)
	}
	if !msg.Kind.known() {
		return nil, fmt.Errorf("ledger change %s: unknown kind %q", msg.MessageID, msg.Kind)
	}
	if msg.Kind == ChangeAssignment && msg.Month == "" {
		return nil, fmt.Errorf("ledger change %s: assignment without month", msg.MessageID)
	}
	return msg, nil
}
