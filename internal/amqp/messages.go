package amqp

import (
	"encoding/json"
	"time"

	"notimo/internal/core"
)

// Message types, carried in the AMQP Type property and used as routing keys.
const (
	TypeViewChanged        = "view.changed"
	TypeTransactionDeleted = "transaction.deleted"
)

// ViewChangedMessage summarises a freshly computed view. Amounts are
// decimal strings so that consumers never see float rounding.
type ViewChangedMessage struct {
	Module    string    `json:"module"`
	Filter    string    `json:"filter"`
	Income    string    `json:"total_income"`
	Expense   string    `json:"total_expense"`
	Balance   string    `json:"balance"`
	Visible   int       `json:"visible"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewViewChangedMessage(module core.Module, filter string, totals core.Totals, visible int, version uint64) *ViewChangedMessage {
	return &ViewChangedMessage{
		Module:    string(module),
		Filter:    filter,
		Income:    totals.Income.String(),
		Expense:   totals.Expense.String(),
		Balance:   totals.Balance.String(),
		Visible:   visible,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *ViewChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ViewChangedMessageFromJSON(data []byte) (*ViewChangedMessage, error) {
	var msg ViewChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// TransactionDeletedMessage is published once a backend confirmed a delete.
type TransactionDeletedMessage struct {
	Module        string    `json:"module"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionDeletedMessage(module core.Module, id string) *TransactionDeletedMessage {
	return &TransactionDeletedMessage{
		Module:        string(module),
		TransactionID: id,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionDeletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionDeletedMessageFromJSON(data []byte) (*TransactionDeletedMessage, error) {
	var msg TransactionDeletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
