package review

import (
	"encoding/json"
	"time"

	"kamienica/internal/core"
	"kamienica/internal/services"
)

// Message is the queue representation of a transaction awaiting manual
// resolution. It carries everything an operator display needs, so the
// consumer does not have to reach back into the database.
type Message struct {
	ExternalID     string    `json:"external_id"`
	PostingDate    time.Time `json:"posting_date"`
	Amount         string    `json:"amount"`
	Description    string    `json:"description"`
	CategoryStatus string    `json:"category_status"`
	UnitStatus     string    `json:"unit_status"`
	Trace          string    `json:"trace"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewMessage(item services.ReviewItem) *Message {
	return &Message{
		ExternalID:     item.ExternalID,
		PostingDate:    item.PostingDate,
		Amount:         item.Amount,
		Description:    item.Description,
		CategoryStatus: string(item.CategoryStatus),
		UnitStatus:     string(item.UnitStatus),
		Trace:          item.Trace,
		Timestamp:      time.Now(),
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NeedsUnit reports whether the unit assignment is what blocks the row.
func (m *Message) NeedsUnit() bool {
	return m.UnitStatus != string(core.StatusProcessed)
}
