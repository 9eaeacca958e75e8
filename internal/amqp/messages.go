package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"safepiggy/internal/query"
)

// ExportRequestMessage asks the export worker to push the expenses
// matching Filter to a spreadsheet tab. The worker reads the ledger itself;
// the message never carries expense data.
type ExportRequestMessage struct {
	Filter      query.Filter `json:"filter"`
	Sheet       string       `json:"sheet,omitempty"`
	RequestID   string       `json:"request_id,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
}

func NewExportRequestMessage(filter query.Filter, sheet, requestID string) *ExportRequestMessage {
	return &ExportRequestMessage{
		Filter:      filter,
		Sheet:       sheet,
		RequestID:   requestID,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *ExportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportRequestMessageFromJSON decodes a delivery body. A message without
// a timestamp is rejected as malformed.
func ExportRequestMessageFromJSON(data []byte) (*ExportRequestMessage, error) {
	var msg ExportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RequestedAt.IsZero() {
		return nil, fmt.Errorf("export request: missing requested_at")
	}
	return &msg, nil
}
