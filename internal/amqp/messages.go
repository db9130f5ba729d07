package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DocumentReplacedMessage announces that a singleton document was overwritten.
// It carries no payload; consumers load the current record themselves.
type DocumentReplacedMessage struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	DocumentID string    `json:"documentId"`
	Version    int64     `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewDocumentReplacedMessage(kind, documentID string, version int64) *DocumentReplacedMessage {
	return &DocumentReplacedMessage{
		ID:         uuid.NewString(),
		Kind:       kind,
		DocumentID: documentID,
		Version:    version,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *DocumentReplacedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DocumentReplacedMessageFromJSON decodes a message and requires a kind.
func DocumentReplacedMessageFromJSON(data []byte) (*DocumentReplacedMessage, error) {
	var msg DocumentReplacedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, errors.New("message has no document kind")
	}
	return &msg, nil
}
