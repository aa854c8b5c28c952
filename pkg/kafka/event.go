package kafka

import (
	"encoding/json"
	"time"

	jsoniter "github.com/json-iterator/go"
)

type EventType string

const (
	EventBookCreated  EventType = "BOOK_CREATED"
	EventBookDeleted  EventType = "BOOK_DELETED"
	EventBookBorrowed EventType = "BOOK_BORROWED"
	EventBookReturned EventType = "BOOK_RETURNED"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// CatalogEvent is published to CatalogEventsTopic after a committed change.
type CatalogEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	SerialNumber string    `json:"serialNumber"`
	CardNumber   string    `json:"cardNumber,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e CatalogEvent) Encode() ([]byte, error) {
	return codec.Marshal(e)
}

func DecodeEvent(data []byte) (CatalogEvent, error) {
	var e CatalogEvent
	err := codec.Unmarshal(data, &e)
	return e, err
}

// TransitionCommand is a borrow or return request read from CatalogTransitionsTopic.
// Changes holds the same partial object the HTTP PATCH accepts.
type TransitionCommand struct {
	SerialNumber string          `json:"serialNumber"`
	Changes      json.RawMessage `json:"changes"`
}

func (c TransitionCommand) Encode() ([]byte, error) {
	return codec.Marshal(c)
}

func DecodeTransitionCommand(data []byte) (TransitionCommand, error) {
	var c TransitionCommand
	err := codec.Unmarshal(data, &c)
	return c, err
}
