package nostr

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Relay to client message labels.
const (
	MessageTypeEvent  = "EVENT"
	MessageTypeEOSE   = "EOSE"
	MessageTypeNotice = "NOTICE"
	MessageTypeClosed = "CLOSED"
	MessageTypeOK     = "OK"
)

// Filter is a subscription filter.
type Filter struct {
	Kinds []int  `json:"kinds,omitempty"`
	Since *int64 `json:"since,omitempty"`
	Limit *int   `json:"limit,omitempty"`
}

// RelayMessage is a decoded relay to client message.
type RelayMessage struct {
	Type           string
	SubscriptionID string
	Event          *Event
	Message        string
	Accepted       bool
}

// NewReqMessage returns an encoded subscription request.
func NewReqMessage(subID string, filters ...Filter) ([]byte, error) {
	msg := make([]interface{}, 0, len(filters)+2)
	msg = append(msg, "REQ", subID)
	for _, f := range filters {
		msg = append(msg, f)
	}

	return json.Marshal(msg)
}

// NewCloseMessage returns an encoded subscription close request.
func NewCloseMessage(subID string) ([]byte, error) {
	return json.Marshal([]string{"CLOSE", subID})
}

// ParseRelayMessage decodes a relay to client message.
func ParseRelayMessage(data []byte) (*RelayMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "relay message is not an array")
	}
	if len(raw) == 0 {
		return nil, errors.New("empty relay message")
	}

	msg := &RelayMessage{}
	if err := json.Unmarshal(raw[0], &msg.Type); err != nil {
		return nil, errors.Wrap(err, "invalid relay message label")
	}

	switch msg.Type {
	case MessageTypeEvent:
		if len(raw) < 3 {
			return nil, errors.Errorf("EVENT message has %d elements", len(raw))
		}
		if err := json.Unmarshal(raw[1], &msg.SubscriptionID); err != nil {
			return nil, errors.Wrap(err, "invalid subscription id")
		}
		msg.Event = &Event{}
		if err := json.Unmarshal(raw[2], msg.Event); err != nil {
			return nil, errors.Wrap(err, "invalid event")
		}
	case MessageTypeEOSE:
		if len(raw) < 2 {
			return nil, errors.New("EOSE message missing subscription id")
		}
		if err := json.Unmarshal(raw[1], &msg.SubscriptionID); err != nil {
			return nil, errors.Wrap(err, "invalid subscription id")
		}
	case MessageTypeNotice:
		if len(raw) < 2 {
			return nil, errors.New("NOTICE message missing text")
		}
		if err := json.Unmarshal(raw[1], &msg.Message); err != nil {
			return nil, errors.Wrap(err, "invalid notice")
		}
	case MessageTypeClosed:
		if len(raw) < 2 {
			return nil, errors.New("CLOSED message missing subscription id")
		}
		if err := json.Unmarshal(raw[1], &msg.SubscriptionID); err != nil {
			return nil, errors.Wrap(err, "invalid subscription id")
		}
		if len(raw) > 2 {
			_ = json.Unmarshal(raw[2], &msg.Message)
		}
	case MessageTypeOK:
		if len(raw) < 3 {
			return nil, errors.Errorf("OK message has %d elements", len(raw))
		}
		var id string
		if err := json.Unmarshal(raw[1], &id); err != nil {
			return nil, errors.Wrap(err, "invalid event id")
		}
		if err := json.Unmarshal(raw[2], &msg.Accepted); err != nil {
			return nil, errors.Wrap(err, "invalid OK status")
		}
		msg.Event = &Event{ID: id}
		if len(raw) > 3 {
			_ = json.Unmarshal(raw[3], &msg.Message)
		}
	default:
		return nil, errors.Errorf("unsupported relay message: %s", msg.Type)
	}

	return msg, nil
}
