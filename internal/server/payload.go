package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"updatehook/internal/update"
)

var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Pusher is the account that pushed.
type Pusher struct {
	Name string `json:"name"`
}

// PushEvent holds the fields of a GitHub push payload the listener reads.
// Commits are kept raw; only their number matters.
type PushEvent struct {
	Ref     string            `json:"ref"`
	Pusher  *Pusher           `json:"pusher"`
	Commits []json.RawMessage `json:"commits"`
}

// ParsePushEvent decodes a push payload. Payloads without a ref (such as
// GitHub's ping event) decode fine and simply never match a branch.
func ParsePushEvent(body []byte) (*PushEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	var event *PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedPayload)
	}

	return event, nil
}

// Trigger converts a push to the target branch into an update trigger. The
// pusher and commits fields are required.
func (e *PushEvent) Trigger(deliveryID string) (update.Trigger, error) {
	if e.Pusher == nil {
		return update.Trigger{}, fmt.Errorf("%w: missing pusher", ErrMalformedPayload)
	}
	if e.Commits == nil {
		return update.Trigger{}, fmt.Errorf("%w: missing commits", ErrMalformedPayload)
	}

	return update.Trigger{
		Ref:        e.Ref,
		Pusher:     e.Pusher.Name,
		Commits:    len(e.Commits),
		DeliveryID: deliveryID,
	}, nil
}
