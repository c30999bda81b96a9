package payments

import (
	"encoding/json"
	"errors"
	"strings"
)

// Lifecycle event types the provisioner reacts to. Everything else is
// acknowledged and ignored.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is the parsed webhook envelope. Object holds the event-specific
// payload untouched; typed accessors decode it on demand.
type Event struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Object json.RawMessage `json:"-"`
}

// ParseEvent decodes a webhook envelope.
func ParseEvent(payload []byte) (*Event, error) {
	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Type) == "" {
		return nil, errors.New("webhook payload missing event type")
	}
	return &Event{
		ID:     strings.TrimSpace(raw.ID),
		Type:   strings.TrimSpace(raw.Type),
		Object: raw.Data.Object,
	}, nil
}

// IsLifecycleEvent reports whether the type is one the provisioner handles.
func (e *Event) IsLifecycleEvent() bool {
	switch e.Type {
	case EventCheckoutCompleted, EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	default:
		return false
	}
}

// CheckoutSession decodes the embedded checkout session payload. Only the id
// is trusted; callers re-fetch the full session before provisioning.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var out CheckoutSession
	if err := json.Unmarshal(e.Object, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("checkout event missing session id")
	}
	return &out, nil
}

// Subscription decodes the embedded subscription payload.
func (e *Event) Subscription() (*Subscription, error) {
	var out Subscription
	if err := json.Unmarshal(e.Object, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("subscription event missing subscription id")
	}
	return &out, nil
}
