package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const razorpayActivatedEvent = "subscription.activated"

type razorpayEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription *struct {
			Entity *razorpaySubscriptionEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// Fields are pointers so a missing key and an explicit null both read as absent.
type razorpaySubscriptionEntity struct {
	ID         *string `json:"id"`
	CustomerID *string `json:"customer_id"`
	PlanID     *string `json:"plan_id"`
	Status     *string `json:"status"`
	StartAt    *int64  `json:"start_at"`
	CurrentEnd *int64  `json:"current_end"`
}

// RazorpayEventType returns the event name of a webhook body.
func RazorpayEventType(body []byte) (string, error) {
	var env struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	event := strings.TrimSpace(env.Event)
	if event == "" {
		return "", fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}
	return event, nil
}

// ParseRazorpaySubscriptionEvent extracts the subscription entity of a
// webhook body. Every field reconciliation depends on must be present.
func ParseRazorpaySubscriptionEvent(body []byte) (*SubscriptionEvent, error) {
	var env razorpayEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(env.Event) == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedPayload)
	}
	if env.Payload.Subscription == nil || env.Payload.Subscription.Entity == nil {
		return nil, fmt.Errorf("%w: missing payload.subscription.entity", ErrMalformedPayload)
	}
	e := env.Payload.Subscription.Entity

	var missing []string
	str := func(name string, v *string) string {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
			return ""
		}
		return strings.TrimSpace(*v)
	}
	epoch := func(name string, v *int64) time.Time {
		if v == nil {
			missing = append(missing, name)
			return time.Time{}
		}
		return time.Unix(*v, 0).UTC()
	}

	ev := &SubscriptionEvent{
		Event:          strings.TrimSpace(env.Event),
		CustomerID:     str("customer_id", e.CustomerID),
		SubscriptionID: str("id", e.ID),
		PlanID:         str("plan_id", e.PlanID),
		Status:         strings.ToLower(str("status", e.Status)),
		StartAt:        epoch("start_at", e.StartAt),
		CurrentEnd:     epoch("current_end", e.CurrentEnd),
		RawPayloadJSON: string(body),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedPayload, strings.Join(missing, ", "))
	}
	return ev, nil
}

// IsActivationEvent reports whether the event starts a newly paid subscription.
func IsActivationEvent(event string) bool {
	return event == razorpayActivatedEvent
}
