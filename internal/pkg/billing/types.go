package billing

import "time"

// SubscriptionEvent is a parsed provider webhook carrying a subscription entity.
type SubscriptionEvent struct {
	Event          string
	CustomerID     string
	SubscriptionID string
	PlanID         string
	Status         string
	StartAt        time.Time
	CurrentEnd     time.Time
	RawPayloadJSON string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}

// ReconcileResult describes the state a subscription event converged to.
type ReconcileResult struct {
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
	Plan           string `json:"plan"`
	Status         string `json:"status"`
	UsageReset     bool   `json:"usage_reset"`
}

// WebhookOutcome is what happened to one webhook delivery.
type WebhookOutcome struct {
	Duplicate bool             `json:"duplicate,omitempty"`
	Result    *ReconcileResult `json:"result,omitempty"`
}
