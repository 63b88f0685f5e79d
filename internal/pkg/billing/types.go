package billing

import (
	"strings"
	"time"
)

// EventKind is the canonical lifecycle event derived from a provider payload.
type EventKind string

const (
	EventApproved  EventKind = "approved"
	EventRenewed   EventKind = "renewed"
	EventCancelled EventKind = "cancelled"
	EventRefunded  EventKind = "refunded"
	// EventUnknown marks a recognised provider event that carries no
	// subscription change (boleto printed, payment pending, ...).
	EventUnknown EventKind = "unknown"
)

// Actionable reports whether the state machine has a transition for k.
func (k EventKind) Actionable() bool {
	switch k {
	case EventApproved, EventRenewed, EventCancelled, EventRefunded:
		return true
	default:
		return false
	}
}

// Grants reports whether k activates or extends access.
func (k EventKind) Grants() bool {
	return k == EventApproved || k == EventRenewed
}

// Required fields of a PurchaseEvent, as reported in NormalizeResult.Missing.
const (
	FieldEmail         = "email"
	FieldTransactionID = "transactionId"
	FieldEventKind     = "eventKind"
)

// PurchaseEvent is the provider-agnostic view of one webhook delivery.
type PurchaseEvent struct {
	Email          string     `json:"email"`
	Name           string     `json:"name,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	TransactionID  string     `json:"transactionId"`
	EventKind      EventKind  `json:"eventKind"`
	PlanIdentifier string     `json:"planIdentifier,omitempty"`
	// PlanCandidates lists every identifier the payload carries for the
	// purchased plan, most specific first. PlanIdentifier is the first one.
	PlanCandidates []string   `json:"planCandidates,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	IsLifetime     bool       `json:"isLifetime"`
	PurchasedAt    *time.Time `json:"purchasedAt,omitempty"`
	RawEventType   string     `json:"rawEventType,omitempty"`
	SchemaVersion  string     `json:"schemaVersion,omitempty"`
	PlanHint       string     `json:"planHint,omitempty"`
}

// NormalizeResult is the outcome of normalizing one payload. Missing lists
// the required fields that neither the schema table nor the deep search found.
type NormalizeResult struct {
	Event   PurchaseEvent
	Missing []string
}

// Complete reports whether every required field was resolved.
func (r NormalizeResult) Complete() bool {
	return len(r.Missing) == 0
}

func (r NormalizeResult) missingList() string {
	return strings.Join(r.Missing, ", ")
}

// Receipt is what the ingress knows about a delivery before any processing.
type Receipt struct {
	Provider  string
	Body      []byte
	Signature CapturedSignature
	Headers   map[string]string
	SourceIP  string
}
