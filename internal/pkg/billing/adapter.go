package billing

// FieldPaths lists, per PurchaseEvent field, the explicit paths tried in order.
type FieldPaths struct {
	Email       []string
	Name        []string
	Phone       []string
	Transaction []string
	EventType   []string
	Plan        []string
	Expiration  []string
	PurchasedAt []string
	Lifetime    []string
	PlanHint    []string
}

// Adapter knows one provider's payload dialects.
type Adapter interface {
	// Provider is the path segment and webhook_logs.source value.
	Provider() string
	// SignatureSources lists where the provider puts its signature, preferred first.
	SignatureSources() []SignatureSource
	// DetectSchema names the payload dialect, e.g. "hotmart.v2".
	DetectSchema(root *Node) string
	// Paths returns the explicit field table for schema.
	Paths(schema string, root *Node) FieldPaths
	// EventKind maps the raw provider event name. "" means undetermined.
	EventKind(schema, rawType string, root *Node) EventKind
	// Finish applies provider rules that need more than one field.
	Finish(schema string, root *Node, ev *PurchaseEvent)
}

// DefaultAdapters returns the adapters for every supported provider.
func DefaultAdapters() []Adapter {
	return []Adapter{hotmartAdapter{}, kiwifyAdapter{}, stripeAdapter{}}
}

// kindFromTable looks rawType up in table and falls back to the generic
// vocabulary. A named event neither can classify is EventUnknown.
func kindFromTable(table map[string]EventKind, rawType string) EventKind {
	if rawType == "" {
		return ""
	}
	if k, ok := table[normalizeEventName(rawType)]; ok {
		return k
	}
	if k, ok := classifyEventKind(rawType); ok {
		return k
	}
	return EventUnknown
}
