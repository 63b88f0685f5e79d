package billing

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

// Normalizer turns raw provider payloads into PurchaseEvents.
type Normalizer struct {
	adapters map[string]Adapter
}

// NewNormalizer registers adapters by provider name.
func NewNormalizer(adapters ...Adapter) *Normalizer {
	n := &Normalizer{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		n.adapters[a.Provider()] = a
	}
	return n
}

// Adapter returns the adapter registered for provider.
func (n *Normalizer) Adapter(provider string) (Adapter, bool) {
	a, ok := n.adapters[strings.ToLower(strings.TrimSpace(provider))]
	return a, ok
}

// Normalize extracts a PurchaseEvent from raw. Explicit schema paths are
// tried first; email, transaction id and event kind fall back to a deep
// search. The only errors are an unknown provider and an unparsable body
// (TransportError); missing fields are reported in the result instead.
func (n *Normalizer) Normalize(provider string, raw []byte) (res NormalizeResult, err error) {
	a, ok := n.Adapter(provider)
	if !ok {
		return NormalizeResult{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Webhook] normalizer panic for %s: %v", provider, r)
			res, err = NormalizeResult{}, newPipelineError(KindExtraction, "normalizer failure: %v", r)
		}
	}()

	root, perr := ParsePayload(raw)
	if perr != nil {
		return NormalizeResult{}, &PipelineError{Kind: KindTransport, Err: perr}
	}

	return normalizeTree(a, root), nil
}

func normalizeTree(a Adapter, root *Node) NormalizeResult {
	schema := a.DetectSchema(root)
	paths := a.Paths(schema, root)

	ev := PurchaseEvent{SchemaVersion: schema}

	for _, p := range paths.Email {
		if v := normalizeEmail(root.Get(p).String()); looksLikeEmail(v) {
			ev.Email = v
			break
		}
	}
	ev.Name = root.firstString(paths.Name)
	ev.Phone = root.firstString(paths.Phone)
	ev.TransactionID = root.firstString(paths.Transaction)
	ev.RawEventType = root.firstString(paths.EventType)
	ev.EventKind = a.EventKind(schema, ev.RawEventType, root)
	ev.PlanCandidates = root.allStrings(paths.Plan)
	if len(ev.PlanCandidates) > 0 {
		ev.PlanIdentifier = ev.PlanCandidates[0]
	}
	ev.ExpirationDate = firstTimestamp(root, paths.Expiration)
	ev.PurchasedAt = firstTimestamp(root, paths.PurchasedAt)
	ev.PlanHint = root.firstString(paths.PlanHint)
	for _, p := range paths.Lifetime {
		if root.Get(p).Truthy() {
			ev.IsLifetime = true
			break
		}
	}

	a.Finish(schema, root, &ev)

	// Deep search for whatever the schema table could not resolve.
	if ev.Email == "" {
		ev.Email = findEmail(root)
	}
	if ev.TransactionID == "" {
		ev.TransactionID = findTransactionID(root)
	}
	if ev.EventKind == "" {
		kind, raw := findEventKind(root)
		ev.EventKind = kind
		if ev.RawEventType == "" {
			ev.RawEventType = raw
		}
	}

	res := NormalizeResult{Event: ev}
	if ev.Email == "" {
		res.Missing = append(res.Missing, FieldEmail)
	}
	if ev.TransactionID == "" {
		res.Missing = append(res.Missing, FieldTransactionID)
	}
	if ev.EventKind == "" {
		res.Missing = append(res.Missing, FieldEventKind)
	}
	return res
}
