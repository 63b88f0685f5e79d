package billing

import (
	"strings"
)

// Deep search fallbacks used when the schema table leaves a required field
// empty. Each returns the first match in document order.

var transactionKeys = map[string]bool{
	"transaction":    true,
	"transaction_id": true,
	"transactionid":  true,
	"order_id":       true,
	"orderid":        true,
	"order_ref":      true,
	"purchase_id":    true,
	"purchaseid":     true,
	"sale_id":        true,
	"payment_id":     true,
	"payment_intent": true,
	"invoice_id":     true,
	"charge_id":      true,
}

func findEmail(root *Node) string {
	var found string
	root.Walk(func(key string, n *Node) bool {
		if n.Type != NodeString || !strings.Contains(strings.ToLower(key), "email") {
			return true
		}
		if v := normalizeEmail(n.Text); looksLikeEmail(v) {
			found = v
			return false
		}
		return true
	})
	return found
}

func findTransactionID(root *Node) string {
	var found string
	root.Walk(func(key string, n *Node) bool {
		if n.Type != NodeString && n.Type != NodeNumber {
			return true
		}
		if !isTransactionKey(key) {
			return true
		}
		if v := n.String(); v != "" {
			found = v
			return false
		}
		return true
	})
	return found
}

func isTransactionKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if transactionKeys[k] {
		return true
	}
	if !strings.Contains(k, "transaction") {
		return false
	}
	for _, skip := range []string{"type", "status", "date", "_at", "count"} {
		if strings.Contains(k, skip) {
			return false
		}
	}
	return true
}

// findEventKind returns the first event-like value the generic vocabulary
// can classify, together with the raw value.
func findEventKind(root *Node) (EventKind, string) {
	var (
		kind EventKind
		raw  string
	)
	root.Walk(func(key string, n *Node) bool {
		if n.Type != NodeString {
			return true
		}
		k := strings.ToLower(key)
		if !strings.Contains(k, "event") && !strings.Contains(k, "status") && !strings.Contains(k, "type") {
			return true
		}
		if c, ok := classifyEventKind(n.Text); ok {
			kind, raw = c, strings.TrimSpace(n.Text)
			return false
		}
		return true
	})
	return kind, raw
}

// classifyEventKind maps free-form provider wording onto an EventKind.
// Negative payment states are checked first so "unpaid" never reads as paid.
func classifyEventKind(value string) (EventKind, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "", false
	}
	for _, neg := range []string{"unpaid", "incomplete", "pending", "waiting", "refused", "declined", "failed", "overdue", "delayed", "printed"} {
		if strings.Contains(v, neg) {
			return "", false
		}
	}
	switch {
	case strings.Contains(v, "refund"), strings.Contains(v, "chargeback"), strings.Contains(v, "chargedback"):
		return EventRefunded, true
	case strings.Contains(v, "cancel"):
		return EventCancelled, true
	case strings.Contains(v, "renew"), strings.Contains(v, "recurr"):
		return EventRenewed, true
	case strings.Contains(v, "approv"), strings.Contains(v, "paid"), strings.Contains(v, "complete"), strings.Contains(v, "succeeded"):
		return EventApproved, true
	}
	return "", false
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func looksLikeEmail(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}

// normalizeEventName lower-cases a provider event name and folds separators
// to underscores: "PURCHASE-APPROVED" and "purchase.approved" both become
// "purchase_approved".
func normalizeEventName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(s)
}
