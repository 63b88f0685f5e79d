package billing

import (
	"strings"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

const schemaKiwify = "kiwify.v1"

var kiwifyEvents = map[string]EventKind{
	"order_approved":        EventApproved,
	"paid":                  EventApproved,
	"approved":              EventApproved,
	"subscription_renewed":  EventRenewed,
	"subscription_canceled": EventCancelled,
	"canceled":              EventCancelled,
	"order_refunded":        EventRefunded,
	"refunded":              EventRefunded,
	"chargeback":            EventRefunded,
	"chargedback":           EventRefunded,
	"order_rejected":        EventUnknown,
	"refused":               EventUnknown,
	"waiting_payment":       EventUnknown,
	"pix_created":           EventUnknown,
	"billet_created":        EventUnknown,
	"subscription_late":     EventUnknown,
}

type kiwifyAdapter struct{}

func (kiwifyAdapter) Provider() string { return models.WebhookSourceKiwify }

func (kiwifyAdapter) SignatureSources() []SignatureSource {
	return []SignatureSource{
		{Header: "X-Kiwify-Signature", Query: "signature", Scheme: SchemeHMACSHA1},
	}
}

func (kiwifyAdapter) DetectSchema(*Node) string { return schemaKiwify }

func (kiwifyAdapter) Paths(string, *Node) FieldPaths {
	return FieldPaths{
		Email:       []string{"Customer.email"},
		Name:        []string{"Customer.full_name", "Customer.first_name"},
		Phone:       []string{"Customer.mobile"},
		Transaction: []string{"order_id", "order_ref"},
		EventType:   []string{"webhook_event_type", "order_status"},
		Plan:        []string{"Subscription.plan.id", "Product.product_id"},
		Expiration:  []string{"Subscription.next_payment", "Subscription.customer_access.access_until"},
		PurchasedAt: []string{"approved_date", "created_at"},
		PlanHint:    []string{"Subscription.plan.frequency", "Subscription.plan.name"},
	}
}

func (kiwifyAdapter) EventKind(_ string, rawType string, _ *Node) EventKind {
	return kindFromTable(kiwifyEvents, rawType)
}

// Finish treats a paid order whose subscription already charged more than
// once as a renewal.
func (kiwifyAdapter) Finish(_ string, root *Node, ev *PurchaseEvent) {
	if ev.EventKind != EventApproved {
		return
	}
	charges := root.Get("Subscription.charges.completed")
	if charges != nil && charges.Type == NodeArray && len(charges.Items) > 1 {
		ev.EventKind = EventRenewed
	}
	if strings.EqualFold(ev.PlanHint, "lifetime") {
		ev.IsLifetime = true
	}
}
