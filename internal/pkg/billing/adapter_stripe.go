package billing

import (
	"strings"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

const (
	stripeCheckoutCompleted   = "checkout.session.completed"
	stripeInvoicePaid         = "invoice.paid"
	stripeSubscriptionDeleted = "customer.subscription.deleted"
	stripeChargeRefunded      = "charge.refunded"
)

type stripeAdapter struct{}

func (stripeAdapter) Provider() string { return models.WebhookSourceStripe }

func (stripeAdapter) SignatureSources() []SignatureSource {
	return []SignatureSource{{Header: "Stripe-Signature", Scheme: SchemeStripe}}
}

func (stripeAdapter) DetectSchema(root *Node) string {
	if t := root.Get("type").String(); t != "" {
		return "stripe." + t
	}
	return "stripe"
}

// stripeSubscriptionPaths locate the subscription an invoice belongs to,
// across API versions.
var stripeSubscriptionPaths = []string{
	"data.object.subscription",
	"data.object.parent.subscription_details.subscription",
}

// Paths keys a new subscription on its subscription id, so the checkout
// session and the subscription_create invoice of one purchase share a dedup
// key and only the first of them is applied.
func (stripeAdapter) Paths(schema string, root *Node) FieldPaths {
	p := FieldPaths{
		EventType:   []string{"type"},
		PurchasedAt: []string{"data.object.created", "created"},
		Plan:        []string{"data.object.metadata.plan", "data.object.metadata.product_id", "data.object.metadata.price_id"},
		Lifetime:    []string{"data.object.metadata.lifetime"},
	}
	switch strings.TrimPrefix(schema, "stripe.") {
	case stripeCheckoutCompleted:
		p.Email = []string{"data.object.customer_details.email", "data.object.customer_email"}
		p.Name = []string{"data.object.customer_details.name"}
		p.Phone = []string{"data.object.customer_details.phone"}
		p.Transaction = []string{"data.object.subscription", "data.object.payment_intent", "data.object.id"}
	case stripeInvoicePaid:
		p.Email = []string{"data.object.customer_email"}
		p.Name = []string{"data.object.customer_name"}
		p.Phone = []string{"data.object.customer_phone"}
		p.Transaction = []string{"data.object.id"}
		if root.Get("data.object.billing_reason").String() == "subscription_create" {
			p.Transaction = append(append([]string{}, stripeSubscriptionPaths...), p.Transaction...)
		}
		p.Plan = append([]string{
			"data.object.lines.data.0.price.id",
			"data.object.lines.data.0.plan.id",
			"data.object.lines.data.0.pricing.price_details.price",
		}, p.Plan...)
		p.Expiration = []string{"data.object.lines.data.0.period.end"}
		p.PurchasedAt = []string{"data.object.status_transitions.paid_at", "data.object.created", "created"}
		p.PlanHint = []string{"data.object.lines.data.0.price.recurring.interval", "data.object.lines.data.0.plan.interval"}
	case stripeSubscriptionDeleted:
		p.Email = []string{"data.object.metadata.email", "data.object.customer_email"}
		p.Transaction = []string{"data.object.id"}
		p.Plan = append([]string{"data.object.items.data.0.price.id"}, p.Plan...)
	case stripeChargeRefunded:
		p.Email = []string{"data.object.billing_details.email", "data.object.receipt_email"}
		p.Name = []string{"data.object.billing_details.name"}
		p.Transaction = []string{"data.object.payment_intent", "data.object.id"}
	default:
		p.Email = []string{"data.object.customer_email", "data.object.email"}
		p.Transaction = []string{"data.object.id"}
	}
	return p
}

func (stripeAdapter) EventKind(_ string, rawType string, root *Node) EventKind {
	switch rawType {
	case "":
		return ""
	case stripeCheckoutCompleted:
		if root.Get("data.object.payment_status").String() == "unpaid" {
			return EventUnknown
		}
		return EventApproved
	case stripeInvoicePaid:
		switch root.Get("data.object.billing_reason").String() {
		case "subscription_create", "manual":
			return EventApproved
		default:
			return EventRenewed
		}
	case stripeSubscriptionDeleted:
		return EventCancelled
	case stripeChargeRefunded:
		return EventRefunded
	}
	// Every other Stripe event type is informational for this engine.
	return EventUnknown
}

// Finish marks one-time checkout payments flagged as lifetime in metadata.
func (stripeAdapter) Finish(schema string, root *Node, ev *PurchaseEvent) {
	if strings.TrimPrefix(schema, "stripe.") == stripeCheckoutCompleted &&
		root.Get("data.object.mode").String() == "payment" &&
		strings.EqualFold(root.Get("data.object.metadata.plan_type").String(), models.PlanTypeLifetime) {
		ev.IsLifetime = true
	}
}
