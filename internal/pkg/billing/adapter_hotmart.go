package billing

import (
	"strconv"
	"strings"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

const (
	schemaHotmartV2 = "hotmart.v2"
	schemaHotmartV1 = "hotmart.v1"
)

var hotmartEvents = map[string]EventKind{
	"purchase_approved":         EventApproved,
	"purchase_complete":         EventApproved,
	"approved":                  EventApproved,
	"completed":                 EventApproved,
	"purchase_canceled":         EventCancelled,
	"canceled":                  EventCancelled,
	"cancelled":                 EventCancelled,
	"subscription_cancellation": EventCancelled,
	"purchase_refunded":         EventRefunded,
	"refunded":                  EventRefunded,
	"purchase_chargeback":       EventRefunded,
	"chargeback":                EventRefunded,
	"purchase_protest":          EventRefunded,
	"purchase_billet_printed":   EventUnknown,
	"purchase_delayed":          EventUnknown,
	"purchase_expired":          EventUnknown,
	"switch_plan":               EventUnknown,
}

type hotmartAdapter struct{}

func (hotmartAdapter) Provider() string { return models.WebhookSourceHotmart }

func (hotmartAdapter) SignatureSources() []SignatureSource {
	return []SignatureSource{
		{Header: "X-Hotmart-Signature", Scheme: SchemeHMACSHA256},
		{Header: "X-Hotmart-Hottok", Scheme: SchemeToken},
	}
}

func (hotmartAdapter) DetectSchema(root *Node) string {
	if strings.HasPrefix(root.Get("version").String(), "2") {
		return schemaHotmartV2
	}
	if root.Lookup("data").IsObjectWith("buyer", "purchase") {
		return schemaHotmartV2
	}
	return schemaHotmartV1
}

func (hotmartAdapter) Paths(schema string, _ *Node) FieldPaths {
	if schema == schemaHotmartV2 {
		return FieldPaths{
			Email:       []string{"data.buyer.email"},
			Name:        []string{"data.buyer.name"},
			Phone:       []string{"data.buyer.checkout_phone", "data.buyer.phone"},
			Transaction: []string{"data.purchase.transaction"},
			EventType:   []string{"event"},
			Plan:        []string{"data.subscription.plan.id", "data.product.id", "data.product.ucode"},
			Expiration:  []string{"data.purchase.date_next_charge", "data.subscription.date_next_charge"},
			PurchasedAt: []string{"data.purchase.approved_date", "data.purchase.order_date", "creation_date"},
			PlanHint:    []string{"data.subscription.plan.name", "data.product.name"},
		}
	}
	return FieldPaths{
		Email:       []string{"email"},
		Name:        []string{"name", "first_name"},
		Phone:       []string{"phone_checkout_number", "phone_number"},
		Transaction: []string{"transaction"},
		EventType:   []string{"status"},
		Plan:        []string{"subscription_plan_id", "prod"},
		Expiration:  []string{"date_next_charge"},
		PurchasedAt: []string{"purchase_date", "approved_date"},
		PlanHint:    []string{"subscription_plan_name", "prod_name"},
	}
}

func (hotmartAdapter) EventKind(_ string, rawType string, _ *Node) EventKind {
	return kindFromTable(hotmartEvents, rawType)
}

// Finish turns approvals of a subscription's second or later charge into renewals.
func (hotmartAdapter) Finish(schema string, root *Node, ev *PurchaseEvent) {
	if ev.EventKind != EventApproved {
		return
	}
	path := "recurrency"
	if schema == schemaHotmartV2 {
		path = "data.purchase.recurrence_number"
	}
	if n, err := strconv.Atoi(root.Get(path).String()); err == nil && n > 1 {
		ev.EventKind = EventRenewed
	}
}
