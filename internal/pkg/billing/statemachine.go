package billing

import (
	"time"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/entitlements"
)

// SubscriptionState is the subscription view of an account.
type SubscriptionState string

const (
	StateUnsubscribed        SubscriptionState = "Unsubscribed"
	StateActivePeriodic      SubscriptionState = "ActivePeriodic"
	StateActiveLifetime      SubscriptionState = "ActiveLifetime"
	StateCancelledOrRefunded SubscriptionState = "CancelledOrRefunded"
	StateAdministrative      SubscriptionState = "Administrative"
)

// CurrentState derives the state of u at now. A nil user is Unsubscribed.
func CurrentState(u *models.User, now time.Time) SubscriptionState {
	if u == nil {
		return StateUnsubscribed
	}
	if entitlements.IsAdministrative(u.AccessLevel) {
		return StateAdministrative
	}
	if entitlements.NormalizeLevel(u.AccessLevel) == entitlements.LevelPremium {
		if u.LifetimeAccess {
			return StateActiveLifetime
		}
		if u.ExpirationDate != nil && u.ExpirationDate.After(now) {
			return StateActivePeriodic
		}
	}
	if u.ExpirationDate != nil {
		return StateCancelledOrRefunded
	}
	return StateUnsubscribed
}

// Transition is the state machine's verdict for one event. A transition
// with Apply=false is a no-op explained by Reason.
type Transition struct {
	From   SubscriptionState
	To     SubscriptionState
	Apply  bool
	Reason string

	AccessLevel           string
	PlanType              string
	SubscriptionSource    string
	SubscriptionStartDate *time.Time
	ExpirationDate        *time.Time
	LifetimeAccess        bool
}

// ApplyTo writes the transition onto u. No-ops leave u untouched.
func (t Transition) ApplyTo(u *models.User) {
	if !t.Apply {
		return
	}
	u.AccessLevel = t.AccessLevel
	u.PlanType = t.PlanType
	u.SubscriptionSource = t.SubscriptionSource
	u.SubscriptionStartDate = t.SubscriptionStartDate
	u.ExpirationDate = t.ExpirationDate
	u.LifetimeAccess = t.LifetimeAccess
}

// StateMachine computes subscription transitions. It never touches storage.
type StateMachine struct {
	now func() time.Time
}

func NewStateMachine(now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{now: now}
}

// Next computes the transition of u for ev. planType is the mapped plan and
// is required for approvals and renewals. u may be nil for a new account.
func (sm *StateMachine) Next(u *models.User, ev PurchaseEvent, source, planType string) (Transition, error) {
	now := sm.now().UTC()
	from := CurrentState(u, now)
	t := Transition{From: from, To: from}

	if from == StateAdministrative {
		t.Reason = "administrative account, subscription left untouched"
		return t, nil
	}

	switch ev.EventKind {
	case EventApproved:
		return sm.activate(t, u, ev, source, planType, now, false)

	case EventRenewed:
		if from == StateActiveLifetime {
			t.Reason = "lifetime access already granted, renewal ignored"
			return t, nil
		}
		return sm.activate(t, u, ev, source, planType, now, true)

	case EventCancelled, EventRefunded:
		if u == nil {
			return t, newPipelineError(KindStateTransition, "%s for unknown account", ev.EventKind)
		}
		t.Apply = true
		t.To = StateCancelledOrRefunded
		t.AccessLevel = models.ACCESS_BASELINE
		t.PlanType = u.PlanType
		t.SubscriptionSource = ""
		t.SubscriptionStartDate = u.SubscriptionStartDate
		t.ExpirationDate = &now
		t.LifetimeAccess = false
		return t, nil
	}

	return t, newPipelineError(KindStateTransition, "unsupported event kind %q", ev.EventKind)
}

// activate grants premium access. Approvals always start a new period from
// the purchase date; renewals prefer the provider's expiration and keep the
// start date of a running periodic subscription.
func (sm *StateMachine) activate(t Transition, u *models.User, ev PurchaseEvent, source, planType string, now time.Time, renewal bool) (Transition, error) {
	plan := normalizePlanType(planType)
	if ev.IsLifetime {
		plan = models.PlanTypeLifetime
	}
	if plan == "" {
		return t, newPipelineError(KindStateTransition, "plan %q is not mapped to a plan type", ev.PlanIdentifier)
	}

	start := now
	if ev.PurchasedAt != nil {
		start = ev.PurchasedAt.UTC()
	}

	t.Apply = true
	t.AccessLevel = models.ACCESS_PREMIUM
	t.PlanType = plan
	t.SubscriptionSource = source

	if plan == models.PlanTypeLifetime {
		t.To = StateActiveLifetime
		t.SubscriptionStartDate = &start
		t.ExpirationDate = nil
		t.LifetimeAccess = true
		return t, nil
	}

	t.To = StateActivePeriodic
	t.LifetimeAccess = false
	t.SubscriptionStartDate = &start
	t.ExpirationDate = expirationFor(plan, start)

	if renewal {
		if t.From == StateActivePeriodic && u.SubscriptionStartDate != nil {
			kept := *u.SubscriptionStartDate
			t.SubscriptionStartDate = &kept
		}
		if ev.ExpirationDate != nil && ev.ExpirationDate.After(start) {
			exp := ev.ExpirationDate.UTC()
			t.ExpirationDate = &exp
		}
	}
	return t, nil
}
