package billing

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PixelMarket/app/models"
)

const (
	maxUsernameLen      = 140
	maxUsernameSuffix   = 50
	maxCreateAttempts   = 3
	shortUsernamePrefix = "member-"
)

var usernameSanitizer = regexp.MustCompile(`[^a-z0-9._-]+`)

// Resolution is how the resolver found the account for an event.
type Resolution string

const (
	ResolvedExisting Resolution = "existing"
	ResolvedCreated  Resolution = "created"
	// ResolvedAbsent means no account exists and the event may not create
	// one (cancellation or refund for an unknown buyer).
	ResolvedAbsent Resolution = "absent"
)

// ResolveResult is the account for an event and how it was obtained.
type ResolveResult struct {
	User           *models.User
	Resolution     Resolution
	ProfileUpdated bool
}

// Resolver finds or creates the account a purchase event belongs to.
type Resolver struct{}

// Resolve looks the buyer up by email. Existing accounts only get empty
// name/phone filled in. Unknown buyers get an account for approvals and
// renewals; for other kinds the result is ResolvedAbsent and no row is written.
// Storage failures are returned as UserResolutionError.
func (Resolver) Resolve(tx TxRepository, ev PurchaseEvent) (ResolveResult, error) {
	email := normalizeEmail(ev.Email)

	u, err := tx.FindUserByEmail(email)
	if err != nil {
		return ResolveResult{}, wrapPipelineError(KindUserResolution, err)
	}
	if u != nil {
		return ResolveResult{User: u, Resolution: ResolvedExisting, ProfileUpdated: fillProfile(u, ev)}, nil
	}

	if !ev.EventKind.Grants() {
		log.Warnf("[Webhook] %s for unknown account %s ignored", ev.EventKind, email)
		return ResolveResult{Resolution: ResolvedAbsent}, nil
	}

	u, created, err := createAccount(tx, email, ev)
	if err != nil {
		return ResolveResult{}, wrapPipelineError(KindUserResolution, err)
	}
	if !created {
		// A concurrent delivery created the account first.
		return ResolveResult{User: u, Resolution: ResolvedExisting, ProfileUpdated: fillProfile(u, ev)}, nil
	}
	return ResolveResult{User: u, Resolution: ResolvedCreated}, nil
}

// fillProfile copies name and phone from the event only where the account
// has none; user-edited profile data is never overwritten.
func fillProfile(u *models.User, ev PurchaseEvent) bool {
	changed := false
	if strings.TrimSpace(u.FullName) == "" && ev.Name != "" {
		u.FullName = truncateString(ev.Name, 200)
		changed = true
	}
	if strings.TrimSpace(u.Phone) == "" && ev.Phone != "" {
		u.Phone = truncateString(ev.Phone, 50)
		changed = true
	}
	return changed
}

// createAccount inserts the account with insert-ignore semantics and
// re-reads it with a locking read, so concurrent deliveries converge on one
// row even under REPEATABLE READ. The bool reports whether this call
// inserted the row. A conflict on the username alone retries with the next
// free name.
func createAccount(tx TxRepository, email string, ev PurchaseEvent) (*models.User, bool, error) {
	base := UsernameFromEmail(email)

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		name, err := nextFreeUsername(tx, base)
		if err != nil {
			return nil, false, err
		}

		candidate, err := models.CreateSubscriber(name, email, truncateString(ev.Phone, 50))
		if err != nil {
			return nil, false, fmt.Errorf("build account for %s: %w", email, err)
		}
		candidate.FullName = truncateString(ev.Name, 200)

		inserted, err := tx.CreateUserIfNotExists(candidate)
		if err != nil {
			return nil, false, fmt.Errorf("insert account for %s: %w", email, err)
		}

		u, err := tx.FindCommittedUserByEmail(email)
		if err != nil {
			return nil, false, err
		}
		if u != nil {
			return u, inserted, nil
		}
	}
	return nil, false, fmt.Errorf("could not allocate a username for %s", email)
}

// UsernameFromEmail derives a username from the local part of email.
func UsernameFromEmail(email string) string {
	local := strings.ToLower(strings.TrimSpace(email))
	if at := strings.Index(local, "@"); at >= 0 {
		local = local[:at]
	}
	if plus := strings.Index(local, "+"); plus > 0 {
		local = local[:plus]
	}
	local = strings.Trim(usernameSanitizer.ReplaceAllString(local, "-"), "-._")
	if len(local) < 3 {
		local = strings.TrimSuffix(shortUsernamePrefix+local, "-")
	}
	return truncateString(local, maxUsernameLen)
}

func nextFreeUsername(tx TxRepository, base string) (string, error) {
	for i := 1; i <= maxUsernameSuffix; i++ {
		name := base
		if i > 1 {
			name = fmt.Sprintf("%s-%d", base, i)
		}
		taken, err := tx.UsernameExists(name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free username for %s", base)
}

// truncateString trims s and cuts it to at most max bytes on a rune
// boundary. Invalid UTF-8 is dropped.
func truncateString(s string, max int) string {
	s = strings.ToValidUTF8(strings.TrimSpace(s), "")
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
