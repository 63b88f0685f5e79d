package billing

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/database"
)

func resolveIn(t *testing.T, db *gorm.DB, ev PurchaseEvent) (ResolveResult, error) {
	t.Helper()
	var (
		res ResolveResult
		err error
	)
	txErr := NewRepository(db).WithinTransaction(context.Background(), func(tx TxRepository) error {
		res, err = Resolver{}.Resolve(tx, ev)
		return nil
	})
	require.NoError(t, txErr)
	return res, err
}

func TestUsernameFromEmail(t *testing.T) {
	tests := map[string]string{
		"Jane.Doe+promo@Example.com": "jane.doe",
		"ana_souza@example.com":      "ana_souza",
		"a@example.com":              "member-a",
		"!!@example.com":             "member",
		"josé@example.com":           "jos",
		"first last@example.com":     "first-last",
	}
	for in, want := range tests {
		assert.Equal(t, want, UsernameFromEmail(in), in)
	}
}

func TestResolveFindsExistingAccountIgnoringCase(t *testing.T) {
	db := database.NewTestDB(t)
	existing := &models.User{Name: "jane", Email: "jane@example.com", FullName: "Jane Kept", Password: "x", Status: models.STATUS_ACTIVE, AccessLevel: models.ACCESS_BASELINE}
	require.NoError(t, db.Create(existing).Error)

	res, err := resolveIn(t, db, PurchaseEvent{Email: "JANE@example.com", Name: "Other Name", Phone: "555", EventKind: EventApproved})
	require.NoError(t, err)

	assert.Equal(t, ResolvedExisting, res.Resolution)
	assert.Equal(t, existing.ID, res.User.ID)
	assert.Equal(t, "Jane Kept", res.User.FullName, "profile data is never overwritten")
	assert.Equal(t, "555", res.User.Phone, "empty profile fields are filled")
	assert.True(t, res.ProfileUpdated)
}

func TestResolveCreatesAccountWithFreeUsername(t *testing.T) {
	db := database.NewTestDB(t)
	require.NoError(t, db.Create(&models.User{Name: "jane", Email: "jane@other.com", Password: "x", Status: models.STATUS_ACTIVE, AccessLevel: models.ACCESS_BASELINE}).Error)

	res, err := resolveIn(t, db, PurchaseEvent{Email: "jane@example.com", Name: "Jane Buyer", EventKind: EventRenewed})
	require.NoError(t, err)

	assert.Equal(t, ResolvedCreated, res.Resolution)
	require.NotNil(t, res.User)
	assert.Equal(t, "jane-2", res.User.Name)
	assert.Equal(t, "jane@example.com", res.User.Email)
	assert.Equal(t, "Jane Buyer", res.User.FullName)
	assert.Equal(t, models.STATUS_INACTIVE, res.User.Status)
	assert.Equal(t, models.ACCESS_BASELINE, res.User.AccessLevel)
	assert.NotEmpty(t, res.User.ActivationToken)
	assert.NotEmpty(t, res.User.Password)
}

func TestResolveNeverCreatesForCancellation(t *testing.T) {
	db := database.NewTestDB(t)

	for _, kind := range []EventKind{EventCancelled, EventRefunded} {
		res, err := resolveIn(t, db, PurchaseEvent{Email: "ghost@example.com", EventKind: kind})
		require.NoError(t, err)
		assert.Equal(t, ResolvedAbsent, res.Resolution)
		assert.Nil(t, res.User)
	}

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTruncateStringKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"  plain  ", 10, "plain"},
		{"abcdef", 3, "abc"},
		{"aé", 2, "a"},
		{"éé", 3, "é"},
		{"日本", 4, "日"},
		{"ok\xffgo", 10, "okgo"},
	}
	for _, tt := range tests {
		got := truncateString(tt.in, tt.max)
		assert.Equal(t, tt.want, got, tt.in)
		assert.True(t, utf8.ValidString(got), tt.in)
	}
}

func TestFillProfileCutsLongAccentedName(t *testing.T) {
	u := &models.User{}
	name := strings.Repeat("a", 199) + "é"

	require.True(t, fillProfile(u, PurchaseEvent{Name: name}))
	assert.True(t, utf8.ValidString(u.FullName))
	assert.Equal(t, strings.Repeat("a", 199), u.FullName)
}

// staleSnapshotTx answers plain reads from a snapshot taken before a
// concurrent transaction committed the buyer's account.
type staleSnapshotTx struct {
	TxRepository
	inserts int
}

func (s *staleSnapshotTx) FindUserByEmail(string) (*models.User, error) {
	return nil, nil
}

func (s *staleSnapshotTx) CreateUserIfNotExists(*models.User) (bool, error) {
	s.inserts++
	return false, nil
}

func TestResolveConvergesOnAccountCommittedConcurrently(t *testing.T) {
	db := database.NewTestDB(t)
	winner := &models.User{Name: "jane", Email: "jane@example.com", Password: "x", Status: models.STATUS_INACTIVE, AccessLevel: models.ACCESS_BASELINE}
	require.NoError(t, db.Create(winner).Error)

	var (
		res   ResolveResult
		err   error
		stale *staleSnapshotTx
	)
	require.NoError(t, NewRepository(db).WithinTransaction(context.Background(), func(tx TxRepository) error {
		stale = &staleSnapshotTx{TxRepository: tx}
		res, err = Resolver{}.Resolve(stale, PurchaseEvent{Email: "jane@example.com", Phone: "5511", EventKind: EventApproved})
		return nil
	}))

	require.NoError(t, err)
	assert.Equal(t, 1, stale.inserts)
	assert.Equal(t, ResolvedExisting, res.Resolution)
	require.NotNil(t, res.User)
	assert.Equal(t, winner.ID, res.User.ID)
	assert.Equal(t, "5511", res.User.Phone)
	assert.True(t, res.ProfileUpdated)

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
