package repository

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/database"
)

func newUser(name, email string) *models.User {
	return &models.User{Name: name, Email: email, Password: "x", Status: models.STATUS_INACTIVE, AccessLevel: models.ACCESS_BASELINE}
}

func TestUserRepositoryGetByEmailIgnoresCase(t *testing.T) {
	repo := NewUserRepository(database.NewTestDB(t))
	require.NoError(t, repo.Create(newUser("jane", "jane@example.com")))

	u, err := repo.GetByEmail("  JANE@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "jane", u.Name)

	_, err = repo.GetByEmail("nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	u, err = repo.GetByEmailLocked("Jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane", u.Name)

	_, err = repo.GetByEmailLocked("nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepositoryCreateIfNotExists(t *testing.T) {
	repo := NewUserRepository(database.NewTestDB(t))

	created, err := repo.CreateIfNotExists(newUser("jane", "jane@example.com"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfNotExists(newUser("jane-2", "jane@example.com"))
	require.NoError(t, err)
	assert.False(t, created)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUserRepositoryNameExists(t *testing.T) {
	repo := NewUserRepository(database.NewTestDB(t))
	require.NoError(t, repo.Create(newUser("jane", "jane@example.com")))

	exists, err := repo.NameExists("jane")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.NameExists("john")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWebhookLogFinishHappensOnce(t *testing.T) {
	repo := NewWebhookLogRepository(database.NewTestDB(t))
	entry := &models.WebhookLog{Source: "hotmart", RawPayload: []byte(`{}`)}
	require.NoError(t, repo.Create(entry))
	require.NotZero(t, entry.ID)

	done, err := repo.Finish(entry.ID, WebhookLogOutcome{Status: models.WebhookStatusProcessed})
	require.NoError(t, err)
	assert.True(t, done)

	done, err = repo.Finish(entry.ID, WebhookLogOutcome{Status: models.WebhookStatusError, ErrorMessage: "late"})
	require.NoError(t, err)
	assert.False(t, done)

	stored, err := repo.GetByID(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookStatusProcessed, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestWebhookLogAnnotateOnlyWhileReceived(t *testing.T) {
	repo := NewWebhookLogRepository(database.NewTestDB(t))
	entry := &models.WebhookLog{Source: "kiwify", RawPayload: []byte(`{}`)}
	require.NoError(t, repo.Create(entry))

	require.NoError(t, repo.Annotate(entry.ID, WebhookLogAnnotation{EventType: "order_approved", EventKind: "approved", Email: "a@b.co", TransactionID: "T1"}))
	_, err := repo.Finish(entry.ID, WebhookLogOutcome{Status: models.WebhookStatusProcessed})
	require.NoError(t, err)
	require.NoError(t, repo.Annotate(entry.ID, WebhookLogAnnotation{Email: "changed@b.co"}))

	stored, err := repo.GetByID(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", stored.Email)
	assert.Equal(t, "T1", stored.TransactionID)
	assert.Equal(t, "approved", stored.EventKind)
}

func TestWebhookLogAnnotateKeepsUTF8Valid(t *testing.T) {
	repo := NewWebhookLogRepository(database.NewTestDB(t))
	entry := &models.WebhookLog{Source: "hotmart", RawPayload: []byte(`{}`)}
	require.NoError(t, repo.Create(entry))

	eventType := strings.Repeat("x", 99) + "ç"
	require.NoError(t, repo.Annotate(entry.ID, WebhookLogAnnotation{EventType: eventType, TransactionID: "T\xff1"}))

	stored, err := repo.GetByID(entry.ID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(stored.EventType))
	assert.Equal(t, strings.Repeat("x", 99), stored.EventType)
	assert.Equal(t, "T1", stored.TransactionID)
}

func TestWebhookLogRecentAndCounts(t *testing.T) {
	repo := NewWebhookLogRepository(database.NewTestDB(t))
	for _, src := range []string{"hotmart", "hotmart", "stripe"} {
		require.NoError(t, repo.Create(&models.WebhookLog{Source: src, RawPayload: []byte(`{"secret":"payload"}`)}))
	}
	_, err := repo.Finish(1, WebhookLogOutcome{Status: models.WebhookStatusError})
	require.NoError(t, err)

	recent, err := repo.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint(3), recent[0].ID)
	assert.Empty(t, recent[0].RawPayload)

	counts, err := repo.CountByProviderAndStatus()
	require.NoError(t, err)
	assert.ElementsMatch(t, []WebhookLogCount{
		{Source: "hotmart", Status: "error", Count: 1},
		{Source: "hotmart", Status: "received", Count: 1},
		{Source: "stripe", Status: "received", Count: 1},
	}, counts)
}

func TestWebhookLogListReceivedBefore(t *testing.T) {
	repo := NewWebhookLogRepository(database.NewTestDB(t))
	old := time.Now().Add(-time.Hour)
	stale := &models.WebhookLog{Source: "hotmart", RawPayload: []byte(`{}`), CreatedAt: old}
	finished := &models.WebhookLog{Source: "hotmart", RawPayload: []byte(`{}`), CreatedAt: old}
	fresh := &models.WebhookLog{Source: "kiwify", RawPayload: []byte(`{}`)}
	for _, e := range []*models.WebhookLog{stale, finished, fresh} {
		require.NoError(t, repo.Create(e))
	}
	_, err := repo.Finish(finished.ID, WebhookLogOutcome{Status: models.WebhookStatusProcessed})
	require.NoError(t, err)

	ids, err := repo.ListReceivedBefore(time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{stale.ID}, ids)
}

func TestClaimIsAtomicPerKey(t *testing.T) {
	repo := NewWebhookEventClaimRepository(database.NewTestDB(t))

	won, stored, err := repo.Claim(&models.WebhookEventClaim{Source: "hotmart", TransactionID: "HP1", EventKind: "approved", WebhookLogID: 10})
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, uint(10), stored.WebhookLogID)

	won, stored, err = repo.Claim(&models.WebhookEventClaim{Source: "hotmart", TransactionID: "HP1", EventKind: "approved", WebhookLogID: 11})
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, uint(10), stored.WebhookLogID)

	won, _, err = repo.Claim(&models.WebhookEventClaim{Source: "hotmart", TransactionID: "HP1", EventKind: "renewed", WebhookLogID: 12})
	require.NoError(t, err)
	assert.True(t, won)
}

func TestProductMappingRepository(t *testing.T) {
	db := database.NewTestDB(t)
	repo := NewProductMappingRepository(db)
	require.NoError(t, repo.Create(&models.ProductMapping{Provider: "hotmart", ProviderProductID: "P1", PlanType: models.PlanTypeMonthly, IsActive: true}))
	require.NoError(t, repo.Create(&models.ProductMapping{Provider: "hotmart", ProviderProductID: "P2", PlanType: models.PlanTypeAnnual, IsActive: true}))
	require.NoError(t, repo.Create(&models.ProductMapping{Provider: "stripe", ProviderProductID: "price_1", PlanType: models.PlanTypeLifetime, IsActive: true}))
	require.NoError(t, db.Model(&models.ProductMapping{}).Where("provider_product_id = ?", "P2").Update("is_active", false).Error)

	m, err := repo.FindActive("hotmart", "P1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanTypeMonthly, m.PlanType)

	_, err = repo.FindActive("hotmart", "P2")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	counts, err := repo.CountActiveByProvider()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"hotmart": 1, "stripe": 1}, counts)
}

func TestSubscriptionHistory(t *testing.T) {
	repo := NewSubscriptionRepository(database.NewTestDB(t))
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(&models.Subscription{UserID: 7, Source: "kiwify", TransactionID: "K1", EventKind: "approved", PlanType: "monthly", StartDate: &start, WebhookLogID: 1}))
	require.NoError(t, repo.Create(&models.Subscription{UserID: 7, Source: "kiwify", TransactionID: "K2", EventKind: "renewed", PlanType: "monthly", WebhookLogID: 2}))

	subs, err := repo.ListByUserID(7)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "K1", subs[0].TransactionID)
}

func TestFactoryReturnsSingletons(t *testing.T) {
	f := NewFactory(database.NewTestDB(t))
	assert.Same(t, f.GetRepositories(), f.GetRepositories())
	assert.NotNil(t, f.GetUserRepository())
	assert.NotNil(t, f.GetWebhookLogRepository())
	assert.NotNil(t, f.GetProductMappingRepository())
}
