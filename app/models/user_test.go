package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSubscriber(t *testing.T) {
	u, err := CreateSubscriber("jane", "jane@example.com", "+49 151 000")
	require.NoError(t, err)

	assert.Equal(t, "jane", u.Name)
	assert.Equal(t, STATUS_INACTIVE, u.Status)
	assert.Equal(t, ACCESS_BASELINE, u.AccessLevel)
	assert.False(t, u.IsActive())
	assert.NotEmpty(t, u.ActivationToken)
	assert.NotNil(t, u.ActivationSentAt)
	assert.NotEmpty(t, u.Password)
	assert.Nil(t, u.ExpirationDate)
	assert.False(t, u.LifetimeAccess)
}

func TestCreateSubscriberRejectsInvalidEmail(t *testing.T) {
	_, err := CreateSubscriber("jane", "not-an-email", "")
	assert.Error(t, err)
}

func TestCreateSubscriberRejectsShortName(t *testing.T) {
	_, err := CreateSubscriber("jo", "jo@example.com", "")
	assert.Error(t, err)
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-value")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("s3cret-value", hash))
	assert.False(t, CheckPasswordHash("other", hash))
}

func TestProductMappingIsLifetime(t *testing.T) {
	assert.True(t, (&ProductMapping{PlanType: PlanTypeLifetime}).IsLifetime())
	assert.False(t, (&ProductMapping{PlanType: PlanTypeAnnual}).IsLifetime())
}

func TestWebhookLogIsTerminal(t *testing.T) {
	l := &WebhookLog{Status: WebhookStatusReceived}
	assert.False(t, l.IsTerminal())

	for _, status := range []string{WebhookStatusProcessed, WebhookStatusSkipped, WebhookStatusError} {
		l.Status = status
		assert.True(t, l.IsTerminal(), status)
	}
}
