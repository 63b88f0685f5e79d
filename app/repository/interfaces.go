package repository

import (
	"time"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	CreateIfNotExists(user *models.User) (bool, error)
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByEmailLocked(email string) (*models.User, error)
	NameExists(name string) (bool, error)
	Save(user *models.User) error
	Count() (int64, error)
}

// WebhookLogRepository defines the audit log operations. Finish is the only
// way a log leaves the received status.
type WebhookLogRepository interface {
	Create(entry *models.WebhookLog) error
	GetByID(id uint) (*models.WebhookLog, error)
	Annotate(id uint, annotation WebhookLogAnnotation) error
	Finish(id uint, outcome WebhookLogOutcome) (bool, error)
	Recent(limit int) ([]models.WebhookLog, error)
	ListReceivedBefore(cutoff time.Time, limit int) ([]uint, error)
	CountByProviderAndStatus() ([]WebhookLogCount, error)
}

// WebhookEventClaimRepository guards the dedup key of applied events.
type WebhookEventClaimRepository interface {
	Claim(claim *models.WebhookEventClaim) (bool, *models.WebhookEventClaim, error)
}

// SubscriptionRepository defines the subscription history operations
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	ListByUserID(userID uint) ([]models.Subscription, error)
}

// ProductMappingRepository defines read access to the product/plan mapping
type ProductMappingRepository interface {
	Create(mapping *models.ProductMapping) error
	FindActive(provider, providerProductID string) (*models.ProductMapping, error)
	CountActiveByProvider() (map[string]int64, error)
}

// WebhookLogAnnotation carries what the normalizer learned about a delivery.
type WebhookLogAnnotation struct {
	EventType     string
	EventKind     string
	Email         string
	TransactionID string
}

// WebhookLogOutcome is the terminal state written by Finish.
type WebhookLogOutcome struct {
	Status        string
	ErrorKind     string
	ErrorMessage  string
	DuplicateOfID *uint
	UserID        *uint
	ProcessedAt   time.Time
}

// WebhookLogCount is one row of the provider/status aggregate.
type WebhookLogCount struct {
	Source string `json:"source"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Repositories holds all repository instances
type Repositories struct {
	User           UserRepository
	WebhookLog     WebhookLogRepository
	Claim          WebhookEventClaimRepository
	Subscription   SubscriptionRepository
	ProductMapping ProductMappingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:           NewUserRepository(db),
		WebhookLog:     NewWebhookLogRepository(db),
		Claim:          NewWebhookEventClaimRepository(db),
		Subscription:   NewSubscriptionRepository(db),
		ProductMapping: NewProductMappingRepository(db),
	}
}
