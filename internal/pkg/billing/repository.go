package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"github.com/ManuelReschke/PixelMarket/app/repository"
)

// Repository provides the storage operations used by the webhook service.
type Repository interface {
	CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error
	GetWebhookLog(ctx context.Context, id uint) (*models.WebhookLog, error)
	AnnotateWebhookLog(ctx context.Context, id uint, ev PurchaseEvent) error
	FinishWebhookLog(ctx context.Context, id uint, outcome Outcome) (bool, error)
	RecentWebhookLogs(ctx context.Context, limit int) ([]models.WebhookLog, error)
	StaleWebhookLogs(ctx context.Context, cutoff time.Time, limit int) ([]uint, error)
	CountWebhookLogs(ctx context.Context) ([]repository.WebhookLogCount, error)
	CountActiveMappings(ctx context.Context) (map[string]int64, error)
	// WithinTransaction runs fn in one database transaction; an error
	// returned by fn rolls everything back, the event claim included.
	WithinTransaction(ctx context.Context, fn func(tx TxRepository) error) error
}

// TxRepository is the transactional view used while applying an event.
type TxRepository interface {
	// ClaimEvent takes the dedup key. When it is already held, claimed is
	// false and holder is the log that applied the event.
	ClaimEvent(source, transactionID string, kind EventKind, logID uint) (claimed bool, holder uint, err error)
	FindActiveMapping(provider, providerProductID string) (*models.ProductMapping, error)
	FindUserByEmail(email string) (*models.User, error)
	// FindCommittedUserByEmail is a locking read that also sees accounts
	// committed by concurrent transactions after this one started.
	FindCommittedUserByEmail(email string) (*models.User, error)
	UsernameExists(name string) (bool, error)
	CreateUserIfNotExists(user *models.User) (bool, error)
	SaveUser(user *models.User) error
	AppendSubscription(sub *models.Subscription) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a webhook repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) repos(ctx context.Context) *repository.Repositories {
	return repository.NewRepositories(r.db.WithContext(ctx))
}

func (r *gormRepository) CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error {
	return r.repos(ctx).WebhookLog.Create(entry)
}

func (r *gormRepository) GetWebhookLog(ctx context.Context, id uint) (*models.WebhookLog, error) {
	return r.repos(ctx).WebhookLog.GetByID(id)
}

func (r *gormRepository) AnnotateWebhookLog(ctx context.Context, id uint, ev PurchaseEvent) error {
	return r.repos(ctx).WebhookLog.Annotate(id, repository.WebhookLogAnnotation{
		EventType:     ev.RawEventType,
		EventKind:     string(ev.EventKind),
		Email:         ev.Email,
		TransactionID: ev.TransactionID,
	})
}

func (r *gormRepository) FinishWebhookLog(ctx context.Context, id uint, o Outcome) (bool, error) {
	return r.repos(ctx).WebhookLog.Finish(id, repository.WebhookLogOutcome{
		Status:        o.Status,
		ErrorKind:     string(o.ErrorKind),
		ErrorMessage:  o.Message,
		DuplicateOfID: o.DuplicateOfID,
		UserID:        o.UserID,
	})
}

func (r *gormRepository) RecentWebhookLogs(ctx context.Context, limit int) ([]models.WebhookLog, error) {
	return r.repos(ctx).WebhookLog.Recent(limit)
}

func (r *gormRepository) StaleWebhookLogs(ctx context.Context, cutoff time.Time, limit int) ([]uint, error) {
	return r.repos(ctx).WebhookLog.ListReceivedBefore(cutoff, limit)
}

func (r *gormRepository) CountWebhookLogs(ctx context.Context) ([]repository.WebhookLogCount, error) {
	return r.repos(ctx).WebhookLog.CountByProviderAndStatus()
}

func (r *gormRepository) CountActiveMappings(ctx context.Context) (map[string]int64, error) {
	return r.repos(ctx).ProductMapping.CountActiveByProvider()
}

func (r *gormRepository) WithinTransaction(ctx context.Context, fn func(tx TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxRepository{repos: repository.NewRepositories(tx)})
	})
}

type gormTxRepository struct {
	repos *repository.Repositories
}

func (t *gormTxRepository) ClaimEvent(source, transactionID string, kind EventKind, logID uint) (bool, uint, error) {
	claimed, stored, err := t.repos.Claim.Claim(&models.WebhookEventClaim{
		Source:        source,
		TransactionID: transactionID,
		EventKind:     string(kind),
		WebhookLogID:  logID,
	})
	if err != nil {
		return false, 0, err
	}
	return claimed, stored.WebhookLogID, nil
}

func (t *gormTxRepository) FindActiveMapping(provider, providerProductID string) (*models.ProductMapping, error) {
	m, err := t.repos.ProductMapping.FindActive(provider, providerProductID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return m, err
}

func (t *gormTxRepository) FindUserByEmail(email string) (*models.User, error) {
	u, err := t.repos.User.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return u, err
}

func (t *gormTxRepository) FindCommittedUserByEmail(email string) (*models.User, error) {
	u, err := t.repos.User.GetByEmailLocked(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return u, err
}

func (t *gormTxRepository) UsernameExists(name string) (bool, error) {
	return t.repos.User.NameExists(name)
}

func (t *gormTxRepository) CreateUserIfNotExists(user *models.User) (bool, error) {
	return t.repos.User.CreateIfNotExists(user)
}

func (t *gormTxRepository) SaveUser(user *models.User) error {
	return t.repos.User.Save(user)
}

func (t *gormTxRepository) AppendSubscription(sub *models.Subscription) error {
	return t.repos.Subscription.Create(sub)
}
