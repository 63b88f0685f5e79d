package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	ACCESS_BASELINE = "baseline"
	ACCESS_PREMIUM  = "premium"
	ACCESS_DESIGNER = "designer"
	ACCESS_SUPPORT  = "support"
	ACCESS_ADMIN    = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User is the account record shared with the auth subsystem. The webhook
// engine only touches the subscription fields and fills empty profile data.
type User struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Name                  string     `gorm:"type:varchar(150);uniqueIndex" json:"name" validate:"required,min=3,max=150"`
	Email                 string     `gorm:"type:varchar(200);uniqueIndex" json:"email" validate:"required,email,min=5,max=200"`
	FullName              string     `gorm:"type:varchar(200);default:null" json:"full_name" validate:"max=200"`
	Phone                 string     `gorm:"type:varchar(50);default:null" json:"phone" validate:"max=50"`
	Password              string     `gorm:"type:text" json:"-" validate:"required"`
	Status                string     `gorm:"type:varchar(50);default:'inactive'" json:"status" validate:"oneof=active inactive disabled"`
	AccessLevel           string     `gorm:"type:varchar(20);not null;default:'baseline';index" json:"access_level" validate:"oneof=baseline premium designer support admin"`
	PlanType              string     `gorm:"type:varchar(20);default:null" json:"plan_type"`
	SubscriptionSource    string     `gorm:"type:varchar(20);default:null;index" json:"subscription_source"`
	SubscriptionStartDate *time.Time `gorm:"type:timestamp;default:null" json:"subscription_start_date,omitempty"`
	ExpirationDate        *time.Time `gorm:"type:timestamp;default:null;index" json:"expiration_date,omitempty"`
	LifetimeAccess        bool       `gorm:"default:false" json:"lifetime_access"`
	ActivationToken       string     `gorm:"type:varchar(100);index" json:"-"`
	ActivationSentAt      *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	LastLoginAt           *time.Time `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateSubscriber builds an inactive baseline account for a buyer that has
// no account yet. The password is a throwaway hash; the auth subsystem issues
// real credentials through the activation token.
func CreateSubscriber(username, email, phone string) (*User, error) {
	secret, err := randomHex(24)
	if err != nil {
		return nil, err
	}
	pw, err := HashPassword(secret)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:        username,
		Email:       email,
		Phone:       phone,
		Password:    pw,
		Status:      STATUS_INACTIVE,
		AccessLevel: ACCESS_BASELINE,
	}
	if err := u.GenerateActivationToken(); err != nil {
		return nil, err
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// GenerateActivationToken creates a random token and sets ActivationSentAt
func (u *User) GenerateActivationToken() error {
	token, err := randomHex(16)
	if err != nil {
		return err
	}
	u.ActivationToken = token
	now := time.Now()
	u.ActivationSentAt = &now
	return nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
