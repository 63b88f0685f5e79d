package repository

import (
	"errors"
	"strings"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// CreateIfNotExists inserts user unless a row with the same email or name
// exists. It reports whether this call inserted the row.
func (r *userRepository) CreateIfNotExists(user *models.User) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email address, ignoring case
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmailLocked reads the latest committed row for email with a shared
// lock. Inside a REPEATABLE READ transaction a plain read returns the
// transaction's snapshot and misses rows committed by concurrent creators.
func (r *userRepository) GetByEmailLocked(email string) (*models.User, error) {
	var user models.User
	err := r.db.Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// NameExists reports whether a username is taken
func (r *userRepository) NameExists(name string) (bool, error) {
	var user models.User
	err := r.db.Select("id").Where("name = ?", name).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Save writes every column of user
func (r *userRepository) Save(user *models.User) error {
	return r.db.Save(user).Error
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}
