package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/elishakaranja/Mindset-coach/internal/common"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, u *User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: email already registered", common.ErrConflict)
	}
	return err
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user", common.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) UpdatePersonality(ctx context.Context, id uint64, key string) error {
	return r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("selected_personality", key).Error
}
