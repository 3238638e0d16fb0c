package users

import "time"

type User struct {
	ID                  uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Email               string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash        string    `gorm:"type:varchar(255);not null" json:"-"`
	IsActive            bool      `gorm:"not null;default:true" json:"is_active"`
	SelectedPersonality string    `gorm:"type:varchar(32);not null;default:sophia" json:"selected_personality"`
	CreatedAt           time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }
