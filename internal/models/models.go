package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Name        string    `gorm:"unique;not null;index"    json:"name"`
	Description string    `json:"description"`
	Users       []User    `gorm:"foreignKey:RoleID"        json:"-"`
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Username     string    `gorm:"unique;not null;index" json:"username"`
	PasswordHash string    `gorm:"not null"              json:"-"`
	RoleID       uuid.UUID `gorm:"type:uuid"             json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Images       []Image   `gorm:"foreignKey:UserID"     json:"-"`
}

type Image struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Name     string    `gorm:"not null"              json:"name"`
	Size     int64     `gorm:"not null"              json:"size"`
	Location string    `gorm:"unique;not null"       json:"location"`
	UserID   uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
