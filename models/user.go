package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

// UserProfile is a local snapshot of the profile service's users.
// Populated by the profile sync worker; read by search, rankings and friend lists.
type UserProfile struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string  `gorm:"index;not null" json:"username"`
	DisplayName    string  `json:"display_name"`
	Email          string  `json:"email,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	// SearchKey is the ASCII-folded, lower-cased username and display name.
	SearchKey string `gorm:"index" json:"-"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *UserProfile) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Name is what other users see.
func (u *UserProfile) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// SearchKeyFor folds names to lower-case ASCII so "Zoë" and "張偉" are searchable as
// "zoe" and "zhang wei".
func SearchKeyFor(names ...string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			parts = append(parts, strings.ToLower(strings.TrimSpace(unidecode.Unidecode(n))))
		}
	}
	return strings.Join(parts, " ")
}
