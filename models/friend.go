package models

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

type FriendRequest struct {
	ID          string              `json:"id" gorm:"primaryKey;type:uuid"`
	FromUserID  string              `json:"from_user_id" gorm:"not null;index"`
	ToUserID    string              `json:"to_user_id" gorm:"not null;index"`
	Message     string              `json:"message,omitempty"`
	Status      FriendRequestStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at" gorm:"autoCreateTime"`

	FromUser *UserProfile `json:"from_user,omitempty" gorm:"-"`
}

// Friendship is stored once per direction so "my friends" is a single indexed lookup.
type Friendship struct {
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	FriendID  string    `json:"friend_id" gorm:"primaryKey;index"`
	CreatedAt time.Time `json:"friendship_date" gorm:"autoCreateTime"`
}
