package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReadingSession is the raw log line posted by the client when a reader leaves an article.
type ReadingSession struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid"`
	ArticleID        string    `json:"article_id" gorm:"not null;index"`
	AuthorID         string    `json:"author_id" gorm:"not null;index"`
	ReaderID         string    `json:"reader_id" gorm:"not null"`
	StartedAt        time.Time `json:"started_at" gorm:"not null"`
	EndedAt          time.Time `json:"ended_at" gorm:"not null"`
	DurationSeconds  int       `json:"duration_seconds"`
	ScrollPercentage float64   `json:"scroll_percentage"`
	IsComplete       bool      `json:"is_complete"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// AuthorReader keeps the latest read per (author, reader). Unique readers inside a
// window are a count over this table rather than over raw sessions.
type AuthorReader struct {
	AuthorID      string    `gorm:"primaryKey"`
	ReaderID      string    `gorm:"primaryKey"`
	LastReadAt    time.Time `gorm:"not null;index"`
	ReadCount     int       `gorm:"not null;default:0"`
	CompleteReads int       `gorm:"not null;default:0"`
}

// AuthorArticle records each article an author has published.
type AuthorArticle struct {
	AuthorID    string    `json:"author_id" gorm:"primaryKey"`
	ArticleID   string    `json:"article_id" gorm:"primaryKey"`
	PublishedAt time.Time `json:"published_at" gorm:"not null;index"`
	TotalReads  int       `json:"total_reads" gorm:"not null;default:0"`
}

type AuthorViolation struct {
	ID          string     `json:"id" gorm:"primaryKey;type:uuid"`
	AuthorID    string     `json:"author_id" gorm:"not null;index"`
	Kind        string     `json:"kind" gorm:"type:varchar(32);not null"`
	Description string     `json:"description"`
	Active      bool       `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

type EligibilityCondition string

const (
	ConditionArticles90Days      EligibilityCondition = "articles_90_days"
	ConditionUniqueReaders30Days EligibilityCondition = "unique_readers_30_days"
	ConditionNoViolations        EligibilityCondition = "no_violations"
	ConditionWalletSetup         EligibilityCondition = "wallet_setup"
)

type ConditionProgress struct {
	Condition EligibilityCondition `json:"condition"`
	Current   int                  `json:"current"`
	Required  int                  `json:"required"`
	Met       bool                 `json:"met"`
	Percent   float64              `json:"percent"`
}

type NotificationType string

const (
	NotificationQualified     NotificationType = "qualified"
	NotificationDisqualified  NotificationType = "disqualified"
	NotificationNearThreshold NotificationType = "near_threshold"
	NotificationWarning       NotificationType = "warning"
)

type EligibilityNotification struct {
	Type      NotificationType     `json:"type"`
	Condition EligibilityCondition `json:"condition,omitempty"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Current   int                  `json:"current_value,omitempty"`
	Required  int                  `json:"required_value,omitempty"`
}

// AuthorEligibility is the latest evaluation result for an author.
type AuthorEligibility struct {
	AuthorID         string                                       `json:"author_id" gorm:"primaryKey"`
	IsEligible       bool                                         `json:"is_eligible"`
	Score            float64                                      `json:"score"`
	Progress         datatypes.JSONSlice[ConditionProgress]       `json:"progress"`
	Notifications    datatypes.JSONSlice[EligibilityNotification] `json:"notifications"`
	LastEvaluatedAt  time.Time                                    `json:"last_evaluated_at"`
	NextEvaluationAt time.Time                                    `json:"next_evaluation_at"`
	UpdatedAt        time.Time                                    `json:"updated_at" gorm:"autoUpdateTime"`
}
