// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"invest-tournament-system/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile matches one entry of the sync service's profile feed.
type RemoteProfile struct {
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	Bio               *string   `json:"bio,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// DisplayName joins first and last name, falling back to the username.
func (p RemoteProfile) DisplayName() string {
	var first, last string
	if p.FirstName != nil {
		first = *p.FirstName
	}
	if p.LastName != nil {
		last = *p.LastName
	}
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}
	return p.Username
}

// ToModel converts the feed entry into the local mirror row.
func (p RemoteProfile) ToModel() models.UserProfile {
	display := p.DisplayName()
	return models.UserProfile{
		ExternalUserID: p.ExternalID,
		Username:       p.Username,
		DisplayName:    display,
		Email:          p.Email,
		AvatarURL:      p.ProfilePictureURL,
		Bio:            p.Bio,
		SearchKey:      models.SearchKeyFor(p.Username, display),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	logrus.Info("🔁 Starting Profile Sync Worker (sync-service → user_profiles)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		logrus.WithError(err).Warn("⚠️ [SYNC] Initial profile sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime(ctx)); err != nil {
				logrus.WithError(err).Error("❌ [SYNC] Profile sync batch failed")
			}
		case <-ctx.Done():
			logrus.Info("⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

func (w *ProfileSyncWorker) lastSyncTime(ctx context.Context) time.Time {
	var last *time.Time
	err := w.db.WithContext(ctx).Model(&models.UserProfile{}).Select("MAX(updated_at)").Scan(&last).Error
	if err != nil || last == nil {
		return time.Unix(0, 0)
	}
	return *last
}

func (w *ProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid sync service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	var response profileChangesResponse
	if err := getJSON(ctx, w.httpClient, endpoint.String(), w.serviceToken, &response); err != nil {
		return err
	}
	if len(response.Users) == 0 {
		logrus.Debug("[SYNC] ✅ No profile changes")
		return nil
	}

	upserted, failed := 0, 0
	for _, remote := range response.Users {
		if remote.ExternalID == "" {
			failed++
			continue
		}
		row := remote.ToModel()
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "display_name", "email", "avatar_url", "bio", "search_key", "updated_at",
			}),
		}).Create(&row).Error; err != nil {
			failed++
			logrus.WithError(err).WithField("external_id", remote.ExternalID).Warn("⚠️ [SYNC] Failed to upsert profile")
			continue
		}
		upserted++
	}

	logrus.WithFields(logrus.Fields{"received": len(response.Users), "upserted": upserted, "errors": failed}).
		Info("[SYNC] 📥 Profiles synced")
	return nil
}

// getJSON performs an authenticated GET against a sibling service and decodes the body into out.
func getJSON(ctx context.Context, client *http.Client, endpoint, serviceToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", endpoint, err)
	}
	req.Header.Set("X-Service-Token", serviceToken)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}
