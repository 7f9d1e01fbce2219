package gormstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/miaomc/passport"
	"gorm.io/gorm"
)

const maxDetailLen = 255

// ActivitySink persists audit events to activity_logs, and successful logins
// additionally to login_logs. It implements passport.AuditSink and is meant
// to run behind the engine's asynchronous dispatcher.
type ActivitySink struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewActivitySink(db *gorm.DB, logger *slog.Logger) *ActivitySink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivitySink{db: db, logger: logger.With("component", "activity")}
}

type activityDetail struct {
	PlayerUUID string            `json:"player_uuid,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (s *ActivitySink) Emit(ctx context.Context, event passport.AuditEvent) {
	userID := parseUserID(event.UserID)

	detail, err := json.Marshal(activityDetail{
		PlayerUUID: event.PlayerUUID,
		Success:    event.Success,
		Error:      event.Error,
		IP:         event.IP,
		Metadata:   event.Metadata,
	})
	if err != nil {
		s.logger.Error("activity detail encoding failed", "event_id", event.ID, "error", err)
		return
	}

	row := ActivityLog{
		UserID:         userID,
		ActivityType:   event.EventType,
		ActivityDetail: truncate(string(detail), maxDetailLen),
		CreatedAt:      event.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error("activity log write failed", "event_id", event.ID, "event_type", event.EventType, "error", err)
		return
	}

	if event.EventType != "login_success" || userID == nil {
		return
	}
	login := LoginLog{
		UserID:    *userID,
		IPAddress: truncate(event.IP, 45),
		UserAgent: truncate(event.UserAgent, 255),
		CreatedAt: event.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&login).Error; err != nil {
		s.logger.Error("login log write failed", "event_id", event.ID, "error", err)
	}
}

func parseUserID(raw string) *int64 {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
