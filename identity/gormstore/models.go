package gormstore

import "time"

// User maps the users table.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex"`
	Username  string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Nickname  string    `gorm:"type:varchar(50)"`
	Password  string    `gorm:"type:varchar(255)"`
	Role      string    `gorm:"column:global_role;type:varchar(50);not null;default:default"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Player maps the players table. UserID is NULL for a known but unbound player.
type Player struct {
	UUID       string    `gorm:"column:player_uuid;type:varchar(36);primaryKey"`
	Name       string    `gorm:"column:player_name;type:varchar(50);not null"`
	UserID     *int64    `gorm:"index"`
	IsPrimary  bool      `gorm:"not null;default:false"`
	PlayerRole string    `gorm:"type:varchar(50);default:default"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// ActivityLog maps the activity_logs table.
type ActivityLog struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	UserID         *int64    `gorm:"index"`
	ActivityType   string    `gorm:"type:varchar(255);not null"`
	ActivityDetail string    `gorm:"type:varchar(255);not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// LoginLog maps the login_logs table.
type LoginLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index"`
	IPAddress string    `gorm:"type:varchar(45);not null"`
	UserAgent string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func allModels() []any {
	return []any{&User{}, &Player{}, &ActivityLog{}, &LoginLog{}}
}
