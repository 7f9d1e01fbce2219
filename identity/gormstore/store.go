package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/miaomc/passport"
	"github.com/samber/oops"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Config selects the database backend.
type Config struct {
	// Driver is "sqlite" or "mysql".
	Driver string
	DSN    string
	// TablePrefix is prepended to every table name.
	TablePrefix string
}

// Open connects to the configured database. Driver errors are translated so
// unique violations surface as gorm.ErrDuplicatedKey.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, oops.In("gormstore").Code("UNSUPPORTED_DRIVER").With("driver", cfg.Driver).Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{TablePrefix: cfg.TablePrefix},
	})
	if err != nil {
		return nil, oops.In("gormstore").Code("OPEN_FAILED").With("driver", cfg.Driver).Wrap(err)
	}
	return db, nil
}

// Store implements passport.IdentityStore over gorm.
type Store struct {
	db *gorm.DB
}

var (
	_ passport.IdentityStore = (*Store)(nil)
	_ passport.AuditSink     = (*ActivitySink)(nil)
)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the users, players, activity_logs and
// login_logs tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return oops.In("gormstore").Code("MIGRATE_FAILED").Wrap(err)
	}
	return nil
}

// DB exposes the handle for sinks sharing the connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) GetPlayer(ctx context.Context, playerUUID string) (*passport.Player, error) {
	var row Player
	err := s.db.WithContext(ctx).Where("player_uuid = ?", playerUUID).First(&row).Error
	if err != nil {
		return nil, s.wrap(err, "player.get", "player_uuid", playerUUID)
	}
	p := toPlayer(row)
	return &p, nil
}

func (s *Store) ListPlayersByUser(ctx context.Context, userID int64) ([]passport.Player, error) {
	var rows []Player
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_primary DESC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, s.wrap(err, "player.list_by_user", "user_id", userID)
	}

	out := make([]passport.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, toPlayer(row))
	}
	return out, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID int64) (*passport.User, error) {
	var row User
	if err := s.db.WithContext(ctx).First(&row, userID).Error; err != nil {
		return nil, s.wrap(err, "user.get_by_id", "user_id", userID)
	}
	u := toUser(row)
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*passport.User, error) {
	var row User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return nil, s.wrap(err, "user.get_by_email", "email", email)
	}
	u := toUser(row)
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*passport.User, error) {
	var row User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&row).Error; err != nil {
		return nil, s.wrap(err, "user.get_by_username", "username", username)
	}
	u := toUser(row)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, input passport.CreateUserInput) (*passport.User, error) {
	row := User{
		Email:    input.Email,
		Username: input.Username,
		Nickname: input.Nickname,
		Password: input.PasswordHash,
		Role:     input.Role,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, s.wrap(err, "user.create", "username", input.Username)
	}
	u := toUser(row)
	return &u, nil
}

// CreatePlayer inserts a player, or binds a known unbound one. A player
// already bound to a user is a duplicate.
func (s *Store) CreatePlayer(ctx context.Context, input passport.CreatePlayerInput) (*passport.Player, error) {
	if input.IsPrimary && input.UserID == nil {
		return nil, oops.In("gormstore").Code("INVALID_PLAYER").With("player_uuid", input.UUID).
			Wrap(fmt.Errorf("%w: primary player requires a user", passport.ErrValidation))
	}

	var out Player
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Player
		err := tx.Where("player_uuid = ?", input.UUID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = Player{
				UUID:      input.UUID,
				Name:      input.Name,
				UserID:    input.UserID,
				IsPrimary: input.IsPrimary,
			}
			return tx.Create(&out).Error
		case err != nil:
			return err
		case existing.UserID != nil:
			return gorm.ErrDuplicatedKey
		}

		existing.Name = input.Name
		existing.UserID = input.UserID
		existing.IsPrimary = input.IsPrimary
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "player.create", "player_uuid", input.UUID)
	}

	p := toPlayer(out)
	return &p, nil
}

func (s *Store) wrap(err error, op string, key string, value any) error {
	b := oops.In("gormstore").With("op", op).With(key, value)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return b.Code("NOT_FOUND").Wrap(fmt.Errorf("%w: %s", passport.ErrNotFound, op))
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return b.Code("DUPLICATE").Wrap(fmt.Errorf("%w: %s", passport.ErrDuplicate, op))
	default:
		return b.Code("QUERY_FAILED").Wrap(err)
	}
}

func toUser(row User) passport.User {
	return passport.User{
		ID:           row.ID,
		Email:        row.Email,
		Username:     row.Username,
		Nickname:     row.Nickname,
		PasswordHash: row.Password,
		Role:         row.Role,
		CreatedAt:    row.CreatedAt,
	}
}

func toPlayer(row Player) passport.Player {
	return passport.Player{
		UUID:      row.UUID,
		Name:      row.Name,
		UserID:    row.UserID,
		IsPrimary: row.IsPrimary,
		CreatedAt: row.CreatedAt,
	}
}
