package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/kbchat/internal/models"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type Options struct {
	JWTSecret  string
	TokenTTL   time.Duration
	LegacySalt string
}

type Service struct {
	db   *gorm.DB
	hook telemetry.Hook
	opts Options
}

func NewService(db *gorm.DB, hook telemetry.Hook, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if hook == nil {
		hook = telemetry.Nop{}
	}
	return &Service{db: db, hook: hook, opts: opts}
}

type Session struct {
	UserID   uint64
	Username string
	Token    string
}

func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&cnt).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if cnt > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Username: username, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// lost the race against a concurrent register
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.session(user)
}

// Login checks the credentials and touches last_login. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, upgrade := CheckPassword(user.PasswordHash, password, s.opts.LegacySalt)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	updates := map[string]any{"last_login": now}
	if upgrade {
		if hash, err := HashPassword(password); err == nil {
			updates["password_hash"] = hash
		} else {
			s.hook.DependencyFailed(ctx, "auth", "rehash_password", err)
		}
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	return s.session(user)
}

func (s *Service) session(u models.User) (*Session, error) {
	token, err := SignJWT(u.ID, s.opts.JWTSecret, s.opts.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{UserID: u.ID, Username: u.Username, Token: token}, nil
}
