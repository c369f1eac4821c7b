// Package auth handles logins, session tokens and the user and role
// administration behind them.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tallerpro.mx/shop/models"
	"tallerpro.mx/shop/pkg/apperr"
)

const (
	DefaultMaxAttempts = 5
	DefaultLockout     = 15 * time.Minute
)

type Service struct {
	db          *gorm.DB
	tokens      *TokenManager
	clock       clock.Clock
	log         logrus.FieldLogger
	maxAttempts int
	lockout     time.Duration
}

type Option func(*Service)

// WithLockout sets how many consecutive failures lock an account and for how long.
func WithLockout(maxAttempts int, d time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if d > 0 {
			s.lockout = d
		}
	}
}

func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func NewService(db *gorm.DB, tokens *TokenManager, opts ...Option) *Service {
	s := &Service{
		db:          db,
		tokens:      tokens,
		clock:       clock.WallClock,
		log:         logrus.StandardLogger(),
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockout,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("service", "auth")
	return s
}

// Session is returned by a successful login.
type Session struct {
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Permissions []string     `json:"permissions"`
	User        *models.User `json:"user"`
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// burnHash spends the same time as a real password check so unknown
// emails can't be told apart by latency.
func burnHash(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Authenticate checks credentials and applies the lockout policy: after
// maxAttempts consecutive failures the account refuses every login, right
// or wrong, until the lockout window has passed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.InvalidCredentials
	}

	var (
		user    models.User
		authErr error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("email = ?", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			burnHash(password)
			authErr = apperr.InvalidCredentials
			return nil
		}
		if err != nil {
			return errors.Trace(err)
		}

		now := s.clock.Now()
		if user.IsLocked(now) {
			authErr = errors.Annotatef(apperr.AccountLocked, "try again after %s", user.LockedUntil.Format(time.RFC3339))
			return nil
		}
		if user.LockedUntil != nil {
			// lock expired: start counting afresh
			user.FailedAttempts = 0
			user.LockedUntil = nil
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil || !user.IsActive {
			authErr = apperr.InvalidCredentials
			return s.recordFailure(tx, &user, now)
		}

		updates := map[string]interface{}{
			"failed_attempts": 0,
			"locked_until":    nil,
			"last_login_at":   now,
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return errors.Trace(err)
		}
		user.FailedAttempts = 0
		user.LastLoginAt = &now

		if user.RoleID != nil {
			var role models.Role
			if err := tx.Preload("Permissions").First(&role, "id = ?", *user.RoleID).Error; err != nil {
				return errors.Annotate(err, "load role")
			}
			user.Role = &role
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if authErr != nil {
		s.log.WithFields(logrus.Fields{"email": email, "reason": authErr.Error()}).Warn("login refused")
		return nil, authErr
	}

	token, expires, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, err
	}
	s.log.WithField("user_id", user.ID).Info("login")
	return &Session{Token: token, ExpiresAt: expires, Permissions: user.Permissions(), User: &user}, nil
}

func (s *Service) recordFailure(tx *gorm.DB, user *models.User, now time.Time) error {
	attempts := user.FailedAttempts + 1
	updates := map[string]interface{}{
		"failed_attempts": attempts,
		"locked_until":    nil,
	}
	if attempts >= s.maxAttempts {
		until := now.Add(s.lockout)
		updates["locked_until"] = until
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "until": until}).Warn("account locked")
	}
	return errors.Trace(tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error)
}

// Me loads the current user with role and permissions.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Role.Permissions").First(&u, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return &u, nil
}

type PasswordChange struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return apperr.FromDB(err, "user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return apperr.Invalid("current_password", "is incorrect")
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return errors.Trace(s.db.WithContext(ctx).Model(&u).Update("password_hash", hash).Error)
}

func hashPassword(pw string) (string, error) {
	if len(pw) < 8 {
		return "", apperr.Invalid("password", "must be at least 8 characters")
	}
	if len(pw) > 72 {
		return "", apperr.Invalid("password", "must be at most 72 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Annotate(err, "hash password")
	}
	return string(hash), nil
}
