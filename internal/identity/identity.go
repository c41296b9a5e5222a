// Package identity registers users and turns credentials into sessions.
// Passwords are stored as bcrypt hashes only.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"prohori/internal/domain"
	"prohori/pkg/e"
	"prohori/pkg/validator"
)

const DefaultSessionTTL = 24 * time.Hour

//go:generate mockgen -source=identity.go -destination=mocks/mock.go
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type SessionStore interface {
	Save(ctx context.Context, s domain.Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

// PhotoStore keeps profile photos; see package blob.
type PhotoStore interface {
	Put(ctx context.Context, contentType string, data []byte) (string, error)
	Discard(ctx context.Context, ref string) error
}

type Options struct {
	SessionTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	logger   *slog.Logger
	users    UserRepository
	sessions SessionStore
	photos   PhotoStore

	ttl       time.Duration
	cost      int
	now       func() time.Time
	dummyHash []byte
}

func NewService(users UserRepository, sessions SessionStore, photos PhotoStore, logger *slog.Logger, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	// compared against on unknown emails so both failure paths cost a hash
	dummy, _ := bcrypt.GenerateFromPassword([]byte("prohori-unknown-user"), opts.BcryptCost)

	return &Service{
		logger:    logger,
		users:     users,
		sessions:  sessions,
		photos:    photos,
		ttl:       opts.SessionTTL,
		cost:      opts.BcryptCost,
		now:       opts.Now,
		dummyHash: dummy,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.Profile, error) {
	const op = "identity.Service.Register"

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Check(req); err != nil {
		return domain.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		// only fails for passwords over 72 bytes
		return domain.Profile{}, fmt.Errorf("%s: %w", op, e.InvalidField("password"))
	}

	var photo string
	if len(req.Photo) > 0 && s.photos != nil {
		photo, err = s.photos.Put(ctx, req.PhotoType, req.Photo)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	u := &domain.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Photo:        photo,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if photo != "" {
			if derr := s.photos.Discard(context.WithoutCancel(ctx), photo); derr != nil {
				s.logger.Warn("discard orphan photo failed", slog.String("ref", photo), slog.Any("error", derr))
			}
		}
		return domain.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("user registered", slog.String("user_id", u.ID.String()), slog.String("role", string(u.Role)))
	return u.Profile(), nil
}

// Login checks credentials and opens a session. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	const op = "identity.Service.Login"

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Check(req); err != nil {
		return domain.LoginResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, e.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return domain.LoginResponse{}, fmt.Errorf("%s: %w", op, e.ErrUnauthorized)
	case err != nil:
		return domain.LoginResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)); err != nil {
		return domain.LoginResponse{}, fmt.Errorf("%s: %w", op, e.ErrUnauthorized)
	}

	token, err := newToken()
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	sess := domain.Session{
		Token:     token,
		UserID:    u.ID,
		Role:      u.Role,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, sess, s.ttl); err != nil {
		return domain.LoginResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return domain.LoginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: u.Profile()}, nil
}

// Authenticate resolves a bearer token to its session.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	const op = "identity.Service.Authenticate"

	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, e.ErrUnauthorized)
	}
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, e.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, e.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, fmt.Errorf("%s: session expired: %w", op, e.ErrUnauthorized)
	}
	return sess, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	const op = "identity.Service.Logout"

	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EnsureAdmin registers the bootstrap admin unless the email is taken.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	_, err := s.Register(ctx, domain.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if errors.Is(err, e.ErrConflict) {
		return nil
	}
	return err
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
