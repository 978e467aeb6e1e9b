// Package service contains server-side application services for authentication
// and the clinic workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/avarghese/clinicsync/internal/crypto"
	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/limiter"
	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/repository"
)

// StaffClaims is the JWT payload for an authenticated staff member.
type StaffClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AuthService authenticates staff and provisions accounts.
type AuthService interface {
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password, ip string) (model.Session, error)
	// EnsureAccount creates the account if it does not exist yet.
	EnsureAccount(ctx context.Context, username, password, role string) error
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

// EnsureAccount provisions a staff account with a fresh salt and Argon2id hash.
// An existing username is left untouched.
func (s *AuthServiceImpl) EnsureAccount(ctx context.Context, username, password, role string) error {
	if username == "" || password == "" || role == "" {
		return fmt.Errorf("username/password/role required: %w", errs.ErrInvalid)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return err
	}
	a := &model.StaffAccount{
		ID:       uuid.Must(uuid.NewV4()).String(),
		Username: username,
		Role:     role,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), salt),
		SaltAuth: salt,
	}
	if err := s.users.Create(ctx, a); err != nil {
		// lost a provisioning race; the account exists now
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Session, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Session{}, err
	}
	if !allowed {
		return model.Session{}, errs.ErrRateLimited
	}

	a, err := s.users.GetByUsername(ctx, username)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), a.SaltAuth, a.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Session{}, errs.ErrRateLimited
		}
		// lookup failures are masked: do not reveal whether the user exists
		return model.Session{}, errs.ErrUnauthorized
	}

	// best-effort counter reset
	_ = s.lim.Success(ctx, username, ipHash)

	token, exp, err := s.issueAccessToken(a)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{
		User:      model.User{ID: a.ID, Username: a.Username, Role: a.Role},
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

// issueAccessToken creates a signed HS256 JWT for the given account.
func (s *AuthServiceImpl) issueAccessToken(a *model.StaffAccount) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: a.Username,
		Role:     a.Role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// VerifyAccessToken parses and validates a token issued by issueAccessToken.
func VerifyAccessToken(token string, signKey []byte) (*StaffClaims, error) {
	var claims StaffClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return signKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	return &claims, nil
}
