package service

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgcrypto "github.com/avarghese/clinicsync/internal/crypto"
	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/limiter"
	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/repository"
)

type fakeUsers struct {
	byName map[string]*model.StaffAccount

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, a *model.StaffAccount) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.StaffAccount{}
	}
	if _, exists := f.byName[a.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *a
	f.byName[a.Username] = &cpy
	return nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.StaffAccount, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

func staffAccount(username, password, role string) *model.StaffAccount {
	salt, _ := pkgcrypto.RandBytes(16)
	return &model.StaffAccount{
		ID:       "u-" + username,
		Username: username,
		Role:     role,
		SaltAuth: salt,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), salt),
	}
}

func TestAuth_EnsureAccount(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.StaffAccount{}}
	s := NewAuthService(users, []byte("k"), time.Minute, &fakeLimiter{})

	if err := s.EnsureAccount(context.Background(), "", "", ""); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("want ErrInvalid on empty args, got %v", err)
	}

	if err := s.EnsureAccount(context.Background(), "reception", "pwd", "receptionist"); err != nil {
		t.Fatalf("EnsureAccount: %v", err)
	}
	a, err := users.GetByUsername(context.Background(), "reception")
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if a.Role != "receptionist" || a.ID == "" || len(a.PwdHash) == 0 {
		t.Fatalf("bad account: %+v", a)
	}

	// second call is a no-op, not an error
	if err := s.EnsureAccount(context.Background(), "reception", "other", "doctor"); err != nil {
		t.Fatalf("EnsureAccount existing: %v", err)
	}
	a2, _ := users.GetByUsername(context.Background(), "reception")
	if a2.Role != "receptionist" {
		t.Fatalf("existing account was overwritten: %+v", a2)
	}

	users.createErr = errors.New("boom")
	users.byName = map[string]*model.StaffAccount{}
	if err := s.EnsureAccount(context.Background(), "nurse", "pwd", "nurse"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_LoginWithIP_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()

	a := staffAccount("reception", "correct", "receptionist")
	users := &fakeUsers{byName: map[string]*model.StaffAccount{"reception": a}}
	lim := &fakeLimiter{allowOK: true}
	s := NewAuthService(users, []byte("secret"), 2*time.Minute, lim)

	lim.allowErr = errors.New("lim-err")
	if _, err := s.LoginWithIP(context.Background(), "reception", "correct", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, err := s.LoginWithIP(context.Background(), "reception", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	users.getErr = errs.ErrNotFound
	if _, err := s.LoginWithIP(context.Background(), "nope", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}
	users.getErr = nil

	lim.failBlocked = true
	if _, err := s.LoginWithIP(context.Background(), "reception", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}

	lim.failBlocked = false
	if _, err := s.LoginWithIP(context.Background(), "reception", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	sess, err := s.LoginWithIP(context.Background(), "reception", "correct", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("LoginWithIP success: %v", err)
	}
	if sess.Token == "" || sess.ExpiresAt.Before(time.Now()) {
		t.Fatalf("bad session: %+v", sess)
	}
	if sess.User.ID != a.ID || sess.User.Role != "receptionist" {
		t.Fatalf("bad user returned: %+v", sess.User)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
}

func TestAuth_TokenRoundTrip(t *testing.T) {
	t.Parallel()

	a := staffAccount("doc", "p", "doctor")
	users := &fakeUsers{byName: map[string]*model.StaffAccount{"doc": a}}
	s := NewAuthService(users, []byte("sign-key"), time.Minute, &fakeLimiter{allowOK: true})

	sess, err := s.LoginWithIP(context.Background(), "doc", "p", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := VerifyAccessToken(sess.Token, []byte("sign-key"))
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Subject != a.ID || claims.Username != "doc" || claims.Role != "doctor" {
		t.Fatalf("bad claims: %+v", claims)
	}

	if _, err := VerifyAccessToken(sess.Token, []byte("wrong-key")); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on bad key, got %v", err)
	}
	if _, err := VerifyAccessToken("not-a-token", []byte("sign-key")); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on garbage token, got %v", err)
	}
}
