package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elishakaranja/Mindset-coach/internal/auth"
	"github.com/elishakaranja/Mindset-coach/internal/common"
	"github.com/elishakaranja/Mindset-coach/internal/persona"
)

// Service owns registration, login and the user's personality selection.
type Service struct {
	repo     *Repo
	hasher   *auth.Hasher
	tokens   *auth.Tokens
	personas *persona.Registry

	// compared against when the email is unknown, so both paths cost one bcrypt
	dummyDigest string
}

func NewService(repo *Repo, hasher *auth.Hasher, tokens *auth.Tokens, personas *persona.Registry) *Service {
	dummy, _ := hasher.Hash("not-a-real-password")
	return &Service{repo: repo, hasher: hasher, tokens: tokens, personas: personas, dummyDigest: dummy}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active user with the default personality. A taken
// email is a conflict whether the pre-check or the unique index catches it.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:               email,
		PasswordHash:        hash,
		IsActive:            true,
		SelectedPersonality: s.personas.DefaultKey(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		// lost a check-then-insert race on a driver that does not translate errors
		if _, getErr := s.repo.GetByEmail(ctx, email); getErr == nil {
			return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
		}
		return nil, err
	}
	return u, nil
}

// Login checks credentials and issues an access token for the user's email.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			return "", fmt.Errorf("%w: incorrect email or password", common.ErrUnauthorized)
		}
		return "", err
	}
	if !s.hasher.Verify(password, u.PasswordHash) || !u.IsActive {
		return "", fmt.Errorf("%w: incorrect email or password", common.ErrUnauthorized)
	}
	return s.tokens.IssueToken(u.Email)
}

// Authenticate resolves a bearer token to an active user. Every failure is
// common.ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	email, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", common.ErrUnauthorized)
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: inactive user", common.ErrUnauthorized)
	}
	return u, nil
}

// SetPersonality stores the user's preferred personality.
func (s *Service) SetPersonality(ctx context.Context, u *User, key string) (*User, error) {
	p, err := s.personas.Get(key)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown personality %q", common.ErrValidation, key)
	}
	if err := s.repo.UpdatePersonality(ctx, u.ID, p.ID); err != nil {
		return nil, err
	}
	updated := *u
	updated.SelectedPersonality = p.ID
	return &updated, nil
}
