// Package auth registers and authenticates users and issues session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service registers users, checks credentials and verifies session tokens.
type Service struct {
	users      UserRepository
	tokens     *TokenIssuer
	bcryptCost int
}

// NewService creates a new auth Service. bcryptCost outside bcrypt's range uses bcrypt.DefaultCost.
func NewService(users UserRepository, tokens *TokenIssuer, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{users: users, tokens: tokens, bcryptCost: bcryptCost}
}

// Register creates an account. The email is matched case-insensitively; a taken
// address fails with domain.ErrDuplicateEmail.
func (s *Service) Register(ctx context.Context, email, password string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if password == "" {
		return domain.User{}, domain.Invalid("password", "is required")
	}
	if len(password) > maxPasswordBytes {
		return domain.User{}, domain.Invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("registering %s: %w", email, err)
	}
	return user, nil
}

// Login checks the credentials and issues a session token. Unknown emails and wrong
// passwords both fail with domain.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, domain.ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Email: user.Email, ExpiresAt: expiresAt}, nil
}

// Verify returns the user id a session token was issued for.
func (s *Service) Verify(token string) (string, error) {
	return s.tokens.Parse(token)
}

// UserByEmail looks up a registered user.
func (s *Service) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.GetByEmail(ctx, email)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", domain.Invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Invalid("email", "is not a valid address")
	}
	return email, nil
}
