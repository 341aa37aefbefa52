package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/esakrissa/modern-isoner/internal/rbac"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

// RoleDirectory is the slice of the RBAC service the auth flow needs to
// attach the default role to freshly registered accounts.
type RoleDirectory interface {
	FindRoleByName(ctx context.Context, name string) (rbac.Role, error)
	AssignRole(ctx context.Context, userID, roleID uuid.UUID) error
}

// Service wraps registration and login.
type Service struct {
	repo     Repository
	roles    RoleDirectory
	logger   *slog.Logger
	secret   []byte
	tokenTTL time.Duration
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RoleDirectory, logger *slog.Logger, secret string, tokenTTL time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, logger: logger, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Register creates an account and assigns the default user role.
func (s *Service) Register(ctx context.Context, email, name, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Account{}, fmt.Errorf("%w: email and password required", shared.ErrValidation)
	}
	if name == "" {
		// Fall back to the mailbox part, as the original registration did.
		name = strings.SplitN(email, "@", 2)[0]
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("auth: hash password: %w", err)
	}
	acc, err := s.repo.CreateAccount(ctx, email, name, string(hash))
	if err != nil {
		return Account{}, err
	}
	if s.roles != nil {
		role, err := s.roles.FindRoleByName(ctx, shared.RoleUser)
		if err != nil {
			s.logger.Warn("auth default role lookup", slog.Any("error", err))
		} else if err := s.roles.AssignRole(ctx, acc.ID, role.ID); err != nil {
			s.logger.Warn("auth default role assign", slog.Any("error", err))
		}
	}
	return acc, nil
}

// Login validates credentials, advances last_login and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Account, TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return Account{}, TokenPair{}, shared.ErrInvalidCredentials
	}
	if !acc.IsActive {
		return Account{}, TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return Account{}, TokenPair{}, shared.ErrInvalidCredentials
	}
	now := time.Now().UTC()
	if err := s.repo.TouchLastLogin(ctx, acc.ID, now); err != nil {
		s.logger.Warn("auth touch last login", slog.Any("error", err))
	}
	token, err := s.issueToken(acc.ID, now)
	if err != nil {
		return Account{}, TokenPair{}, err
	}
	return acc, token, nil
}

func (s *Service) issueToken(userID uuid.UUID, now time.Time) (TokenPair, error) {
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return TokenPair{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// ParseToken validates a bearer token and returns the subject user ID.
func (s *Service) ParseToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, shared.ErrUnauthorized
	}
	if !token.Valid {
		return uuid.Nil, shared.ErrUnauthorized
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, shared.ErrUnauthorized
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, shared.ErrUnauthorized
	}
	return id, nil
}

// ErrTokenExpired is kept distinct so callers can prompt a re-login.
var ErrTokenExpired = errors.New("auth: token expired")
