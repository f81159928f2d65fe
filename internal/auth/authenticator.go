package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/models"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   models.Role
}

func (i *Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// CanModify reports whether the caller owns the resource or is an admin.
func (i *Identity) CanModify(ownerID uuid.UUID) bool {
	return i.UserID == ownerID || i.IsAdmin()
}

// UserLookup finds a user by id, returning (nil, nil) when there is none.
type UserLookup interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type GormUsers struct {
	db *gorm.DB
}

func NewGormUsers(db *gorm.DB) *GormUsers {
	return &GormUsers{db: db}
}

func (g *GormUsers) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

type Authenticator struct {
	tokens *Tokens
	users  UserLookup
}

func NewAuthenticator(tokens *Tokens, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// Authenticate verifies the token and confirms its user still exists. The
// identity carries the stored role, not the one in the token.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := a.tokens.Verify(token)
	if errors.Is(err, ErrTokenExpired) {
		return nil, apperrors.Unauthenticated("Token expired.")
	}
	if err != nil {
		return nil, apperrors.Unauthenticated("Invalid token.")
	}

	user, err := a.users.FindUser(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Storage("Authentication error.", err)
	}
	if user == nil {
		return nil, apperrors.Unauthenticated("Invalid token. User not found.")
	}

	return &Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}
