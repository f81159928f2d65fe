package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/auth"
	"github.com/stackit/stackit/backend/internal/response"
)

const identityKey = "identity"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the context.
func RequireAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, apperrors.Unauthenticated("Access denied. No token provided."))
			return
		}

		identity, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuth attaches an identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			if identity, err := authn.Authenticate(c.Request.Context(), token); err == nil {
				SetIdentity(c, identity)
			}
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity set by RequireAuth or OptionalAuth.
func CurrentIdentity(c *gin.Context) (*auth.Identity, bool) {
	raw, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := raw.(*auth.Identity)
	return identity, ok && identity != nil
}

// SetIdentity stores identity on the context.
func SetIdentity(c *gin.Context, identity *auth.Identity) {
	c.Set(identityKey, identity)
}
