package ginsrv

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	principalKey = "ginsrv.principal"

	// OrganizationHeader lets admins act on behalf of an organization
	OrganizationHeader = "X-Organization-ID"
)

// Principal is the authenticated caller
type Principal struct {
	UserID         string
	OrganizationID string
	Admin          bool
}

// TokenLookup resolves a bearer token to a principal
type TokenLookup func(token string) (Principal, bool)

// Authenticate resolves the bearer token of every request and rejects
// requests without a valid one.
func Authenticate(lookup TokenLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		p, ok := lookup(token)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if org := c.GetHeader(OrganizationHeader); org != "" && p.Admin {
			p.OrganizationID = org
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireAdmin rejects authenticated callers without admin rights
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !p.Admin {
			abortWithError(c, http.StatusForbidden, "admin privileges required")
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Authenticate
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func abortWithError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{
		"message": http.StatusText(status),
		"detail":  detail,
	})
}
