package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieName carries the session token in browsers.
const CookieName = "faceattend_session"

const claimsKey = "claims"

var errNoSession = errors.New("no session")

// Manager issues, reads and revokes admin sessions.
type Manager struct {
	key    string
	ttl    time.Duration
	revs   Revocations
	secure bool
}

// NewManager creates a session manager. secure marks the cookie HTTPS-only.
func NewManager(key string, ttl time.Duration, revs Revocations, secure bool) *Manager {
	if revs == nil {
		revs = NewMemoryRevocations()
	}
	return &Manager{key: key, ttl: ttl, revs: revs, secure: secure}
}

// Login issues a session for username and sets the cookie.
func (m *Manager) Login(c *gin.Context, username string) (Session, error) {
	sess, err := Issue(username, m.key, m.ttl)
	if err != nil {
		return Session{}, err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, sess.Token, int(m.ttl.Seconds()), "/", "", m.secure, true)
	return sess, nil
}

// Logout revokes the current session, if any, and clears the cookie.
func (m *Manager) Logout(c *gin.Context) error {
	defer func() {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, "", -1, "/", "", m.secure, true)
	}()
	claims, err := m.Current(c)
	if err != nil {
		return nil
	}
	return m.revs.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time)
}

// Current returns the claims of a valid, unrevoked session.
func (m *Manager) Current(c *gin.Context) (Claims, error) {
	tokenStr := tokenFrom(c)
	if tokenStr == "" {
		return Claims{}, errNoSession
	}
	claims, err := Parse(tokenStr, m.key)
	if err != nil {
		return Claims{}, err
	}
	revoked, err := m.revs.Revoked(c.Request.Context(), claims.ID)
	if err != nil {
		return Claims{}, err
	}
	if revoked {
		return Claims{}, errors.New("session revoked")
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid session. Browser page loads
// are sent to the login form; everything else gets 401.
func (m *Manager) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.Current(c)
		if err != nil {
			if c.Request.Method == http.MethodGet && wantsHTML(c) {
				c.Redirect(http.StatusFound, "/login")
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireAdmin.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func tokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	authz := c.GetHeader("Authorization")
	if len(authz) > len("bearer ") && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

func wantsHTML(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return false
	}
	accept := c.GetHeader("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}
