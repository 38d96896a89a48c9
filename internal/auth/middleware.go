package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sekolahkita/internal/session"
)

const sessionKey = "session"

// Authenticate enforces bearer JWT tokens signed with HS256 and stores the
// caller's session in the context.
func Authenticate(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok, err := bearerSession(c, signingKey, issuer)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// Optional attaches a session when a valid token is present and lets
// anonymous visitors through.
func Optional(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess, ok, err := bearerSession(c, signingKey, issuer); ok && err == nil {
			c.Set(sessionKey, sess)
		}
		c.Next()
	}
}

// SessionFrom returns the session set by Authenticate or Optional.
func SessionFrom(c *gin.Context) session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(session.Session); ok {
			return s
		}
	}
	return session.Anonymous
}

// RequireTeacher lets through only sessions whose email is on the staff list.
// It must run after Authenticate.
func RequireTeacher(teachers *Teachers, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if !sess.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign in required"})
			return
		}
		ok, err := teachers.IsTeacher(c.Request.Context(), sess)
		if err != nil {
			log.WithError(err).WithField("email", sess.Email).Warn("teacher lookup failed")
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "could not verify teacher access"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "teachers only"})
			return
		}
		c.Next()
	}
}

func bearerSession(c *gin.Context, signingKey, issuer string) (session.Session, bool, error) {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return session.Session{}, false, nil
	}
	tokenStr := strings.TrimSpace(authz[len("bearer "):])
	claims, err := Parse(tokenStr, signingKey, issuer)
	if err != nil {
		return session.Session{}, true, err
	}
	return session.Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		AccessToken: tokenStr,
	}, true, nil
}
