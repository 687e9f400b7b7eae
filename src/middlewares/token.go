package middlewares

import (
	"net/http"
	"time"

	"sosseats/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// SignSession returns an HS256 token for claims that expires after ttl.
func SignSession(secret []byte, claims types.SessionClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IssueSession signs claims and sets them as the named session cookie.
func IssueSession(ctx *gin.Context, secret []byte, name string, claims types.SessionClaims, ttl time.Duration, secure bool) error {
	token, err := SignSession(secret, claims, ttl)
	if err != nil {
		return err
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(name, token, int(ttl.Seconds()), "/", "", secure, true)
	return nil
}

// ClearSession expires both session cookies.
func ClearSession(ctx *gin.Context, secure bool) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	for _, name := range []string{UserSessionCookie, Web3SessionCookie} {
		ctx.SetCookie(name, "", -1, "/", "", secure, true)
	}
}

func SecureHeaders(ctx *gin.Context) {
	ctx.Header("X-Content-Type-Options", "nosniff")
	ctx.Header("X-Frame-Options", "DENY")
	ctx.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	ctx.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	ctx.Next()
}
