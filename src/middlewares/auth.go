package middlewares

import (
	"errors"
	"fmt"
	"net/http"

	"sosseats/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
)

const (
	UserSessionCookie = "userSession"
	Web3SessionCookie = "web3Session"

	sessionKey = "session"
)

var ErrNoSession = errors.New("no valid session")

// Session resolves the caller from the session cookies, account session
// first, and stores it on the request context. Requests without a valid
// cookie continue as guests.
func Session(secret []byte) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		for _, name := range []string{UserSessionCookie, Web3SessionCookie} {
			raw, err := ctx.Cookie(name)
			if err != nil || raw == "" {
				continue
			}
			claims, err := ParseSession(secret, raw)
			if err != nil {
				log.Printf("[session] %s cookie rejected: %s\n", name, err.Error())
				continue
			}
			ctx.Set(sessionKey, claims.Session(name))
			break
		}
		ctx.Next()
	}
}

func ParseSession(secret []byte, raw string) (*types.SessionClaims, error) {
	claims := &types.SessionClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid || (claims.UserID == "" && claims.WalletAddress == "") {
		return nil, ErrNoSession
	}
	return claims, nil
}

// GetSession returns the caller's session, or nil for guests.
func GetSession(ctx *gin.Context) *types.Session {
	v, ok := ctx.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*types.Session)
	return s
}

func RequireSession(ctx *gin.Context) {
	if GetSession(ctx) == nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
		return
	}
	ctx.Next()
}

// RequireWallet admits only sessions that carry a wallet address.
func RequireWallet(ctx *gin.Context) {
	s := GetSession(ctx)
	if s == nil || s.WalletAddress == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized: wallet session required"})
		return
	}
	ctx.Next()
}
