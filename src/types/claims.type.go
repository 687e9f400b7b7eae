package types

import "github.com/golang-jwt/jwt/v4"

type SessionClaims struct {
	UserID        string `json:"uid,omitempty"`
	WalletAddress string `json:"wallet,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Claims is the inverse of SessionClaims.Session, used to re-issue a cookie.
func (s *Session) Claims() SessionClaims {
	return SessionClaims{
		UserID:        s.UserID,
		WalletAddress: s.WalletAddress,
		Email:         s.Email,
		Name:          s.Name,
	}
}

func (c SessionClaims) Session(source string) *Session {
	return &Session{
		UserID:        c.UserID,
		WalletAddress: c.WalletAddress,
		Email:         c.Email,
		Name:          c.Name,
		Source:        source,
	}
}
