package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
)

// TokenInfo is what can be read from a bearer token without its key.
type TokenInfo struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

// PeekToken reads the registered claims of a JWT without verifying its
// signature. Verification is the chat service's job; this only rejects
// tokens that are malformed or already expired before a round trip is made.
// Opaque (non-JWT) tokens are passed through with an empty TokenInfo.
func PeekToken(token string, now time.Time) (*TokenInfo, error) {
	if token == "" {
		return nil, &domain.ConfigurationError{Reason: "empty token"}
	}

	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return &TokenInfo{}, nil
		}
		return nil, &domain.ConfigurationError{Reason: "unreadable token", Err: err}
	}

	info := &TokenInfo{Subject: claims.Subject, Issuer: claims.Issuer}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		if !now.Before(info.ExpiresAt) {
			return nil, &domain.ConfigurationError{
				Reason: fmt.Sprintf("token expired at %s", info.ExpiresAt.Format(time.RFC3339)),
			}
		}
	}
	return info, nil
}
