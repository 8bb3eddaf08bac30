package fakeapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

type tokenClaims struct {
	TokenType string `json:"token_type"`
	Role      string `json:"role,omitempty"`
	// Generation lets tests invalidate every access token issued so far.
	Generation int64 `json:"gen,omitempty"`
	jwt.RegisteredClaims
}

func (s *Server) mint(u userRow, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		TokenType:  typ,
		Role:       u.Role,
		Generation: s.generation.Load(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) tokenPair(u userRow) (access, refresh string, err error) {
	s.mu.RLock()
	accessTTL, refreshTTL := s.accessTTL, s.refreshTTL
	s.mu.RUnlock()

	if access, err = s.mint(u, tokenAccess, accessTTL); err != nil {
		return "", "", err
	}
	if refresh, err = s.mint(u, tokenRefresh, refreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// parse verifies signature, expiry and token type, and returns the user id.
func (s *Server) parse(token, typ string) (uint, *tokenClaims, error) {
	var claims tokenClaims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return s.secret, nil
	})
	if err != nil || !tkn.Valid {
		return 0, nil, errors.New("token is invalid or expired")
	}
	if claims.TokenType != typ {
		return 0, nil, errors.New("wrong token type")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, nil, err
	}
	return uint(id), &claims, nil
}
