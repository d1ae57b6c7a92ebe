package services

import (
	"errors"
	"time"

	"peercam/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenService mints and validates the signaling tokens attached to
// broker register payloads and accepted by the loopback control API.
// A nil service (no signaling key configured) disables both.
type TokenService struct {
	key []byte
	ttl time.Duration
}

type SignalingClaims struct {
	ChannelID domain.ChannelID `json:"channel_id"`
	ClientID  domain.ClientID  `json:"client_id"`
	jwt.RegisteredClaims
}

func NewTokenService(signalingKey string, ttl time.Duration) *TokenService {
	if signalingKey == "" {
		return nil
	}
	return &TokenService{key: []byte(signalingKey), ttl: ttl}
}

func (s *TokenService) GenerateToken(channelID domain.ChannelID, clientID domain.ClientID) (string, error) {
	now := time.Now()
	claims := &SignalingClaims{
		ChannelID: channelID,
		ClientID:  clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *TokenService) ValidateToken(tokenString string) (*SignalingClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SignalingClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SignalingClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
