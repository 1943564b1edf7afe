package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"consign-review-api/internal/cache"
	"consign-review-api/internal/model"

	log "github.com/sirupsen/logrus"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "crt_"

	// DefaultTokenTTL is the token lifetime when none is configured
	DefaultTokenTTL = 8 * time.Hour

	tokenKeyPrefix = "token:"
)

// Token validation errors.
var (
	ErrEmptyToken    = errors.New("empty token")
	ErrInvalidToken  = errors.New("invalid token format")
	ErrTokenNotFound = errors.New("token not found or expired")
)

// TokenService handles session token generation and validation.
type TokenService struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *log.Entry
}

// NewTokenService creates a new token service.
func NewTokenService(c cache.Cache, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		cache:  c,
		ttl:    ttl,
		logger: log.WithField("component", "TokenService"),
	}
}

// TTL returns the lifetime of newly issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// GenerateToken creates a new session token and stores it in the cache.
func (s *TokenService) GenerateToken(ctx context.Context, data model.TokenData) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	data.CreatedAt = time.Now().UTC()
	data.ExpiresAt = data.CreatedAt.Add(s.ttl)

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize token data: %w", err)
	}

	if err := s.cache.Set(ctx, tokenKeyPrefix+token, jsonData, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"account_id": data.AccountID,
		"role":       data.Role,
		"expires":    data.ExpiresAt,
	}).Info("Generated token")

	return token, nil
}

// ValidateToken checks if a token is valid and returns its data.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.TokenData, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		return nil, ErrInvalidToken
	}

	key := tokenKeyPrefix + token
	jsonData, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}

	if time.Now().After(data.ExpiresAt) {
		_ = s.cache.Delete(ctx, key)
		return nil, ErrTokenNotFound
	}

	return &data, nil
}

// RevokeToken deletes a token.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, tokenKeyPrefix+token)
}

// RefreshToken extends the lifetime of an existing token.
func (s *TokenService) RefreshToken(ctx context.Context, token string) error {
	key := tokenKeyPrefix + token

	jsonData, err := s.cache.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("token not found: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return err
	}

	data.ExpiresAt = time.Now().UTC().Add(s.ttl)

	newJSON, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, newJSON, s.ttl)
}
