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

	"packvault-autosell-api/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "pvs_"

	// TokenTTL is the default token lifetime (1 hour)
	TokenTTL = 1 * time.Hour

	// TokenRedisKeyPrefix is the Redis key prefix for tokens
	TokenRedisKeyPrefix = "packvault:token:"
)

// Token validation errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token not found or expired")
)

// TokenService handles session token generation and validation.
type TokenService struct {
	redis *redis.Client
	now   func() time.Time
	log   zerolog.Logger
}

// NewTokenService creates a new token service.
func NewTokenService(redisClient *redis.Client, log zerolog.Logger) *TokenService {
	return &TokenService{
		redis: redisClient,
		now:   time.Now,
		log:   log.With().Str("component", "tokens").Logger(),
	}
}

// GenerateToken creates a new session token and stores it in Redis.
func (s *TokenService) GenerateToken(ctx context.Context, data model.TokenData) (string, error) {
	if data.UserID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrTokenInvalid)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	data.CreatedAt = s.now()
	data.ExpiresAt = data.CreatedAt.Add(TokenTTL)

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize token data: %w", err)
	}

	if err := s.redis.Set(ctx, TokenRedisKeyPrefix+token, jsonData, TokenTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	s.log.Info().Str("user_id", data.UserID).Time("expires", data.ExpiresAt).Msg("Generated token")
	return token, nil
}

// ValidateToken checks if a token is valid and returns its data.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.TokenData, error) {
	if token == "" || !strings.HasPrefix(token, TokenPrefix) {
		return nil, ErrTokenInvalid
	}

	key := TokenRedisKeyPrefix + token
	jsonData, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}

	if s.now().After(data.ExpiresAt) {
		s.redis.Del(ctx, key)
		return nil, ErrTokenExpired
	}

	return &data, nil
}

// RevokeToken deletes a token from Redis.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	return s.redis.Del(ctx, TokenRedisKeyPrefix+token).Err()
}

// RefreshToken extends the TTL of an existing token.
func (s *TokenService) RefreshToken(ctx context.Context, token string) (*model.TokenData, error) {
	key := TokenRedisKeyPrefix + token

	jsonData, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}

	data.ExpiresAt = s.now().Add(TokenTTL)

	newJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize token data: %w", err)
	}
	if err := s.redis.Set(ctx, key, newJSON, TokenTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return &data, nil
}
