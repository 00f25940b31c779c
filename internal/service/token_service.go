package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/repository"
	"github.com/ticketdesk/auth-service/internal/security"
)

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RotateResult carries the new pair plus the family the rotation happened in,
// so the caller can touch the matching session.
type RotateResult struct {
	Pair   TokenPair
	UserID uint
	Family string
}

// TokenService mints and rotates JWT pairs. Refresh tokens are stored
// hash-only; rotation is at-most-once per token, and replay of an already
// rotated token revokes the entire family.
type TokenService struct {
	codec      *security.JWTManager
	tokens     repository.RefreshTokenRepository
	users      repository.UserRepository
	pepper     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(
	codec *security.JWTManager,
	tokens repository.RefreshTokenRepository,
	users repository.UserRepository,
	pepper string,
	accessTTL, refreshTTL time.Duration,
) *TokenService {
	return &TokenService{
		codec:      codec,
		tokens:     tokens,
		users:      users,
		pepper:     pepper,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue mints a fresh pair and starts a new token family. The family ID is
// what links the refresh-token chain to the login session.
func (s *TokenService) Issue(user *domain.User, ip, userAgent string) (TokenPair, string, error) {
	family := uuid.NewString()
	pair, err := s.mint(user, family, ip, userAgent)
	if err != nil {
		return TokenPair{}, "", err
	}
	return pair, family, nil
}

// Rotate exchanges a valid refresh token for a new pair in the same family.
// Presenting an already rotated token is treated as theft: the whole family is
// revoked and ErrTokenReuseDetected is returned.
func (s *TokenService) Rotate(rawRefresh, ip, userAgent string) (RotateResult, error) {
	claims, err := s.codec.ParseRefreshToken(rawRefresh)
	if err != nil {
		if errors.Is(err, security.ErrWrongTokenType) {
			return RotateResult{}, ErrWrongTokenType
		}
		return RotateResult{}, ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return RotateResult{}, ErrInvalidToken
	}

	hash := security.HashToken(rawRefresh, s.pepper)
	stored, err := s.tokens.FindByHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return RotateResult{}, ErrInvalidToken
		}
		return RotateResult{}, err
	}
	if stored.UserID != userID {
		return RotateResult{}, ErrInvalidToken
	}
	if stored.Revoked() {
		if err := s.tokens.MarkReuseDetected(hash); err != nil {
			return RotateResult{}, err
		}
		if _, err := s.tokens.RevokeFamily(stored.TokenFamily, domain.RevokeReasonReuseDetected); err != nil {
			return RotateResult{}, err
		}
		return RotateResult{UserID: stored.UserID, Family: stored.TokenFamily}, ErrTokenReuseDetected
	}
	if stored.Expired(time.Now()) {
		return RotateResult{}, ErrInvalidToken
	}

	user, err := s.users.FindByID(stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return RotateResult{}, ErrInvalidToken
		}
		return RotateResult{}, err
	}
	if !user.IsActive {
		return RotateResult{}, ErrAccountInactive
	}

	access, err := s.codec.SignAccessToken(user, s.accessTTL)
	if err != nil {
		return RotateResult{}, err
	}
	refresh, err := s.codec.SignRefreshToken(user, s.refreshTTL)
	if err != nil {
		return RotateResult{}, err
	}
	next := &domain.RefreshToken{
		UserID:      user.ID,
		TokenHash:   security.HashToken(refresh, s.pepper),
		TokenFamily: stored.TokenFamily,
		ExpiresAt:   time.Now().UTC().Add(s.refreshTTL),
		IPAddress:   ip,
		UserAgent:   userAgent,
	}
	// The repository locks the old row, so if two refreshes race on the same
	// token, the loser sees not-found here.
	if _, err := s.tokens.Rotate(hash, next); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return RotateResult{}, ErrInvalidToken
		}
		return RotateResult{}, err
	}
	return RotateResult{
		Pair: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "Bearer",
			ExpiresIn:    int64(s.accessTTL.Seconds()),
		},
		UserID: user.ID,
		Family: stored.TokenFamily,
	}, nil
}

// RevokeRefresh revokes the family the presented refresh token belongs to,
// after confirming the token is ownerID's. A failed check revokes nothing.
// Invalid, unknown, and foreign tokens all map to ErrInvalidToken so logout
// cannot be used to probe the store.
func (s *TokenService) RevokeRefresh(rawRefresh string, ownerID uint, reason string) (string, error) {
	claims, err := s.codec.ParseRefreshToken(rawRefresh)
	if err != nil {
		return "", ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", ErrInvalidToken
	}
	hash := security.HashToken(rawRefresh, s.pepper)
	stored, err := s.tokens.FindByHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if stored.UserID != userID || stored.UserID != ownerID {
		return "", ErrInvalidToken
	}
	if _, err := s.tokens.RevokeFamily(stored.TokenFamily, reason); err != nil {
		return "", err
	}
	return stored.TokenFamily, nil
}

// RevokeAllForUser invalidates every live refresh token the user holds.
func (s *TokenService) RevokeAllForUser(userID uint, reason string) (int64, error) {
	return s.tokens.RevokeAllForUser(userID, reason)
}

// VerifyAccess validates an access token for request authentication.
func (s *TokenService) VerifyAccess(raw string) (*security.Claims, error) {
	claims, err := s.codec.ParseAccessToken(raw)
	if err != nil {
		if errors.Is(err, security.ErrWrongTokenType) {
			return nil, ErrWrongTokenType
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) mint(user *domain.User, family, ip, userAgent string) (TokenPair, error) {
	access, err := s.codec.SignAccessToken(user, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.SignRefreshToken(user, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	record := &domain.RefreshToken{
		UserID:      user.ID,
		TokenHash:   security.HashToken(refresh, s.pepper),
		TokenFamily: family,
		ExpiresAt:   time.Now().UTC().Add(s.refreshTTL),
		IPAddress:   ip,
		UserAgent:   userAgent,
	}
	if err := s.tokens.Create(record); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}
