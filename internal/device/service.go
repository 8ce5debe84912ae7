// Package device registers badge readers and issues their API tokens.
package device

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/auth"
)

// TokenConfig controls the tokens minted for devices.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Service struct {
	repo   *Repository
	tokens TokenConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo *Repository, tokens TokenConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, tokens: tokens, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Register records the device if new and returns a fresh token pair.
func (s *Service) Register(ctx context.Context, deviceID string) (auth.TokenPair, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" || len(deviceID) > 128 {
		return auth.TokenPair{}, apperr.InvalidField("device_id", "device id required")
	}
	if err := s.repo.Upsert(ctx, deviceID, s.now()); err != nil {
		return auth.TokenPair{}, err
	}
	pair, err := s.issue(ctx, deviceID)
	if err != nil {
		return auth.TokenPair{}, err
	}
	s.logger.Info("device registered", zap.String("device_id", deviceID))
	return pair, nil
}

// Refresh rotates a refresh token: the old one is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := auth.Parse(refreshToken, s.tokens.SigningKey, s.tokens.Issuer)
	if err != nil || claims.Kind != auth.KindRefresh {
		return auth.TokenPair{}, apperr.InvalidField("refresh_token", "invalid refresh token")
	}
	ok, err := s.repo.ConsumeRefreshToken(ctx, claims.Subject, refreshToken, s.now())
	if err != nil {
		return auth.TokenPair{}, err
	}
	if !ok {
		s.logger.Warn("refresh token reuse or unknown token", zap.String("device_id", claims.Subject))
		return auth.TokenPair{}, apperr.InvalidField("refresh_token", "invalid refresh token")
	}
	return s.issue(ctx, claims.Subject)
}

func (s *Service) issue(ctx context.Context, deviceID string) (auth.TokenPair, error) {
	pair, err := auth.Issue(deviceID, auth.RoleDevice, s.tokens.Issuer, s.tokens.SigningKey, s.tokens.AccessTTL, s.tokens.RefreshTTL)
	if err != nil {
		return auth.TokenPair{}, apperr.InvalidState("token issue failed: " + err.Error())
	}
	if err := s.repo.SaveRefreshToken(ctx, deviceID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}
