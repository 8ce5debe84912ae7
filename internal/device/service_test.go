package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/auth"
	"rfidaccess/internal/store/storetest"
)

func setupTestDeviceService(t *testing.T) *Service {
	t.Helper()
	db := storetest.New(t)
	return NewService(NewRepository(db.Client), TokenConfig{
		Issuer:     "rfidaccess",
		SigningKey: "test-signing-key-0123456789",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}, zap.NewNop())
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	s := setupTestDeviceService(t)

	pair, err := s.Register(ctx, " gate-1 ")
	require.NoError(t, err)
	claims, err := auth.Parse(pair.AccessToken, "test-signing-key-0123456789", "rfidaccess")
	require.NoError(t, err)
	assert.Equal(t, "gate-1", claims.Subject)

	// re-registering the same device is fine
	_, err = s.Register(ctx, "gate-1")
	require.NoError(t, err)

	_, err = s.Register(ctx, "  ")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestRefresh_RotatesOnce(t *testing.T) {
	ctx := context.Background()
	s := setupTestDeviceService(t)

	pair, err := s.Register(ctx, "gate-1")
	require.NoError(t, err)

	next, err := s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	_, err = s.Refresh(ctx, next.AccessToken)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	_, err = s.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
}
