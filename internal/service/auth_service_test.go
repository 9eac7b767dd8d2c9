package service

import (
	"testing"

	"nft-sage-go/internal/config"
	"nft-sage-go/pkg/hash"
	"nft-sage-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Login(t *testing.T) {
	h, err := hash.HashPassword("pw")
	require.NoError(t, err)
	jwt := token.NewJWTManager("secret", 1)
	svc := NewAuthService(config.AdminConfig{Username: "admin", PasswordHash: h}, jwt)

	tok, err := svc.Login("admin", "pw")
	require.NoError(t, err)
	claims, err := jwt.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, token.RoleAdmin, claims.Role)

	_, err = svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("root", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_NoPasswordConfigured(t *testing.T) {
	svc := NewAuthService(config.AdminConfig{Username: "admin"}, token.NewJWTManager("s", 1))
	_, err := svc.Login("admin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
