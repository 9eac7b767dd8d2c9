package service

import (
	"errors"

	"nft-sage-go/internal/config"
	"nft-sage-go/pkg/hash"
	"nft-sage-go/pkg/log"
	"nft-sage-go/pkg/token"
)

// ErrInvalidCredentials 表示用户名或密码错误。
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService 为管理接口签发令牌。只有配置中的单个管理员账号。
type AuthService interface {
	Login(username, password string) (string, error)
}

type authService struct {
	admin      config.AdminConfig
	jwtManager *token.JWTManager
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(admin config.AdminConfig, jwtManager *token.JWTManager) AuthService {
	return &authService{admin: admin, jwtManager: jwtManager}
}

// Login 校验管理员密码并签发 access token。
func (s *authService) Login(username, password string) (string, error) {
	if s.admin.PasswordHash == "" || username != s.admin.Username || !hash.CheckPasswordHash(password, s.admin.PasswordHash) {
		log.Warnw("管理员登录失败", "username", username)
		return "", ErrInvalidCredentials
	}
	return s.jwtManager.GenerateToken(username, token.RoleAdmin)
}
