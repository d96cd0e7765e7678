package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/promptshield/promptshield/backend/internal/config"
	"github.com/promptshield/promptshield/backend/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAccountDisabled    = errors.New("account disabled")
)

const tokenTTL = 12 * time.Hour

// AuthService issues and validates reviewer tokens for the governance API.
type AuthService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewAuthService(db *gorm.DB, cfg config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// Register creates a reviewer account. The first account becomes admin.
func (s *AuthService) Register(email, password, name string) (*models.User, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}

	role := "reviewer"
	if count == 0 {
		role = "admin"
	}

	user := models.User{Email: email, Name: name, Role: role, Enabled: true}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// Login verifies credentials and returns a signed JWT.
func (s *AuthService) Login(email, password string) (string, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !user.Enabled {
		return "", ErrAccountDisabled
	}
	if !user.CheckPassword(password) {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Save(&user)

	claims := jwt.MapClaims{
		"sub":   user.UUID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   now.Add(tokenTTL).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses a JWT and returns the matching user.
func (s *AuthService) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.Where("uuid = ?", sub).First(&user).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}

	return &user, nil
}
