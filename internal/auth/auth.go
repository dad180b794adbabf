package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"media-resolver/pkg/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService handles authentication for the protected API surface
type AuthService struct {
	storage     models.Storage
	jwtSecret   []byte
	tokenExpiry time.Duration
	logger      zerolog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(jwtSecret string, tokenExpiry time.Duration) *AuthService {
	if tokenExpiry <= 0 {
		tokenExpiry = 24 * time.Hour
	}
	return &AuthService{
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: tokenExpiry,
		logger:      zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// SetStorage sets the storage implementation
func (s *AuthService) SetStorage(storage models.Storage) {
	s.storage = storage
}

// CreateUser creates a new user with a hashed password
func (s *AuthService) CreateUser(username, password, role string) (*models.User, error) {
	if s.storage == nil {
		return nil, errors.New("storage not set")
	}

	if existing, _ := s.storage.GetUserByUsername(username); existing != nil {
		return nil, errors.New("user already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  string(hashedPassword),
		Role:      role,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	s.logger.Info().Str("username", username).Msg("User created")

	return user, nil
}

// Authenticate checks credentials and returns a signed JWT token
func (s *AuthService) Authenticate(username, password string) (string, *models.User, error) {
	if s.storage == nil {
		return "", nil, errors.New("storage not set")
	}

	user, err := s.storage.GetUserByUsername(username)
	if err != nil {
		return "", nil, ErrUserNotFound
	}

	if !user.Active {
		return "", nil, errors.New("user account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.storage.UpdateUser(user); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to update last login")
	}

	s.logger.Info().Str("username", username).Msg("User authenticated")

	return token, user, nil
}

// ValidateToken validates a JWT token and returns the user
func (s *AuthService) ValidateToken(tokenString string) (*models.User, error) {
	if s.storage == nil {
		return nil, errors.New("storage not set")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	user, err := s.storage.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// RefreshToken issues a fresh token for a still-valid one
func (s *AuthService) RefreshToken(tokenString string) (string, error) {
	user, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	return s.generateToken(user)
}

// generateToken generates a signed JWT token for a user
func (s *AuthService) generateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(s.tokenExpiry).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.jwtSecret)
}
