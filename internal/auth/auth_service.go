package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/staywise/guest-services/backend/internal/repository"
)

// Auth service errors
var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrTooManyAttempts     = errors.New("too many failed login attempts")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// Error codes for API responses
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeTooManyAttempts     = "TOO_MANY_ATTEMPTS"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeAuthTokenMissing    = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid    = "AUTH_TOKEN_INVALID"
)

// Brute force protection constants
const (
	MaxFailedAttempts   = 5
	FailedAttemptWindow = 15 * time.Minute
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest represents the logout request payload
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

// TokenResponse represents the token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// UserResponse represents the user data in responses
type UserResponse struct {
	ID          string     `json:"id"`
	HotelID     string     `json:"hotel_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Department  *string    `json:"department,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// AuthService handles authentication business logic for staff accounts.
// Staff accounts are provisioned through the admin console, so there is no
// self-registration here.
type AuthService struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	tokenService *TokenService
	logger       *slog.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokenService *TokenService,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		tokenService: tokenService,
		logger:       logger,
	}
}

// Login authenticates a staff user and returns a token pair
func (s *AuthService) Login(ctx context.Context, req LoginRequest, ipAddress, userAgent string) (*AuthResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))

	since := time.Now().UTC().Add(-FailedAttemptWindow)
	failedAttempts, err := s.sessionRepo.CountFailedAttempts(ctx, email, since)
	if err != nil {
		return nil, err
	}
	if failedAttempts >= MaxFailedAttempts {
		return nil, ErrTooManyAttempts
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Record and return a generic error to prevent account enumeration
			_ = s.sessionRepo.RecordFailedAttempt(ctx, email, ipAddress)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		_ = s.sessionRepo.RecordFailedAttempt(ctx, email, ipAddress)
		return nil, ErrInvalidCredentials
	}

	tokenPair, err := s.tokenService.GenerateTokenPair(
		user.ID.String(), user.Email, user.HotelID.String(), user.Role,
	)
	if err != nil {
		return nil, err
	}

	session := &repository.Session{
		UserID:    user.ID,
		TokenHash: s.tokenService.HashRefreshToken(tokenPair.RefreshToken),
		ExpiresAt: time.Now().UTC().Add(s.tokenService.GetRefreshTokenExpiry()),
		IPAddress: &ipAddress,
		UserAgent: &userAgent,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	return &AuthResponse{
		User: UserResponse{
			ID:          user.ID.String(),
			HotelID:     user.HotelID.String(),
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        user.Role,
			Department:  user.Department,
			LastLogin:   user.LastLoginAt,
		},
		Tokens: TokenResponse{
			AccessToken:  tokenPair.AccessToken,
			RefreshToken: tokenPair.RefreshToken,
			ExpiresIn:    tokenPair.ExpiresIn,
			TokenType:    "Bearer",
		},
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The old
// session is rotated out.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	claims, err := s.tokenService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	tokenHash := s.tokenService.HashRefreshToken(req.RefreshToken)
	session, err := s.sessionRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		_ = s.sessionRepo.DeleteByTokenHash(ctx, tokenHash)
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if user.ID.String() != claims.UserID() {
		return nil, ErrInvalidRefreshToken
	}

	tokenPair, err := s.tokenService.GenerateTokenPair(
		user.ID.String(), user.Email, user.HotelID.String(), user.Role,
	)
	if err != nil {
		return nil, err
	}

	_ = s.sessionRepo.DeleteByTokenHash(ctx, tokenHash)
	newSession := &repository.Session{
		UserID:    user.ID,
		TokenHash: s.tokenService.HashRefreshToken(tokenPair.RefreshToken),
		ExpiresAt: time.Now().UTC().Add(s.tokenService.GetRefreshTokenExpiry()),
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
	}
	if err := s.sessionRepo.Create(ctx, newSession); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
		TokenType:    "Bearer",
	}, nil
}

// Logout invalidates the session behind a refresh token. Logging out an
// already-invalid token is not an error.
func (s *AuthService) Logout(ctx context.Context, req LogoutRequest) error {
	tokenHash := s.tokenService.HashRefreshToken(req.RefreshToken)
	err := s.sessionRepo.DeleteByTokenHash(ctx, tokenHash)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	return nil
}
