// Package auth owns accounts, sessions, and credentials.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"vtu/internal/domain"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmailOrPhone(ctx context.Context, identifier string) (*domain.User, error)
	FindByReferralCode(ctx context.Context, code string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *domain.User) error
}

type ApiKeyStore interface {
	Rotate(ctx context.Context, key *domain.ApiKey) error
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.ApiKey, error)
}

type Service struct {
	users   Repository
	apiKeys ApiKeyStore
	secret  []byte
	expiry  time.Duration
	logger  logger.Logger
}

func NewService(users Repository, apiKeys ApiKeyStore, jwtSecret string, jwtExpiry time.Duration, log logger.Logger) *Service {
	return &Service{
		users:   users,
		apiKeys: apiKeys,
		secret:  []byte(jwtSecret),
		expiry:  jwtExpiry,
		logger:  log,
	}
}

// Claims carried in a session token. Role is captured at login and never
// re-read during the session.
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type RegisterRequest struct {
	FullName     string `json:"full_name" validate:"required,min=2,max=100"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,ng_phone"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	ReferralCode string `json:"referral_code" validate:"omitempty,len=8"`
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*domain.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.ErrUserAlreadyExists
	}

	var referredBy *uuid.UUID
	if req.ReferralCode != "" {
		referrer, err := s.users.FindByReferralCode(ctx, strings.ToUpper(req.ReferralCode))
		if err != nil {
			return nil, errors.Wrap(errors.ErrUserNotFound, "unknown referral code")
		}
		referredBy = &referrer.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		FullName:     req.FullName,
		Email:        strings.ToLower(req.Email),
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Balance:      decimal.Zero,
		KYCStatus:    domain.KYCStatusNone,
		ReferredBy:   referredBy,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Referral codes are random; on the rare collision, regenerate and retry.
	for attempt := 0; attempt < 3; attempt++ {
		user.ReferralCode = newReferralCode()
		err = s.users.Create(ctx, user)
		if err == nil {
			break
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "referral_code") {
				continue
			}
			return nil, errors.ErrUserAlreadyExists
		}
		return nil, errors.Wrap(err, "failed to create user")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}

	s.logger.Info("User registered", map[string]interface{}{
		"user_id":  user.ID,
		"referred": referredBy != nil,
	})
	return user, nil
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"` // email or phone
	Password   string `json:"password" validate:"required"`
	TOTPCode   string `json:"totp_code" validate:"omitempty,len=6"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	user, err := s.users.FindByEmailOrPhone(ctx, strings.ToLower(strings.TrimSpace(req.Identifier)))
	if err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, errors.Wrap(errors.ErrForbidden, "account is deactivated")
	}

	if user.IsTOTPEnabled {
		if req.TOTPCode == "" {
			return nil, errors.ErrTOTPRequired
		}
		if user.TOTPSecret == nil || !validateTOTP(req.TOTPCode, *user.TOTPSecret) {
			return nil, errors.ErrInvalidTOTP
		}
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("Failed to record last login", map[string]interface{}{
			"user_id": user.ID, "error": err.Error(),
		})
	}

	s.logger.Info("User logged in", map[string]interface{}{"user_id": user.ID})
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) generateToken(user *domain.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.expiry)
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "vtu",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign token")
	}
	return token, expiresAt, nil
}

// ValidateToken parses and verifies a bearer token.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidCredentials
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.ErrInvalidCredentials
	}
	return claims, nil
}

func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=2,max=100"`
	Phone    *string `json:"phone" validate:"omitempty,ng_phone"`
	Avatar   *string `json:"-"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Avatar != nil {
		user.Avatar = req.Avatar
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return errors.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}
	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.logger.Info("Password changed", map[string]interface{}{"user_id": userID})
	return nil
}

// API keys.

const apiKeyPrefix = "vtu_live_"

// RotateAPIKey issues a fresh reseller key, revoking any previous one. The
// raw key is returned exactly once; only its hash is stored.
func (s *Service) RotateAPIKey(ctx context.Context, userID uuid.UUID) (string, *domain.ApiKey, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, errors.Wrap(err, "failed to generate api key")
	}
	rawKey := apiKeyPrefix + hex.EncodeToString(raw)
	sum := sha256.Sum256([]byte(rawKey))

	key := &domain.ApiKey{
		ID:        uuid.New(),
		UserID:    userID,
		Prefix:    rawKey[:len(apiKeyPrefix)+8],
		KeyHash:   hex.EncodeToString(sum[:]),
		CreatedAt: time.Now(),
	}
	if err := s.apiKeys.Rotate(ctx, key); err != nil {
		return "", nil, err
	}
	s.logger.Info("API key rotated", map[string]interface{}{"user_id": userID})
	return rawKey, key, nil
}

func (s *Service) GetAPIKey(ctx context.Context, userID uuid.UUID) (*domain.ApiKey, error) {
	return s.apiKeys.FindActiveByUser(ctx, userID)
}

func newReferralCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return strings.ToUpper(hex.EncodeToString([]byte{byte(time.Now().UnixNano())}))[:8]
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b)
}
