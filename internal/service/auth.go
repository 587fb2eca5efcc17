package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// AuthService handles family account registration, login and refresh
// token rotation. One account per family; the family ID is the JWT
// subject and every other endpoint is scoped by it.
type AuthService struct {
	store      port.AuthStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(store port.AuthStore, jwtSecret string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// ============================================================
// Register — POST /v1/auth/register
// ============================================================

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "invalid email"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, &domain.ErrValidation{Field: "password", Message: "password must be at least 8 characters"}
	}
	if req.Name == "" || req.OwnerName == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "family and owner names are required"}
	}

	// Reject duplicate emails up front; the unique index is the backstop.
	var notFound *domain.ErrNotFound
	if _, err := s.store.GetFamilyByEmail(ctx, email); err == nil {
		return nil, &domain.ErrDuplicate{Key: email}
	} else if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	reqCopy := *req
	reqCopy.Email = email
	family, err := s.store.CreateFamilyWithOwner(ctx, &reqCopy, string(hash))
	if err != nil {
		return nil, fmt.Errorf("create family: %w", err)
	}

	s.logger.Info("family registered", zap.String("family_id", family.ID))
	return s.issueTokens(ctx, family)
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	family, err := s.store.GetFamilyByEmail(ctx, email)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, &domain.ErrUnauthorized{Message: "invalid email or password"}
		}
		return nil, fmt.Errorf("lookup family: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(family.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: bad password", zap.String("family_id", family.ID))
		return nil, &domain.ErrUnauthorized{Message: "invalid email or password"}
	}

	return s.issueTokens(ctx, family)
}

// ============================================================
// Refresh — POST /v1/auth/refresh
// ============================================================

func (s *AuthService) Refresh(ctx context.Context, req *domain.RefreshRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	tokenHash := hashToken(req.RefreshToken)

	stored, err := s.store.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, &domain.ErrUnauthorized{Message: "invalid refresh token"}
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if stored.ExpiresAt.Before(time.Now()) {
		s.logger.Warn("refresh: expired token used", zap.String("family_id", stored.FamilyID))
		_ = s.store.RevokeRefreshToken(ctx, tokenHash)
		return nil, &domain.ErrUnauthorized{Message: "refresh token expired"}
	}

	// Rotation: the presented token is single-use.
	if err := s.store.RevokeRefreshToken(ctx, tokenHash); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	family, err := s.store.GetFamilyByID(ctx, stored.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}

	return s.issueTokens(ctx, family)
}

// ============================================================
// Logout — POST /v1/auth/logout
// ============================================================

// Logout revokes every refresh token the family holds. Access tokens
// stay valid until they expire (15 minutes).
func (s *AuthService) Logout(ctx context.Context, familyID string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.store.RevokeAllRefreshTokens(ctx, familyID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.logger.Info("family logged out", zap.String("family_id", familyID))
	return nil
}

// ============================================================
// Tokens
// ============================================================

// JWTClaims are the custom claims in access tokens.
type JWTClaims struct {
	FamilyName string `json:"family_name,omitempty"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses and verifies an access token, used by the
// auth middleware. Returns the claims on success.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid access token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid access token"}
	}
	return claims, nil
}

func (s *AuthService) issueTokens(ctx context.Context, family *domain.FamilyAccount) (*domain.LoginResponse, error) {
	accessToken, err := s.signAccessToken(family)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.store.StoreRefreshToken(ctx, family.ID, refreshHash, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		FamilyID:     family.ID,
		FamilyName:   family.Name,
	}, nil
}

func (s *AuthService) signAccessToken(family *domain.FamilyAccount) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		FamilyName: family.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   family.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// generateRefreshToken returns (rawToken, sha256Hash). Only the hash is
// stored; the raw token exists client-side only.
func generateRefreshToken() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw := hex.EncodeToString(buf)
	return raw, hashToken(raw), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
