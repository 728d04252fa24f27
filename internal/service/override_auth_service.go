package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gme-scheduler/core/internal/models"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
)

type overrideAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// OverrideAuthConfig configures the override-token mint/verify flow.
type OverrideAuthConfig struct {
	TokenSecret    string
	TokenTTL       time.Duration
	Issuer         string
	PassphraseHash string // bcrypt hash of the shared override passphrase
}

// OverrideAuthService gates manual overrides and resilience-gate
// bypasses behind a shared passphrase plus a short-lived JWT. It never
// manages per-user accounts: overrides are a break-glass mechanism, not
// a login flow.
type OverrideAuthService struct {
	audit  overrideAuditWriter
	logger *zap.Logger
	config OverrideAuthConfig
}

// NewOverrideAuthService constructs an OverrideAuthService.
func NewOverrideAuthService(audit overrideAuditWriter, logger *zap.Logger, config OverrideAuthConfig) *OverrideAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideAuthService{audit: audit, logger: logger, config: config}
}

// Authenticate checks the shared override passphrase and, on success,
// mints a scoped token for the given actor.
func (s *OverrideAuthService) Authenticate(ctx context.Context, actorID string, role models.Role, scope models.OverrideScope, passphrase string) (string, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.PassphraseHash), []byte(passphrase)); err != nil {
		return "", appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid override passphrase")
	}

	token, err := s.issueToken(actorID, role, scope)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint override token")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			ActorID:  &actorID,
			Action:   models.AuditActionResilienceOverride,
			Resource: string(scope),
		}); err != nil {
			s.logger.Warn("failed to record override authentication audit log", zap.Error(err))
		}
	}

	return token, nil
}

func (s *OverrideAuthService) issueToken(actorID string, role models.Role, scope models.OverrideScope) (string, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.TokenTTL)
	claims := &models.OverrideClaims{
		ActorID: actorID,
		Role:    role,
		Scope:   scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   actorID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.TokenSecret))
}

// ValidateToken parses and validates an override token, returning the
// claims so callers can check Scope against what they need.
func (s *OverrideAuthService) ValidateToken(tokenString string) (*models.OverrideClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.OverrideClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid override token")
	}

	claims, ok := token.Claims.(*models.OverrideClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid override token claims")
	}

	return claims, nil
}

// AuthorizeScope returns an error unless claims grant the requested scope.
func (s *OverrideAuthService) AuthorizeScope(claims *models.OverrideClaims, want models.OverrideScope) error {
	if claims.Scope != want {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("override token does not grant scope %q", want))
	}
	return nil
}
