package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gme-scheduler/core/internal/models"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
)

type mockOverrideAudit struct {
	logs []*models.AuditLog
}

func (m *mockOverrideAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newOverrideAuthService(t *testing.T, audit overrideAuditWriter) *OverrideAuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("let-me-in"), bcrypt.DefaultCost)
	require.NoError(t, err)
	return NewOverrideAuthService(audit, zap.NewNop(), OverrideAuthConfig{
		TokenSecret:    "test-secret",
		TokenTTL:       15 * time.Minute,
		Issuer:         "gme-scheduler",
		PassphraseHash: string(hash),
	})
}

func TestOverrideAuthServiceAuthenticateSuccess(t *testing.T) {
	audit := &mockOverrideAudit{}
	svc := newOverrideAuthService(t, audit)

	token, err := svc.Authenticate(context.Background(), "chief-1", models.RoleFacultyPD, models.OverrideScopeResilience, "let-me-in")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionResilienceOverride, audit.logs[0].Action)
}

func TestOverrideAuthServiceAuthenticateBadPassphrase(t *testing.T) {
	svc := newOverrideAuthService(t, &mockOverrideAudit{})

	_, err := svc.Authenticate(context.Background(), "chief-1", models.RoleFacultyPD, models.OverrideScopeResilience, "wrong")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestOverrideAuthServiceValidateToken(t *testing.T) {
	svc := newOverrideAuthService(t, &mockOverrideAudit{})

	token, err := svc.Authenticate(context.Background(), "pd-1", models.RoleFacultyPD, models.OverrideScopeAssignment, "let-me-in")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "pd-1", claims.ActorID)
	assert.Equal(t, models.OverrideScopeAssignment, claims.Scope)

	require.NoError(t, svc.AuthorizeScope(claims, models.OverrideScopeAssignment))
	require.Error(t, svc.AuthorizeScope(claims, models.OverrideScopeResilience))
}

func TestOverrideAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newOverrideAuthService(t, &mockOverrideAudit{})

	_, err := svc.ValidateToken("not-a-jwt")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestOverrideAuthServiceValidateTokenExpired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("let-me-in"), bcrypt.DefaultCost)
	require.NoError(t, err)
	svc := NewOverrideAuthService(&mockOverrideAudit{}, zap.NewNop(), OverrideAuthConfig{
		TokenSecret:    "test-secret",
		TokenTTL:       -time.Minute,
		Issuer:         "gme-scheduler",
		PassphraseHash: string(hash),
	})

	token, err := svc.Authenticate(context.Background(), "chief-1", models.RoleFacultyPD, models.OverrideScopeResilience, "let-me-in")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}
