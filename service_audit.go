package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/hexkit/authkit/jwt"
	"github.com/hexkit/authkit/revocation"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventReplayDetected      = "replay_detected"
	auditEventFamilyRevoked       = "token_family_revoked"
	auditEventDeviceMismatch      = "device_mismatch"
	auditEventLogout              = "logout"
	auditEventTokenRevoked        = "token_revoked"
	auditEventUserTokensRevoked   = "user_tokens_revoked"
	auditEventDeviceTokensRevoked = "device_tokens_revoked"
	auditEventValidateRevoked     = "validate_revoked_token"
	auditEventCleanup             = "cleanup_sweep"
)

// AuditErrorCode is the normalized error label carried in audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenValidation    AuditErrorCode = "token_validation"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrReplayDetected     AuditErrorCode = "replay_detected"
	auditErrDeviceMismatch     AuditErrorCode = "device_mismatch"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrReplayDetected):
		return auditErrReplayDetected
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrDeviceMismatch):
		return auditErrDeviceMismatch
	case errors.Is(err, jwt.ErrExpired):
		return auditErrTokenExpired
	case errors.Is(err, jwt.ErrValidation):
		return auditErrTokenValidation
	case errors.Is(err, jwt.ErrInvalid), errors.Is(err, jwt.ErrGeneration):
		return auditErrInvalidToken
	case errors.Is(err, revocation.ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (s *Service) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	jti string,
	device DeviceInfo,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	ip := device.IP
	if ip == "" {
		ip = clientIPFromContext(ctx)
	}
	userAgent := device.UserAgent
	if userAgent == "" {
		userAgent = userAgentFromContext(ctx)
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		JTI:       jti,
		DeviceID:  device.DeviceID,
		IP:        ip,
		UserAgent: userAgent,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	s.audit.Emit(ctx, event)
}
