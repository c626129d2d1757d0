package authkit

import (
	"context"
	"fmt"
	"time"

	"github.com/hexkit/authkit/jwt"
	"github.com/hexkit/authkit/revocation"
	"github.com/hexkit/authkit/store"
)

// RevokeToken invalidates a single token before its natural expiry. The
// token's jti goes on the revocation list until the token would have
// expired anyway; a refresh token's store record is retired as well.
// An empty reason is recorded as "manual". The signature is not checked
// so that a token can be revoked on any suspicion, even when the key
// that signed it has been rotated out.
func (s *Service) RevokeToken(ctx context.Context, token, reason string) error {
	if s == nil {
		return ErrServiceNotReady
	}
	if s.closed.Load() {
		return ErrServiceClosed
	}
	if reason == "" {
		reason = store.ReasonManual
	}

	claims, err := s.jwtManager.ParseUnsafe(token)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return fmt.Errorf("%w: missing expiry", ErrTokenInvalid)
	}
	expiresAt := claims.ExpiresAt.Time
	if !time.Now().Before(expiresAt) {
		// Already dead; nothing to blacklist.
		return nil
	}

	entry := revocation.Entry{
		JTI:       claims.JTI(),
		UserID:    claims.UserID,
		TokenType: string(claims.TokenType),
		Reason:    reason,
		RevokedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := s.revoked.Add(ctx, entry); err != nil {
		return err
	}

	if claims.TokenType == jwt.TypeRefresh {
		if _, err := s.tokens.Revoke(ctx, claims.JTI(), reason); err != nil {
			return err
		}
	}

	s.metricInc(MetricTokenRevoked)
	s.emitAudit(ctx, auditEventTokenRevoked, true, claims.UserID, claims.JTI(), DeviceInfo{DeviceID: claims.DeviceID}, nil, func() map[string]string {
		return map[string]string{
			"token_type": string(claims.TokenType),
			"reason":     reason,
		}
	})
	return nil
}

// RevokeAllUserTokens revokes every active refresh token the user
// holds, except the record named by excludeJTI when non-empty. The
// exclusion keeps "log out everywhere else" from ending the session
// that requested it. An empty reason is recorded as "user_revoked".
// Returns how many records were revoked.
func (s *Service) RevokeAllUserTokens(ctx context.Context, userID int64, excludeJTI, reason string) (int, error) {
	if s == nil {
		return 0, ErrServiceNotReady
	}
	if s.closed.Load() {
		return 0, ErrServiceClosed
	}
	if reason == "" {
		reason = store.ReasonUserRevoked
	}

	revoked, err := s.tokens.RevokeAllForUser(ctx, userID, excludeJTI, reason)
	if err != nil {
		return 0, err
	}

	if len(revoked) > 0 {
		s.metricInc(MetricUserTokensRevoked)
	}
	s.emitAudit(ctx, auditEventUserTokensRevoked, true, userID, excludeJTI, DeviceInfo{}, nil, func() map[string]string {
		return map[string]string{
			"revoked_count": fmt.Sprintf("%d", len(revoked)),
		}
	})
	return len(revoked), nil
}

// RevokeDeviceTokens revokes every active refresh token the user holds
// on one device. An empty reason is recorded as "device_revoked".
// Returns how many records were revoked.
func (s *Service) RevokeDeviceTokens(ctx context.Context, userID int64, deviceID, reason string) (int, error) {
	if s == nil {
		return 0, ErrServiceNotReady
	}
	if s.closed.Load() {
		return 0, ErrServiceClosed
	}
	if reason == "" {
		reason = store.ReasonDeviceRevoked
	}

	revoked, err := s.tokens.RevokeAllForDevice(ctx, userID, deviceID, reason)
	if err != nil {
		return 0, err
	}

	if len(revoked) > 0 {
		s.metricInc(MetricDeviceTokensRevoked)
	}
	s.emitAudit(ctx, auditEventDeviceTokensRevoked, true, userID, "", DeviceInfo{DeviceID: deviceID}, nil, func() map[string]string {
		return map[string]string{
			"revoked_count": fmt.Sprintf("%d", len(revoked)),
		}
	})
	return len(revoked), nil
}

// RevokeTokenFamily revokes the whole rotation lineage containing the
// given refresh-token jti. An empty reason is recorded as "manual".
// Returns how many records were revoked.
func (s *Service) RevokeTokenFamily(ctx context.Context, jti, reason string) (int, error) {
	if s == nil {
		return 0, ErrServiceNotReady
	}
	if s.closed.Load() {
		return 0, ErrServiceClosed
	}
	if reason == "" {
		reason = store.ReasonManual
	}

	rec, err := s.tokens.FindByJTI(ctx, jti)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, fmt.Errorf("%w: unknown jti", ErrTokenInvalid)
	}

	revoked, err := s.tokens.RevokeFamily(ctx, rec.RootJTI, reason)
	if err != nil {
		return 0, err
	}

	if len(revoked) > 0 {
		s.metricInc(MetricFamilyRevoked)
	}
	s.emitAudit(ctx, auditEventFamilyRevoked, true, rec.UserID, rec.RootJTI, DeviceInfo{}, nil, func() map[string]string {
		return map[string]string{
			"revoked_count": fmt.Sprintf("%d", len(revoked)),
		}
	})
	return len(revoked), nil
}
