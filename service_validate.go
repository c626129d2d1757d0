package authkit

import (
	"context"
	"fmt"
	"time"

	"github.com/hexkit/authkit/internal"
	"github.com/hexkit/authkit/jwt"
	"github.com/hexkit/authkit/store"
)

// ValidateAccessToken verifies an access token's signature, expiry,
// issuer, and audience, then checks the revocation list. This is the
// per-request hot path; with the revocation cache enabled it normally
// costs one signature check and one map lookup.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (*Claims, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}

	start := time.Now()
	claims, err := s.validateAccess(ctx, token)
	if s.metrics.LatencyEnabled() {
		s.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	return claims, err
}

func (s *Service) validateAccess(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwtManager.Verify(token, jwt.TypeAccess)
	if err != nil {
		s.metricInc(MetricValidateFailure)
		return nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.JTI())
	if err != nil {
		// Fail closed: an unreachable blacklist must not admit tokens.
		s.metricInc(MetricValidateFailure)
		return nil, err
	}
	if revoked {
		s.metricInc(MetricValidateRevoked)
		s.emitAudit(ctx, auditEventValidateRevoked, false, claims.UserID, claims.JTI(),
			DeviceInfo{DeviceID: claims.DeviceID}, ErrTokenRevoked, nil)
		return nil, fmt.Errorf("%w: jti %s", ErrTokenRevoked, claims.JTI())
	}

	s.metricInc(MetricValidateSuccess)
	return claims, nil
}

// IsAccessTokenValid reports whether the token would pass
// [Service.ValidateAccessToken]. Errors collapse to false.
func (s *Service) IsAccessTokenValid(ctx context.Context, token string) bool {
	_, err := s.ValidateAccessToken(ctx, token)
	return err == nil
}

// IsRefreshTokenActive reports whether the refresh token verifies and
// its record is still usable, without rotating it.
func (s *Service) IsRefreshTokenActive(ctx context.Context, token string) bool {
	if s == nil || s.closed.Load() {
		return false
	}

	if _, err := s.jwtManager.Verify(token, jwt.TypeRefresh); err != nil {
		return false
	}
	rec, err := s.tokens.FindByTokenHash(ctx, internal.HashToken(token))
	if err != nil || rec == nil {
		return false
	}
	return rec.Usable(time.Now())
}

// IsTokenRevoked reports whether a verified token's jti appears on the
// revocation list or, for refresh tokens, whether its record has been
// retired. Unverifiable tokens report false; they are rejected outright
// rather than revoked.
func (s *Service) IsTokenRevoked(ctx context.Context, token string) bool {
	if s == nil || s.closed.Load() {
		return false
	}

	claims, err := s.jwtManager.Verify(token, "")
	if err != nil {
		return false
	}
	if revoked, err := s.revoked.IsRevoked(ctx, claims.JTI()); err == nil && revoked {
		return true
	}
	if claims.TokenType == jwt.TypeRefresh {
		rec, err := s.tokens.FindByJTI(ctx, claims.JTI())
		if err == nil && rec != nil && rec.Status == store.StatusRevoked {
			return true
		}
	}
	return false
}

// IsTokenNearExpiry reports whether a verified token expires within the
// threshold.
func (s *Service) IsTokenNearExpiry(token string, threshold time.Duration) bool {
	if s == nil {
		return false
	}

	claims, err := s.jwtManager.Verify(token, "")
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return time.Until(claims.ExpiresAt.Time) <= threshold
}

// IsTokenOwnedBy reports whether a verified token's subject matches
// userID.
func (s *Service) IsTokenOwnedBy(token string, userID int64) bool {
	if s == nil {
		return false
	}

	claims, err := s.jwtManager.Verify(token, "")
	return err == nil && claims.UserID == userID
}

// IsTokenFromDevice reports whether a verified token carries the given
// device ID.
func (s *Service) IsTokenFromDevice(token string, device DeviceInfo) bool {
	if s == nil || device.DeviceID == "" {
		return false
	}

	claims, err := s.jwtManager.Verify(token, "")
	return err == nil && claims.DeviceID == device.DeviceID
}

// ParseToken decodes a token without verifying its signature. The
// result is diagnostic only and must never drive authorization.
func (s *Service) ParseToken(token string) (*TokenInfo, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	claims, err := s.jwtManager.ParseUnsafe(token)
	if err != nil {
		return nil, err
	}

	info := &TokenInfo{
		UserID:    claims.UserID,
		JTI:       claims.JTI(),
		TokenType: string(claims.TokenType),
		DeviceID:  claims.DeviceID,
		Custom:    claims.Custom,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Expired = !time.Now().Before(info.ExpiresAt)
	}
	return info, nil
}

// ActiveSessions lists the user's usable refresh-token records, newest
// first.
func (s *Service) ActiveSessions(ctx context.Context, userID int64) ([]SessionInfo, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}

	recs, err := s.tokens.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sessions := make([]SessionInfo, 0, len(recs))
	for _, rec := range recs {
		if !rec.Usable(now) {
			continue
		}
		sessions = append(sessions, SessionInfo{
			JTI:        rec.JTI,
			DeviceID:   rec.DeviceID,
			IP:         rec.IP,
			UserAgent:  rec.UserAgent,
			IssuedAt:   rec.IssuedAt,
			ExpiresAt:  rec.ExpiresAt,
			LastUsedAt: rec.LastUsedAt,
		})
	}
	return sessions, nil
}

// UserStats returns per-user refresh-token counts.
func (s *Service) UserStats(ctx context.Context, userID int64) (*UserTokenStats, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}
	return s.tokens.Stats(ctx, userID)
}

// SystemStats returns store-wide refresh-token counts.
func (s *Service) SystemStats(ctx context.Context) (*SystemTokenStats, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}
	return s.tokens.SystemStats(ctx)
}

// SecurityReport snapshots the service's effective security posture.
func (s *Service) SecurityReport() SecurityReport {
	if s == nil {
		return SecurityReport{}
	}
	return SecurityReport{
		SigningAlgorithm:       s.config.JWT.SigningMethod,
		Issuer:                 s.config.JWT.Issuer,
		AccessTTL:              s.config.JWT.AccessTTL,
		RefreshTTL:             s.config.JWT.RefreshTTL,
		DeviceAffinity:         s.config.Device.AffinityMode,
		RevocationCacheEnabled: s.config.Revocation.CacheEnabled,
		AuditEnabled:           s.config.Audit.Enabled,
		AuditDropped:           s.AuditDropped(),
		MetricsEnabled:         s.config.Metrics.Enabled,
		SweeperRunning:         s.sweepRunning.Load(),
	}
}
