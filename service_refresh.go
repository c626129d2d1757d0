package authkit

import (
	"context"
	"fmt"
	"time"

	"github.com/hexkit/authkit/internal"
	"github.com/hexkit/authkit/jwt"
	"github.com/hexkit/authkit/store"
)

// Refresh rotates a refresh token: the presented token is retired and a
// new access/refresh pair is issued in its place. Exactly one of any
// set of concurrent calls with the same token succeeds; the rest fail
// with ErrReplayDetected.
//
// Presenting a token that was already rotated or revoked is treated as
// credential theft: the token's entire family is revoked before
// ErrReplayDetected is returned, ending the session for attacker and
// victim alike.
func (s *Service) Refresh(ctx context.Context, refreshToken string, device DeviceInfo) (*RefreshResult, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}

	claims, err := s.jwtManager.Verify(refreshToken, jwt.TypeRefresh)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, 0, "", device, err, nil)
		return nil, err
	}

	rec, err := s.tokens.FindByTokenHash(ctx, internal.HashToken(refreshToken))
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		return nil, err
	}
	if rec == nil {
		// Verified signature but no record: the record was cleaned up or
		// the token was never persisted here.
		s.metricInc(MetricRefreshFailure)
		werr := fmt.Errorf("%w: unknown refresh token", ErrTokenInvalid)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UserID, claims.JTI(), device, werr, nil)
		return nil, werr
	}

	if rec.Status == store.StatusRevoked {
		return nil, s.handleReplay(ctx, rec, device)
	}

	if rec.Expired(time.Now()) {
		s.metricInc(MetricRefreshFailure)
		werr := fmt.Errorf("%w: refresh token record expired", ErrTokenExpired)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, rec.UserID, rec.JTI, device, werr, nil)
		return nil, werr
	}

	if err := s.checkDeviceAffinity(ctx, rec, device); err != nil {
		s.metricInc(MetricRefreshFailure)
		return nil, err
	}

	// The conditional revoke is the rotation's linearization point:
	// whoever flips active->revoked owns the rotation, everyone else
	// lost the race to a concurrent refresh and lands on the replay
	// path.
	won, err := s.tokens.Revoke(ctx, rec.JTI, store.ReasonRotated)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		return nil, err
	}
	if !won {
		return nil, s.handleReplay(ctx, rec, device)
	}

	// Bookkeeping only; the rotation already happened.
	_ = s.tokens.TouchLastUsed(ctx, rec.JTI, time.Now())

	pair, newJTI, err := s.mintPair(ctx, rec.UserID, device, rec.JTI, rec.RootJTI)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, rec.UserID, rec.JTI, device, err, nil)
		return nil, err
	}

	// A concurrent replay of the same token runs RevokeFamily the moment
	// it observes our conditional revoke, which can happen before the
	// child record above exists. RevokeFamily stamps its reason over the
	// parent's rotation reason, so a re-read of the parent tells whether
	// the child was minted into a condemned family; if so the child must
	// not survive.
	parent, perr := s.tokens.FindByJTI(ctx, rec.JTI)
	if perr != nil || parent == nil || parent.Reason != store.ReasonRotated {
		reason := store.ReasonReplay
		if parent != nil && parent.Reason != "" {
			reason = parent.Reason
		}
		_, _ = s.tokens.Revoke(ctx, newJTI, reason)
		s.metricInc(MetricRefreshFailure)
		if perr != nil {
			return nil, perr
		}
		werr := fmt.Errorf("%w: token family revoked during rotation", ErrReplayDetected)
		s.emitAudit(ctx, auditEventReplayDetected, false, rec.UserID, rec.JTI, device, werr, func() map[string]string {
			return map[string]string{
				"root_jti":  rec.RootJTI,
				"child_jti": newJTI,
			}
		})
		return nil, werr
	}

	s.metricInc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefreshSuccess, true, rec.UserID, newJTI, device, nil, func() map[string]string {
		return map[string]string{
			"rotated_from": rec.JTI,
			"root_jti":     rec.RootJTI,
		}
	})

	return &RefreshResult{
		UserID:     rec.UserID,
		TokenPair:  *pair,
		RefreshJTI: newJTI,
	}, nil
}

// handleReplay revokes the whole token family and reports the replay.
func (s *Service) handleReplay(ctx context.Context, rec *store.Record, device DeviceInfo) error {
	s.metricInc(MetricReplayDetected)

	revoked, err := s.tokens.RevokeFamily(ctx, rec.RootJTI, store.ReasonReplay)
	if err != nil {
		s.emitAudit(ctx, auditEventReplayDetected, false, rec.UserID, rec.JTI, device, err, nil)
		return fmt.Errorf("%w: family revocation failed: %v", ErrReplayDetected, err)
	}
	if len(revoked) > 0 {
		s.metricInc(MetricFamilyRevoked)
		s.emitAudit(ctx, auditEventFamilyRevoked, true, rec.UserID, rec.RootJTI, device, nil, func() map[string]string {
			return map[string]string{
				"revoked_count": fmt.Sprintf("%d", len(revoked)),
			}
		})
	}

	s.emitAudit(ctx, auditEventReplayDetected, false, rec.UserID, rec.JTI, device, ErrReplayDetected, func() map[string]string {
		return map[string]string{
			"root_jti": rec.RootJTI,
			"reason":   rec.Reason,
		}
	})

	return fmt.Errorf("%w: token %s already retired", ErrReplayDetected, rec.JTI)
}

func (s *Service) checkDeviceAffinity(ctx context.Context, rec *store.Record, device DeviceInfo) error {
	if s.config.Device.AffinityMode == AffinityOff {
		return nil
	}
	if rec.DeviceID == "" || device.DeviceID == "" || rec.DeviceID == device.DeviceID {
		return nil
	}

	s.metricInc(MetricDeviceMismatch)
	s.emitAudit(ctx, auditEventDeviceMismatch, false, rec.UserID, rec.JTI, device, ErrDeviceMismatch, func() map[string]string {
		return map[string]string{
			"expected_device": rec.DeviceID,
		}
	})

	if s.config.Device.AffinityMode == AffinityEnforce {
		return fmt.Errorf("%w: token bound to another device", ErrDeviceMismatch)
	}
	return nil
}
