package authkit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hexkit/authkit/internal"
	"github.com/hexkit/authkit/jwt"
	"github.com/hexkit/authkit/revocation"
	"github.com/hexkit/authkit/store"
)

// Service is the authentication core: it issues token pairs, rotates
// refresh tokens with replay detection, and validates access tokens
// against the revocation list. Construct one with [New] and treat it as
// immutable; all methods are safe for concurrent use.
type Service struct {
	config     Config
	jwtManager *jwt.Manager
	tokens     store.Store
	revoked    revocation.List
	verifier   CredentialVerifier
	audit      *auditDispatcher
	metrics    *Metrics

	sweepMu      sync.Mutex
	sweepDone    chan struct{}
	sweepWG      sync.WaitGroup
	sweepRunning atomic.Bool

	closed atomic.Bool
}

// Close stops the background sweeper, drains the audit dispatcher, and
// marks the service unusable. Safe to call more than once.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.closed.Swap(true) {
		return
	}
	s.StopSweeper()
	if s.audit != nil {
		s.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot copies the service's counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

// Login verifies the identifier/secret pair through the configured
// CredentialVerifier and, on success, mints an access/refresh token
// pair. The refresh token's record is the root of a new token family.
func (s *Service) Login(ctx context.Context, identifier, secret string, device DeviceInfo) (*LoginResult, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}

	userID, err := s.verifier.Verify(ctx, identifier, secret)
	if err != nil {
		s.metricInc(MetricLoginFailure)
		wrapped := fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		s.emitAudit(ctx, auditEventLoginFailure, false, 0, "", device, wrapped, nil)
		return nil, wrapped
	}

	pair, refreshJTI, err := s.mintPair(ctx, userID, device, "", "")
	if err != nil {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, userID, "", device, err, nil)
		return nil, err
	}

	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLoginSuccess, true, userID, refreshJTI, device, nil, nil)

	return &LoginResult{
		UserID:     userID,
		TokenPair:  *pair,
		RefreshJTI: refreshJTI,
	}, nil
}

// Logout retires the refresh token's record. The paired access token is
// not touched; call [Service.RevokeToken] on it for immediate rejection.
// Logging out an unknown or already-retired token returns ErrTokenInvalid.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if s == nil {
		return ErrServiceNotReady
	}
	if s.closed.Load() {
		return ErrServiceClosed
	}

	// Signature failures still end the session lookup here, so an
	// expired-but-genuine token can log out.
	claims, err := s.jwtManager.ParseUnsafe(refreshToken)
	if err != nil {
		return err
	}

	rec, err := s.tokens.FindByTokenHash(ctx, internal.HashToken(refreshToken))
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: unknown refresh token", ErrTokenInvalid)
	}

	ok, err := s.tokens.Revoke(ctx, rec.JTI, store.ReasonLogout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: refresh token already retired", ErrTokenInvalid)
	}

	s.metricInc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, true, claims.UserID, rec.JTI, DeviceInfo{DeviceID: rec.DeviceID}, nil, nil)
	return nil
}

// LogoutAll retires every active refresh record belonging to the
// token's user, across all devices. Returns how many records were
// retired.
func (s *Service) LogoutAll(ctx context.Context, refreshToken string) (int, error) {
	if s == nil {
		return 0, ErrServiceNotReady
	}
	if s.closed.Load() {
		return 0, ErrServiceClosed
	}

	claims, err := s.jwtManager.ParseUnsafe(refreshToken)
	if err != nil {
		return 0, err
	}

	rec, err := s.tokens.FindByTokenHash(ctx, internal.HashToken(refreshToken))
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, fmt.Errorf("%w: unknown refresh token", ErrTokenInvalid)
	}

	recs, err := s.tokens.RevokeAllForUser(ctx, rec.UserID, "", store.ReasonLogout)
	if err != nil {
		return 0, err
	}

	s.metricInc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, true, claims.UserID, rec.JTI, DeviceInfo{DeviceID: rec.DeviceID}, nil, func() map[string]string {
		return map[string]string{"all_devices": "true", "revoked": fmt.Sprint(len(recs))}
	})
	return len(recs), nil
}

// mintPair signs a fresh access/refresh pair and persists the refresh
// record. parentJTI and rootJTI are empty for login-minted pairs; the
// new record then roots its own family.
func (s *Service) mintPair(
	ctx context.Context,
	userID int64,
	device DeviceInfo,
	parentJTI string,
	rootJTI string,
) (*TokenPair, string, error) {
	now := time.Now()

	accessToken, _, err := s.jwtManager.Generate(
		userID, jwt.TypeAccess, device.DeviceID, nil, s.config.JWT.AccessTTL)
	if err != nil {
		return nil, "", err
	}

	refreshToken, refreshJTI, err := s.jwtManager.Generate(
		userID, jwt.TypeRefresh, device.DeviceID, nil, s.config.JWT.RefreshTTL)
	if err != nil {
		return nil, "", err
	}

	if rootJTI == "" {
		rootJTI = refreshJTI
	}

	rec := &store.Record{
		JTI:       refreshJTI,
		UserID:    userID,
		TokenHash: internal.HashToken(refreshToken),
		DeviceID:  device.DeviceID,
		ParentJTI: parentJTI,
		RootJTI:   rootJTI,
		Status:    store.StatusActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.JWT.RefreshTTL),
		IP:        device.IP,
		UserAgent: device.UserAgent,
	}
	if rec.IP == "" {
		rec.IP = clientIPFromContext(ctx)
	}
	if rec.UserAgent == "" {
		rec.UserAgent = userAgentFromContext(ctx)
	}

	if err := s.tokens.Create(ctx, rec); err != nil {
		return nil, "", fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(s.config.JWT.AccessTTL),
		RefreshExpiresAt: now.Add(s.config.JWT.RefreshTTL),
	}, refreshJTI, nil
}
