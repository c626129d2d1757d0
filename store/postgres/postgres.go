// Package postgres implements the refresh-token store on PostgreSQL.
// Conditional revocation is a single UPDATE guarded on status, so the
// exactly-once rotation guarantee holds across processes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hexkit/authkit/store"
)

// DBTX is the database handle the store needs. Both *sqlx.DB and
// *sqlx.Tx satisfy it.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Store is the PostgreSQL store.Store implementation.
type Store struct {
	db DBTX
}

// New wraps an existing database handle.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Connect opens a pgx-backed connection pool and verifies it.
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
    jti          TEXT PRIMARY KEY,
    user_id      BIGINT NOT NULL,
    token_hash   TEXT NOT NULL UNIQUE,
    device_id    TEXT NOT NULL DEFAULT '',
    parent_jti   TEXT NOT NULL DEFAULT '',
    root_jti     TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'active',
    reason       TEXT NOT NULL DEFAULT '',
    issued_at    TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL,
    last_used_at TIMESTAMPTZ,
    revoked_at   TIMESTAMPTZ,
    ip           TEXT NOT NULL DEFAULT '',
    user_agent   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_device ON refresh_tokens (user_id, device_id);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_root ON refresh_tokens (root_jti);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON refresh_tokens (expires_at);
`

// Migrate creates the refresh_tokens table and its indexes.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate refresh_tokens: %w", err)
	}
	return nil
}

type row struct {
	JTI        string       `db:"jti"`
	UserID     int64        `db:"user_id"`
	TokenHash  string       `db:"token_hash"`
	DeviceID   string       `db:"device_id"`
	ParentJTI  string       `db:"parent_jti"`
	RootJTI    string       `db:"root_jti"`
	Status     string       `db:"status"`
	Reason     string       `db:"reason"`
	IssuedAt   time.Time    `db:"issued_at"`
	ExpiresAt  time.Time    `db:"expires_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
	IP         string       `db:"ip"`
	UserAgent  string       `db:"user_agent"`
}

func (r *row) toRecord() *store.Record {
	rec := &store.Record{
		JTI:       r.JTI,
		UserID:    r.UserID,
		TokenHash: r.TokenHash,
		DeviceID:  r.DeviceID,
		ParentJTI: r.ParentJTI,
		RootJTI:   r.RootJTI,
		Status:    store.Status(r.Status),
		Reason:    r.Reason,
		IssuedAt:  r.IssuedAt,
		ExpiresAt: r.ExpiresAt,
		IP:        r.IP,
		UserAgent: r.UserAgent,
	}
	if r.LastUsedAt.Valid {
		rec.LastUsedAt = r.LastUsedAt.Time
	}
	if r.RevokedAt.Valid {
		rec.RevokedAt = r.RevokedAt.Time
	}
	return rec
}

const selectColumns = `
	jti, user_id, token_hash, device_id, parent_jti, root_jti,
	status, reason, issued_at, expires_at, last_used_at, revoked_at,
	ip, user_agent`

func (s *Store) Create(ctx context.Context, rec *store.Record) error {
	query := `
		INSERT INTO refresh_tokens (
			jti, user_id, token_hash, device_id, parent_jti, root_jti,
			status, reason, issued_at, expires_at, ip, user_agent
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := s.db.ExecContext(ctx, query,
		rec.JTI,
		rec.UserID,
		rec.TokenHash,
		rec.DeviceID,
		rec.ParentJTI,
		rec.RootJTI,
		string(rec.Status),
		rec.Reason,
		rec.IssuedAt,
		rec.ExpiresAt,
		rec.IP,
		rec.UserAgent,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrDuplicateJTI
		}
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func (s *Store) FindByJTI(ctx context.Context, jti string) (*store.Record, error) {
	return s.findOne(ctx, `SELECT`+selectColumns+` FROM refresh_tokens WHERE jti = $1`, jti)
}

func (s *Store) FindByTokenHash(ctx context.Context, hash string) (*store.Record, error) {
	return s.findOne(ctx, `SELECT`+selectColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash)
}

func (s *Store) findOne(ctx context.Context, query string, arg interface{}) (*store.Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return r.toRecord(), nil
}

func (s *Store) FindByUserID(ctx context.Context, userID int64) ([]*store.Record, error) {
	query := `SELECT` + selectColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY issued_at DESC`
	return s.findMany(ctx, query, userID)
}

func (s *Store) FindByUserAndDevice(ctx context.Context, userID int64, deviceID string) ([]*store.Record, error) {
	query := `SELECT` + selectColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND device_id = $2
		ORDER BY issued_at DESC`
	return s.findMany(ctx, query, userID, deviceID)
}

func (s *Store) findMany(ctx context.Context, query string, args ...interface{}) ([]*store.Record, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	out := make([]*store.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRecord())
	}
	return out, nil
}

func (s *Store) TouchLastUsed(ctx context.Context, jti string, at time.Time) error {
	query := `UPDATE refresh_tokens SET last_used_at = $2 WHERE jti = $1`
	if _, err := s.db.ExecContext(ctx, query, jti, at); err != nil {
		return fmt.Errorf("touch refresh token: %w", err)
	}
	return nil
}

func (s *Store) Revoke(ctx context.Context, jti, reason string) (bool, error) {
	// Guarding on status makes this a compare-and-set: under concurrent
	// callers exactly one UPDATE reports an affected row.
	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', reason = $2, revoked_at = NOW()
		WHERE jti = $1 AND status = 'active'`

	result, err := s.db.ExecContext(ctx, query, jti, reason)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return rows == 1, nil
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID int64, excludeJTI, reason string) ([]*store.Record, error) {
	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', reason = $3, revoked_at = NOW()
		WHERE user_id = $1 AND status = 'active' AND jti <> $2
		RETURNING` + selectColumns
	return s.revokeMany(ctx, query, userID, excludeJTI, reason)
}

func (s *Store) RevokeAllForDevice(ctx context.Context, userID int64, deviceID, reason string) ([]*store.Record, error) {
	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', reason = $3, revoked_at = NOW()
		WHERE user_id = $1 AND device_id = $2 AND status = 'active'
		RETURNING` + selectColumns
	return s.revokeMany(ctx, query, userID, deviceID, reason)
}

func (s *Store) Family(ctx context.Context, rootJTI string) ([]*store.Record, error) {
	query := `SELECT` + selectColumns + `
		FROM refresh_tokens
		WHERE root_jti = $1
		ORDER BY issued_at ASC`
	return s.findMany(ctx, query, rootJTI)
}

func (s *Store) RevokeFamily(ctx context.Context, rootJTI, reason string) ([]*store.Record, error) {
	// The reason stamp on already-revoked members runs first. A rotation
	// that is concurrently inserting a child either re-reads its stamped
	// parent and retires the child itself, or the child exists by the
	// time the second UPDATE runs and is swept with the rest.
	stamp := `
		UPDATE refresh_tokens
		SET reason = $2
		WHERE root_jti = $1 AND status = 'revoked' AND reason <> $2`
	if _, err := s.db.ExecContext(ctx, stamp, rootJTI, reason); err != nil {
		return nil, fmt.Errorf("stamp token family: %w", err)
	}

	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', reason = $2, revoked_at = NOW()
		WHERE root_jti = $1 AND status = 'active'
		RETURNING` + selectColumns
	return s.revokeMany(ctx, query, rootJTI, reason)
}

func (s *Store) revokeMany(ctx context.Context, query string, args ...interface{}) ([]*store.Record, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	out := make([]*store.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRecord())
	}
	return out, nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`
	result, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return int(rows), nil
}

func (s *Store) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM refresh_tokens WHERE status = 'revoked' AND revoked_at < $1`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete revoked refresh tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete revoked refresh tokens: %w", err)
	}
	return int(rows), nil
}

func (s *Store) Stats(ctx context.Context, userID int64) (*store.UserStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active' AND expires_at >= NOW()) AS active,
			COUNT(*) FILTER (WHERE status = 'revoked') AS revoked,
			COUNT(*) FILTER (WHERE status = 'active' AND expires_at < NOW()) AS expired,
			COUNT(DISTINCT device_id) FILTER (
				WHERE status = 'active' AND expires_at >= NOW() AND device_id <> ''
			) AS devices
		FROM refresh_tokens
		WHERE user_id = $1`

	var stats store.UserStats
	err := s.db.GetContext(ctx, &stats, query, userID)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &stats, nil
}

func (s *Store) SystemStats(ctx context.Context) (*store.SystemStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active' AND expires_at >= NOW()) AS active,
			COUNT(*) FILTER (WHERE status = 'revoked') AS revoked,
			COUNT(*) FILTER (WHERE status = 'active' AND expires_at < NOW()) AS expired,
			COUNT(DISTINCT user_id) AS users
		FROM refresh_tokens`

	var stats store.SystemStats
	err := s.db.GetContext(ctx, &stats, query)
	if err != nil {
		return nil, fmt.Errorf("system stats: %w", err)
	}
	return &stats, nil
}
