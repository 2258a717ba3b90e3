package session

import (
	"context"
	"database/sql"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const sessionColumns = `id, identity_id, identity_email, vendor_id, token_hash, refresh_hash,
	issued_at, expires_at, refresh_expires_at, revoked_at`

func (s *PGStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, identity_id, identity_email, vendor_id, token_hash, refresh_hash,
		 issued_at, expires_at, refresh_expires_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sess.ID, sess.IdentityID, sess.IdentityEmail, sess.VendorID, sess.TokenHash,
		sess.RefreshHash, sess.IssuedAt, sess.ExpiresAt, sess.RefreshExpiry,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where id=$1`, id)
	return scanSession(row)
}

func (s *PGStore) FindByTokenHash(ctx context.Context, hash string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where token_hash=$1`, hash)
	return scanSession(row)
}

func (s *PGStore) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set revoked_at=$2 where id=$1 and revoked_at is null`, id, at)
	return err
}

func (s *PGStore) RevokeByTokenHash(ctx context.Context, hash string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set revoked_at=$2 where token_hash=$1 and revoked_at is null`, hash, at)
	return err
}

func scanSession(row *sql.Row) (*Session, error) {
	var (
		sess    Session
		revoked sql.NullTime
	)
	if err := row.Scan(&sess.ID, &sess.IdentityID, &sess.IdentityEmail, &sess.VendorID,
		&sess.TokenHash, &sess.RefreshHash, &sess.IssuedAt, &sess.ExpiresAt,
		&sess.RefreshExpiry, &revoked); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if revoked.Valid {
		t := revoked.Time
		sess.RevokedAt = &t
	}
	return &sess, nil
}
