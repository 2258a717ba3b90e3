package session

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var sessionCols = []string{
	"id", "identity_id", "identity_email", "vendor_id", "token_hash", "refresh_hash",
	"issued_at", "expires_at", "refresh_expires_at", "revoked_at",
}

func TestPGStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	sess := &Session{
		ID:            "sess-1",
		IdentityID:    "ident-1",
		IdentityEmail: "owner@acme.example",
		VendorID:      "vendor-1",
		TokenHash:     "th",
		RefreshHash:   "rh",
		IssuedAt:      now,
		ExpiresAt:     now.Add(time.Hour),
		RefreshExpiry: now.Add(24 * time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta(`insert into sessions`)).
		WithArgs(sess.ID, sess.IdentityID, sess.IdentityEmail, sess.VendorID,
			sess.TokenHash, sess.RefreshHash, sess.IssuedAt, sess.ExpiresAt, sess.RefreshExpiry).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPGStore(db).Create(context.Background(), sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGStoreFindByTokenHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`from sessions where token_hash=$1`)).
		WithArgs("th").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("sess-1", "ident-1", "owner@acme.example", "vendor-1", "th", "rh",
				now, now.Add(time.Hour), now.Add(24*time.Hour), nil))

	sess, err := NewPGStore(db).FindByTokenHash(context.Background(), "th")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if sess.ID != "sess-1" || sess.VendorID != "vendor-1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.Revoked() {
		t.Fatal("expected session without revoked_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGStoreFindRevoked(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	revoked := now.Add(-time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`from sessions where id=$1`)).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("sess-1", "ident-1", "owner@acme.example", "vendor-1", "th", "rh",
				now, now.Add(time.Hour), now.Add(24*time.Hour), revoked))

	sess, err := NewPGStore(db).Find(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !sess.Revoked() {
		t.Fatal("expected revoked session")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGStoreFindMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`from sessions where token_hash=$1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(sessionCols))

	_, err = NewPGStore(db).FindByTokenHash(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGStoreRevoke(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`update sessions set revoked_at=$2 where id=$1 and revoked_at is null`)).
		WithArgs("sess-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Second revoke matches no rows; still not an error.
	mock.ExpectExec(regexp.QuoteMeta(`update sessions set revoked_at=$2 where id=$1 and revoked_at is null`)).
		WithArgs("sess-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.Revoke(context.Background(), "sess-1", at); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := store.Revoke(context.Background(), "sess-1", at); err != nil {
		t.Fatalf("repeat revoke: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
