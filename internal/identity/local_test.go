package identity

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var identityCols = []string{"id", "email", "password_hash", "roles", "disabled"}

func testCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec("test-secret", "vendordesk")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return codec
}

func TestLocalSignIn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`from identities where email=$1`)).
		WithArgs("owner@acme.example").
		WillReturnRows(sqlmock.NewRows(identityCols).
			AddRow("ident-1", "owner@acme.example", hash, "vendor,admin", false))

	provider := NewLocalProvider(db, testCodec(t))
	id, token, err := provider.SignInWithPassword(context.Background(), " Owner@Acme.Example ", "s3cret-pass")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if id.ID != "ident-1" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if !id.HasRole("admin") || !id.HasRole("vendor") {
		t.Fatalf("roles not parsed: %v", id.Roles)
	}

	// The minted access token resolves back to the same identity.
	got, err := provider.GetUser(context.Background(), token)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != id.ID || got.Email != id.Email {
		t.Fatalf("token identity mismatch: %+v vs %+v", got, id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLocalSignInWrongPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	hash, err := HashPassword("correct-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`from identities where email=$1`)).
		WithArgs("owner@acme.example").
		WillReturnRows(sqlmock.NewRows(identityCols).
			AddRow("ident-1", "owner@acme.example", hash, "", false))

	_, _, err = NewLocalProvider(db, testCodec(t)).
		SignInWithPassword(context.Background(), "owner@acme.example", "wrong-pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLocalSignInUnknownEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`from identities where email=$1`)).
		WithArgs("nobody@acme.example").
		WillReturnRows(sqlmock.NewRows(identityCols))

	_, _, err = NewLocalProvider(db, testCodec(t)).
		SignInWithPassword(context.Background(), "nobody@acme.example", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLocalSignInDisabledAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`from identities where email=$1`)).
		WithArgs("owner@acme.example").
		WillReturnRows(sqlmock.NewRows(identityCols).
			AddRow("ident-1", "owner@acme.example", hash, "", true))

	_, _, err = NewLocalProvider(db, testCodec(t)).
		SignInWithPassword(context.Background(), "owner@acme.example", "s3cret-pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLocalSignInMissingFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	// No query expectations: empty credentials never reach the database.
	provider := NewLocalProvider(db, testCodec(t))
	for _, pair := range [][2]string{{"", "pass"}, {"owner@acme.example", ""}, {"", ""}} {
		_, _, err := provider.SignInWithPassword(context.Background(), pair[0], pair[1])
		if !errors.Is(err, ErrMissingField) {
			t.Fatalf("(%q, %q): expected ErrMissingField, got %v", pair[0], pair[1], err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
