package identity

import (
	"errors"
	"testing"
	"time"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", "vendordesk")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	id := Identity{ID: "ident-1", Email: "owner@acme.example", Roles: []string{"Admin", "admin", "vendor"}}
	token, err := codec.Mint(id, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != "ident-1" || got.Email != "owner@acme.example" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if len(got.Roles) != 2 {
		t.Fatalf("expected deduped roles, got %v", got.Roles)
	}
	if !got.HasRole("admin") || !got.HasRole("ADMIN") {
		t.Fatal("expected case-insensitive role match")
	}
	if got.HasRole("auditor") {
		t.Fatal("unexpected role")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := issued

	codec, err := NewTokenCodec("test-secret", "vendordesk",
		WithCodecClock(func() time.Time { return current }))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	token, err := codec.Mint(Identity{ID: "ident-1"}, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("fresh token should verify: %v", err)
	}

	current = issued.Add(2 * time.Minute)
	if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	minter, err := NewTokenCodec("secret-a", "vendordesk")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	verifier, err := NewTokenCodec("secret-b", "vendordesk")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	token, err := minter.Mint(Identity{ID: "ident-1"}, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	minter, err := NewTokenCodec("test-secret", "someone-else")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	verifier, err := NewTokenCodec("test-secret", "vendordesk")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	token, err := minter.Mint(Identity{ID: "ident-1"}, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", "vendordesk")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	for _, token := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestMintValidation(t *testing.T) {
	codec, err := NewTokenCodec("test-secret", "vendordesk")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	if _, err := codec.Mint(Identity{}, time.Hour); err == nil {
		t.Fatal("expected error for identity without id")
	}
	if _, err := codec.Mint(Identity{ID: "ident-1"}, 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestNewTokenCodecRequiresSecret(t *testing.T) {
	if _, err := NewTokenCodec("", "vendordesk"); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewTokenCodec("   ", "vendordesk"); err == nil {
		t.Fatal("expected error for blank secret")
	}
}
