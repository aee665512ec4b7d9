package store

import (
	"context"
	"testing"

	"github.com/erazemk/polica/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, ok, err := GetSetting(ctx, database, jwtSecretKey); err != nil || ok {
		t.Fatalf("expected unset secret, got ok=%v err=%v", ok, err)
	}

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes hex encoded
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if string(secret1) != string(secret2) {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}
