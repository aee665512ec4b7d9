package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/polica/internal/model"
)

// seedShelf creates a cabinet with one shelf holding n empty locations.
func seedShelf(t *testing.T, database *sql.DB, cabinet, code string, n int) (*model.Shelf, []model.Location) {
	t.Helper()
	ctx := context.Background()

	c, err := CreateCabinet(ctx, database, cabinet, "")
	if err != nil {
		t.Fatalf("CreateCabinet: %v", err)
	}
	s, err := CreateShelf(ctx, database, c.ID, code)
	if err != nil {
		t.Fatalf("CreateShelf: %v", err)
	}
	if n == 0 {
		return s, nil
	}
	locations, err := CreateLocations(ctx, database, s.ID, n)
	if err != nil {
		t.Fatalf("CreateLocations: %v", err)
	}
	return s, locations
}

func seedEdition(t *testing.T, database *sql.DB) *model.Edition {
	t.Helper()
	e, err := CreateEdition(context.Background(), database, "The Name of the Rose", "978-0156001311", 1980)
	if err != nil {
		t.Fatalf("CreateEdition: %v", err)
	}
	return e
}

func seedCopy(t *testing.T, database *sql.DB, editionID int64, locationID *int64) *model.Copybook {
	t.Helper()
	cb, err := CreateCopybook(context.Background(), database, editionID, model.StatusAvailable, locationID)
	if err != nil {
		t.Fatalf("CreateCopybook: %v", err)
	}
	return cb
}

func seedPeople(t *testing.T, database *sql.DB) (*model.Reader, *model.Employee) {
	t.Helper()
	ctx := context.Background()
	r, err := CreateReader(ctx, database, "Ana Novak")
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	e, err := CreateEmployee(ctx, database, "Marko Kos")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	return r, e
}

func ptr[T any](v T) *T { return &v }
