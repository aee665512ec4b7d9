package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/polica/internal/db"
	"github.com/erazemk/polica/internal/model"
)

func TestCabinetCRUD(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	c, err := CreateCabinet(ctx, database, "North wing", "ground floor")
	if err != nil {
		t.Fatalf("CreateCabinet: %v", err)
	}
	if c.Name != "North wing" || c.Description != "ground floor" {
		t.Errorf("unexpected cabinet: %+v", c)
	}

	if err := UpdateCabinet(ctx, database, c.ID, "South wing", ""); err != nil {
		t.Fatalf("UpdateCabinet: %v", err)
	}
	got, err := GetCabinet(ctx, database, c.ID)
	if err != nil {
		t.Fatalf("GetCabinet: %v", err)
	}
	if got.Name != "South wing" {
		t.Errorf("expected renamed cabinet, got %q", got.Name)
	}

	if err := DeleteCabinet(ctx, database, c.ID); err != nil {
		t.Fatalf("DeleteCabinet: %v", err)
	}
	if _, err := GetCabinet(ctx, database, c.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateCabinetRequiresName(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreateCabinet(context.Background(), database, "", "")
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCreateShelfUnknownCabinet(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreateShelf(context.Background(), database, 999, "A1")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCabinetWithShelves(t *testing.T) {
	database := db.NewTestDB(t)
	s, _ := seedShelf(t, database, "Main", "A1", 0)

	err := DeleteCabinet(context.Background(), database, s.CabinetID)
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteShelfWithLocations(t *testing.T) {
	database := db.NewTestDB(t)
	s, _ := seedShelf(t, database, "Main", "A1", 1)

	err := DeleteShelf(context.Background(), database, s.ID)
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestListShelvesSortedByCabinetThenCode(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b, _ := CreateCabinet(ctx, database, "B", "")
	a, _ := CreateCabinet(ctx, database, "A", "")
	CreateShelf(ctx, database, b.ID, "1")
	CreateShelf(ctx, database, a.ID, "2")
	CreateShelf(ctx, database, a.ID, "1")

	shelves, err := ListShelves(ctx, database, 0)
	if err != nil {
		t.Fatalf("ListShelves: %v", err)
	}

	want := []string{"A/1", "A/2", "B/1"}
	if len(shelves) != len(want) {
		t.Fatalf("expected %d shelves, got %d", len(want), len(shelves))
	}
	for i, s := range shelves {
		if got := s.CabinetName + "/" + s.Code; got != want[i] {
			t.Errorf("shelf %d: expected %s, got %s", i, want[i], got)
		}
	}

	onlyA, err := ListShelves(ctx, database, a.ID)
	if err != nil {
		t.Fatalf("ListShelves(a): %v", err)
	}
	if len(onlyA) != 2 {
		t.Errorf("expected 2 shelves in cabinet A, got %d", len(onlyA))
	}
}

func TestShelfStatsReflectOccupancy(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, locations := seedShelf(t, database, "Main", "A1", 3)
	e := seedEdition(t, database)
	seedCopy(t, database, e.ID, &locations[0].ID)

	stats, err := ListShelfStats(ctx, database)
	if err != nil {
		t.Fatalf("ListShelfStats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 shelf, got %d", len(stats))
	}
	st := stats[0]
	if st.Total != 3 || st.Occupied != 1 || st.Free != 2 {
		t.Errorf("expected 3/1/2, got total=%d occupied=%d free=%d", st.Total, st.Occupied, st.Free)
	}
}
