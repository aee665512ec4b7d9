// Package placement plans where newly created copies go.
//
// Plan distributes copies over the caller's shelves in strict round-robin
// order and consumes each shelf's free slots in the order given. A shelf
// that has run out of slots on its turn yields an unplaced assignment for
// that copy; the copy is never routed to another shelf. The plan works on a
// snapshot, so the claims made from it can still lose races.
package placement

import (
	"fmt"

	"github.com/erazemk/polica/internal/model"
)

// Assignment is the planned destination of one copy. ShelfID is nil when no
// shelf was chosen; LocationID is nil when the copy stays unplaced.
type Assignment struct {
	ShelfID    *int64 `json:"shelf_id"`
	LocationID *int64 `json:"location_id"`
}

// Placed reports whether the assignment targets a concrete slot.
func (a Assignment) Placed() bool {
	return a.LocationID != nil
}

// Plan returns quantity assignments. free maps a shelf ID to its free
// location IDs; shelves missing from the map have none. Neither shelfIDs
// nor free is modified.
func Plan(quantity int, shelfIDs []int64, free map[int64][]int64) ([]Assignment, error) {
	if quantity <= 0 || quantity > model.MaxCopiesPerBatch {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d, got %d", model.ErrValidation, model.MaxCopiesPerBatch, quantity)
	}

	plan := make([]Assignment, quantity)
	if len(shelfIDs) == 0 {
		return plan, nil
	}

	consumed := make(map[int64]int, len(shelfIDs))
	for i := range plan {
		shelf := shelfIDs[i%len(shelfIDs)]
		plan[i].ShelfID = &shelf

		slots := free[shelf]
		if n := consumed[shelf]; n < len(slots) {
			location := slots[n]
			plan[i].LocationID = &location
			consumed[shelf] = n + 1
		}
	}
	return plan, nil
}

// ShelfSummary counts one shelf's planned copies.
type ShelfSummary struct {
	ShelfID  int64 `json:"shelf_id"`
	Placed   int   `json:"placed"`
	Unplaced int   `json:"unplaced"`
}

// Summary tallies a plan per shelf, in the order shelves first appear.
// Copies with no shelf at all are counted in noShelf.
func Summary(plan []Assignment) (shelves []ShelfSummary, noShelf int) {
	index := make(map[int64]int)
	for _, a := range plan {
		if a.ShelfID == nil {
			noShelf++
			continue
		}
		i, ok := index[*a.ShelfID]
		if !ok {
			i = len(shelves)
			index[*a.ShelfID] = i
			shelves = append(shelves, ShelfSummary{ShelfID: *a.ShelfID})
		}
		if a.Placed() {
			shelves[i].Placed++
		} else {
			shelves[i].Unplaced++
		}
	}
	return shelves, noShelf
}
