package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erazemk/polica/internal/model"
	"github.com/erazemk/polica/internal/placement"
)

// CopyStore is what CreateCopies needs from storage. The server passes the
// database, the CLI passes the API client.
type CopyStore interface {
	FreeLocationsByShelf(ctx context.Context, shelfIDs []int64) (map[int64][]int64, error)
	CreateCopybook(ctx context.Context, editionID int64, status model.Status, locationID *int64) (*model.Copybook, error)
}

// CopiesRequest asks for Quantity new copies of an edition spread over
// ShelfIDs in the given order.
type CopiesRequest struct {
	EditionID int64        `json:"edition_id"`
	Status    model.Status `json:"status"`
	Quantity  int          `json:"quantity"`
	ShelfIDs  []int64      `json:"shelf_ids"`
}

// CopyResult pairs a planned assignment with the copy created for it.
type CopyResult struct {
	Assignment placement.Assignment `json:"assignment"`
	Copybook   *model.Copybook      `json:"copybook,omitempty"`
}

// CreateCopies plans the placement of req.Quantity copies from one snapshot
// of free slots, then creates each copy independently. A slot taken since
// the snapshot fails only that copy with ErrConflict. The returned error is
// set only when nothing was attempted.
func CreateCopies(ctx context.Context, s CopyStore, req CopiesRequest, concurrency int) (Report[CopyResult], error) {
	if req.EditionID <= 0 {
		return Report[CopyResult]{}, fmt.Errorf("%w: edition required", model.ErrValidation)
	}
	if req.Quantity <= 0 || req.Quantity > model.MaxCopiesPerBatch {
		return Report[CopyResult]{}, fmt.Errorf("%w: quantity must be between 1 and %d", model.ErrValidation, model.MaxCopiesPerBatch)
	}
	if req.Status == "" {
		req.Status = model.StatusAvailable
	}
	if !req.Status.Known() || req.Status == model.StatusIssued {
		return Report[CopyResult]{}, fmt.Errorf("%w: cannot create copies with status %s", model.ErrValidation, req.Status)
	}
	if req.Status.ReleasesLocation() && len(req.ShelfIDs) > 0 {
		return Report[CopyResult]{}, fmt.Errorf("%w: %s copies cannot be shelved", model.ErrValidation, req.Status)
	}

	var free map[int64][]int64
	if len(req.ShelfIDs) > 0 {
		var err error
		free, err = s.FreeLocationsByShelf(ctx, req.ShelfIDs)
		if err != nil {
			return Report[CopyResult]{}, fmt.Errorf("reading free locations: %w", err)
		}
	}

	plan, err := placement.Plan(req.Quantity, req.ShelfIDs, free)
	if err != nil {
		return Report[CopyResult]{}, err
	}

	report := Run(ctx, concurrency, plan, func(ctx context.Context, a placement.Assignment) (CopyResult, error) {
		cb, err := s.CreateCopybook(ctx, req.EditionID, req.Status, a.LocationID)
		return CopyResult{Assignment: a, Copybook: cb}, err
	})

	shelves, noShelf := placement.Summary(plan)
	slog.Info("batch copy creation finished",
		"batch", report.ID,
		"edition", req.EditionID,
		"created", report.Created,
		"failed", report.Failed,
		"shelves", len(shelves),
		"no_shelf", noShelf,
	)
	for _, it := range report.Failures() {
		slog.Warn("batch item failed", "batch", report.ID, "index", it.Index, "error", it.Error)
	}

	return report, nil
}
