package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/polica/internal/batch"
	"github.com/erazemk/polica/internal/model"
)

// CopybookQuery narrows ListCopybooks.
type CopybookQuery struct {
	Status    model.Status
	EditionID int64
	ShelfID   int64
}

func (q CopybookQuery) path() string {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.EditionID > 0 {
		v.Set("edition_id", strconv.FormatInt(q.EditionID, 10))
	}
	if q.ShelfID > 0 {
		v.Set("shelf_id", strconv.FormatInt(q.ShelfID, 10))
	}
	if len(v) == 0 {
		return "/api/copybooks"
	}
	return "/api/copybooks?" + v.Encode()
}

// ListCopybooks returns copies ordered by ID.
func (c *Client) ListCopybooks(ctx context.Context, q CopybookQuery) ([]model.Copybook, error) {
	var copies []model.Copybook
	return copies, c.get(ctx, collCopybooks, q.path(), &copies)
}

// GetCopybook returns one copy.
func (c *Client) GetCopybook(ctx context.Context, id int64) (*model.Copybook, error) {
	var cb model.Copybook
	if err := c.get(ctx, collCopybooks, fmt.Sprintf("/api/copybooks/%d", id), &cb); err != nil {
		return nil, err
	}
	return &cb, nil
}

// CreateCopybook creates one copy, on locationID when it is set.
func (c *Client) CreateCopybook(ctx context.Context, editionID int64, status model.Status, locationID *int64) (*model.Copybook, error) {
	var cb model.Copybook
	err := c.send(ctx, http.MethodPost, "/api/copybooks", map[string]any{
		"edition_id":  editionID,
		"status":      status,
		"location_id": locationID,
	}, &cb, collCopybooks, collLocations, collShelves)
	if err != nil {
		return nil, err
	}
	return &cb, nil
}

// FreeLocationsByShelf reads the free locations of each shelf straight from
// the server. Together with CreateCopybook it lets batch.CreateCopies run
// from the client side.
func (c *Client) FreeLocationsByShelf(ctx context.Context, shelfIDs []int64) (map[int64][]int64, error) {
	free := make(map[int64][]int64, len(shelfIDs))
	for _, shelfID := range shelfIDs {
		if _, seen := free[shelfID]; seen {
			continue
		}
		var locations []model.Location
		if err := c.fetch(ctx, LocationQuery{ShelfID: shelfID, FreeOnly: true}.path(), &locations); err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(locations))
		for _, l := range locations {
			ids = append(ids, l.ID)
		}
		free[shelfID] = ids
	}
	return free, nil
}

// CreateCopies asks the server to create a batch of copies in one request.
func (c *Client) CreateCopies(ctx context.Context, req batch.CopiesRequest) (batch.Report[batch.CopyResult], error) {
	var report batch.Report[batch.CopyResult]
	err := c.send(ctx, http.MethodPost, "/api/copybooks/batch", req, &report,
		collCopybooks, collLocations, collShelves)
	return report, err
}

// SetStatus applies a manual status change.
func (c *Client) SetStatus(ctx context.Context, id int64, status model.Status) (*model.Copybook, error) {
	var cb model.Copybook
	err := c.send(ctx, http.MethodPut, fmt.Sprintf("/api/copybooks/%d/status", id),
		map[string]model.Status{"status": status}, &cb, collCopybooks, collLocations, collShelves)
	if err != nil {
		return nil, err
	}
	return &cb, nil
}

// Relocate moves a copy to locationID, or off the shelves when it is nil.
func (c *Client) Relocate(ctx context.Context, id int64, locationID *int64) (*model.Copybook, error) {
	var cb model.Copybook
	err := c.send(ctx, http.MethodPut, fmt.Sprintf("/api/copybooks/%d/location", id),
		map[string]*int64{"location_id": locationID}, &cb, collCopybooks, collLocations, collShelves)
	if err != nil {
		return nil, err
	}
	return &cb, nil
}

// DeleteCopybook deletes a copy that is not lent out.
func (c *Client) DeleteCopybook(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/copybooks/%d", id), nil, nil,
		collCopybooks, collLocations, collShelves)
}

// OpenLendingFor returns the open lending holding a copy.
func (c *Client) OpenLendingFor(ctx context.Context, copybookID int64) (*model.Lending, error) {
	var l model.Lending
	if err := c.get(ctx, collLendings, fmt.Sprintf("/api/copybooks/%d/lending", copybookID), &l); err != nil {
		return nil, err
	}
	return &l, nil
}
