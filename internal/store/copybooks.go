package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/polica/internal/model"
)

// CopybookFilter narrows ListCopybooks. Zero values mean no filter.
type CopybookFilter struct {
	Status    model.Status
	EditionID int64
	ShelfID   int64
}

// CreateCopybook creates a copy and, if locationID is set, claims that
// location for it in the same transaction. Either both happen or neither.
func CreateCopybook(ctx context.Context, db *sql.DB, editionID int64, status model.Status, locationID *int64) (*model.Copybook, error) {
	if !status.Known() {
		return nil, fmt.Errorf("%w: cannot create copy with status %s", model.ErrValidation, status)
	}
	if status == model.StatusIssued {
		return nil, fmt.Errorf("%w: copies are issued by creating a lending", model.ErrValidation)
	}
	if status.ReleasesLocation() && locationID != nil {
		return nil, fmt.Errorf("%w: a %s copy cannot hold a location", model.ErrValidation, status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM editions WHERE id = ?`, editionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: edition %d", model.ErrNotFound, editionID)
	}
	if err != nil {
		return nil, fmt.Errorf("checking edition: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO copybooks (edition_id, status) VALUES (?, ?)`,
		editionID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("creating copybook: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting copybook id: %w", err)
	}

	if locationID != nil {
		if err := claimTx(ctx, tx, *locationID, id); err != nil {
			return nil, err
		}
	}

	cb, err := getCopybook(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing copybook: %w", err)
	}
	return cb, nil
}

// GetCopybook returns a copy by ID.
func GetCopybook(ctx context.Context, db *sql.DB, id int64) (*model.Copybook, error) {
	return getCopybook(ctx, db, id)
}

func getCopybook(ctx context.Context, q queryer, id int64) (*model.Copybook, error) {
	cb := &model.Copybook{}
	var status string
	var location sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT cb.id, cb.edition_id, cb.status, cb.location_id, e.title
		 FROM copybooks cb
		 JOIN editions e ON e.id = cb.edition_id
		 WHERE cb.id = ?`, id,
	).Scan(&cb.ID, &cb.EditionID, &status, &location, &cb.EditionTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: copybook %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting copybook: %w", err)
	}
	cb.Status = model.Status(status)
	if location.Valid {
		cb.LocationID = &location.Int64
	}
	return cb, nil
}

// ListCopybooks returns copies in id order.
func ListCopybooks(ctx context.Context, db *sql.DB, f CopybookFilter) ([]model.Copybook, error) {
	query := `SELECT cb.id, cb.edition_id, cb.status, cb.location_id, e.title
	          FROM copybooks cb
	          JOIN editions e ON e.id = cb.edition_id
	          LEFT JOIN locations l ON l.id = cb.location_id
	          WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND cb.status = ?`
		args = append(args, string(f.Status))
	}
	if f.EditionID > 0 {
		query += ` AND cb.edition_id = ?`
		args = append(args, f.EditionID)
	}
	if f.ShelfID > 0 {
		query += ` AND l.shelf_id = ?`
		args = append(args, f.ShelfID)
	}

	query += ` ORDER BY cb.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing copybooks: %w", err)
	}
	defer rows.Close()

	var copies []model.Copybook
	for rows.Next() {
		var cb model.Copybook
		var status string
		var location sql.NullInt64
		if err := rows.Scan(&cb.ID, &cb.EditionID, &status, &location, &cb.EditionTitle); err != nil {
			return nil, fmt.Errorf("scanning copybook: %w", err)
		}
		cb.Status = model.Status(status)
		if location.Valid {
			id := location.Int64
			cb.LocationID = &id
		}
		copies = append(copies, cb)
	}
	return copies, rows.Err()
}

// UpdateCopybookStatus applies a manual status edit. Writing a copy off
// releases its location.
func UpdateCopybookStatus(ctx context.Context, db *sql.DB, id int64, status model.Status) (*model.Copybook, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := copybookStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := model.CheckTransition(current, status); err != nil {
		return nil, err
	}

	if current == model.StatusIssued && status != model.StatusIssued {
		lendingID, err := openLendingFor(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if lendingID != 0 {
			return nil, fmt.Errorf("%w: copybook %d is held by open lending %d", model.ErrConflict, id, lendingID)
		}
	}

	query := `UPDATE copybooks SET status = ? WHERE id = ?`
	if status.ReleasesLocation() {
		query = `UPDATE copybooks SET status = ?, location_id = NULL WHERE id = ?`
	}
	if _, err := tx.ExecContext(ctx, query, string(status), id); err != nil {
		return nil, fmt.Errorf("updating copybook status: %w", err)
	}

	cb, err := getCopybook(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status update: %w", err)
	}
	return cb, nil
}

// RelocateCopybook moves a copy to locationID, or off the shelves when
// locationID is nil. The old slot is released and the new one claimed by a
// single update, so no observer sees the copy in two places or none.
func RelocateCopybook(ctx context.Context, db *sql.DB, id int64, locationID *int64) (*model.Copybook, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	status, err := copybookStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if locationID == nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE copybooks SET location_id = NULL WHERE id = ?`, id,
		); err != nil {
			return nil, fmt.Errorf("clearing copybook location: %w", err)
		}
	} else {
		if status.ReleasesLocation() {
			return nil, fmt.Errorf("%w: copybook %d is %s", model.ErrConflict, id, status)
		}
		if err := claimTx(ctx, tx, *locationID, id); err != nil {
			return nil, err
		}
	}

	cb, err := getCopybook(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing relocation: %w", err)
	}
	return cb, nil
}

// DeleteCopybook deletes a copy, freeing its location with it. Copies that
// belong to an open lending cannot be deleted. Item rows of closed lendings
// that referenced the copy are removed.
func DeleteCopybook(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := copybookStatus(ctx, tx, id); err != nil {
		return err
	}

	lendingID, err := openLendingFor(ctx, tx, id)
	if err != nil {
		return err
	}
	if lendingID != 0 {
		return fmt.Errorf("%w: copybook %d is held by open lending %d", model.ErrConflict, id, lendingID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lending_items WHERE copybook_id = ?`, id); err != nil {
		return fmt.Errorf("deleting copybook lending items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM copybooks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting copybook: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing copybook deletion: %w", err)
	}
	return nil
}

func copybookStatus(ctx context.Context, q queryer, id int64) (model.Status, error) {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM copybooks WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: copybook %d", model.ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("getting copybook status: %w", err)
	}
	return model.Status(status), nil
}

// CopyStore exposes the copy creation calls as methods, for callers that
// take them through an interface.
type CopyStore struct {
	DB *sql.DB
}

// FreeLocationsByShelf implements batch.CopyStore.
func (s CopyStore) FreeLocationsByShelf(ctx context.Context, shelfIDs []int64) (map[int64][]int64, error) {
	return FreeLocationsByShelf(ctx, s.DB, shelfIDs)
}

// CreateCopybook implements batch.CopyStore.
func (s CopyStore) CreateCopybook(ctx context.Context, editionID int64, status model.Status, locationID *int64) (*model.Copybook, error) {
	return CreateCopybook(ctx, s.DB, editionID, status, locationID)
}
