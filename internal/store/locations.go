package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/polica/internal/model"
)

const selectLocations = `SELECT l.id, l.shelf_id, cb.id, s.code, c.name
	FROM locations l
	JOIN shelves s ON s.id = l.shelf_id
	JOIN cabinets c ON c.id = s.cabinet_id
	LEFT JOIN copybooks cb ON cb.location_id = l.id`

// LocationFilter narrows ListLocations. Zero values mean no filter.
type LocationFilter struct {
	ShelfID  int64
	FreeOnly bool
}

// ListLocations returns locations in id order. Filtering on a shelf that
// does not exist is ErrNotFound.
func ListLocations(ctx context.Context, db *sql.DB, f LocationFilter) ([]model.Location, error) {
	query := selectLocations + ` WHERE 1=1`
	var args []any

	if f.ShelfID > 0 {
		if err := requireRow(ctx, db, "shelves", "shelf", f.ShelfID); err != nil {
			return nil, err
		}
		query += ` AND l.shelf_id = ?`
		args = append(args, f.ShelfID)
	}
	if f.FreeOnly {
		query += ` AND cb.id IS NULL`
	}

	query += ` ORDER BY l.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	return scanLocations(rows)
}

// ListFreeLocations returns every location without an occupant, optionally
// limited to one shelf.
func ListFreeLocations(ctx context.Context, db *sql.DB, shelfID int64) ([]model.Location, error) {
	return ListLocations(ctx, db, LocationFilter{ShelfID: shelfID, FreeOnly: true})
}

// FreeLocationsByShelf returns a snapshot of free location IDs per shelf, in
// id order, for the given shelves. Shelves without free slots map to an
// empty slice; a shelf that does not exist is ErrNotFound.
func FreeLocationsByShelf(ctx context.Context, db *sql.DB, shelfIDs []int64) (map[int64][]int64, error) {
	free := make(map[int64][]int64, len(shelfIDs))
	for _, id := range shelfIDs {
		if _, seen := free[id]; seen {
			continue
		}
		locations, err := ListFreeLocations(ctx, db, id)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(locations))
		for _, l := range locations {
			ids = append(ids, l.ID)
		}
		free[id] = ids
	}
	return free, nil
}

// GetLocation returns a location by ID with its current occupant.
func GetLocation(ctx context.Context, db *sql.DB, id int64) (*model.Location, error) {
	return getLocation(ctx, db, id)
}

func getLocation(ctx context.Context, q queryer, id int64) (*model.Location, error) {
	rows, err := q.QueryContext(ctx, selectLocations+` WHERE l.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	defer rows.Close()

	locations, err := scanLocations(rows)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("%w: location %d", model.ErrNotFound, id)
	}
	return &locations[0], nil
}

// CreateLocations adds quantity empty locations to a shelf in one transaction.
func CreateLocations(ctx context.Context, db *sql.DB, shelfID int64, quantity int) ([]model.Location, error) {
	if quantity <= 0 || quantity > model.MaxLocationsPerRequest {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", model.ErrValidation, model.MaxLocationsPerRequest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM shelves WHERE id = ?`, shelfID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: shelf %d", model.ErrNotFound, shelfID)
	}
	if err != nil {
		return nil, fmt.Errorf("checking shelf: %w", err)
	}

	ids := make([]int64, 0, quantity)
	for range quantity {
		result, err := tx.ExecContext(ctx, `INSERT INTO locations (shelf_id) VALUES (?)`, shelfID)
		if err != nil {
			return nil, fmt.Errorf("creating location: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting location id: %w", err)
		}
		ids = append(ids, id)
	}

	created := make([]model.Location, 0, quantity)
	for _, id := range ids {
		l, err := getLocation(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		created = append(created, *l)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing locations: %w", err)
	}
	return created, nil
}

// UpdateLocation moves a location to another shelf. Its occupant moves with it.
func UpdateLocation(ctx context.Context, db *sql.DB, id, shelfID int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE locations SET shelf_id = ? WHERE id = ?`, shelfID, id,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: shelf %d", model.ErrNotFound, shelfID)
	}
	if err != nil {
		return fmt.Errorf("updating location: %w", err)
	}
	return requireAffected(result, "location", id)
}

// DeleteLocation deletes an empty location.
func DeleteLocation(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := getLocation(ctx, tx, id)
	if err != nil {
		return err
	}
	if !l.Free() {
		return fmt.Errorf("%w: location %d is occupied by copybook %d", model.ErrConflict, id, *l.Occupant)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing location deletion: %w", err)
	}
	return nil
}

// ClaimLocation makes copybookID the occupant of locationID. The claim only
// succeeds while the location is free; a location already held by another
// copy yields ErrConflict. Claiming a location the copy already holds is a
// no-op. A copy that held a different location gives it up.
func ClaimLocation(ctx context.Context, db *sql.DB, locationID, copybookID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	status, err := copybookStatus(ctx, tx, copybookID)
	if err != nil {
		return err
	}
	if status == model.StatusWrittenOff {
		return fmt.Errorf("%w: copybook %d is written off", model.ErrConflict, copybookID)
	}

	if err := claimTx(ctx, tx, locationID, copybookID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing claim: %w", err)
	}
	return nil
}

// ReleaseLocation clears a location's occupant. Releasing a free location
// succeeds and changes nothing.
func ReleaseLocation(ctx context.Context, db *sql.DB, locationID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getLocation(ctx, tx, locationID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE copybooks SET location_id = NULL WHERE location_id = ?`, locationID,
	); err != nil {
		return fmt.Errorf("releasing location: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing release: %w", err)
	}
	return nil
}

// claimTx is the compare-and-set at the heart of slot exclusivity: the
// update only applies while no copy points at the location, and the unique
// index on copybooks.location_id rejects anything that slips past.
func claimTx(ctx context.Context, tx *sql.Tx, locationID, copybookID int64) error {
	l, err := getLocation(ctx, tx, locationID)
	if err != nil {
		return err
	}
	if l.Occupant != nil {
		if *l.Occupant == copybookID {
			return nil
		}
		return fmt.Errorf("%w: location %d is occupied by copybook %d", model.ErrConflict, locationID, *l.Occupant)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE copybooks SET location_id = ?
		 WHERE id = ?
		   AND NOT EXISTS (SELECT 1 FROM copybooks WHERE location_id = ?)`,
		locationID, copybookID, locationID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: location %d was claimed concurrently", model.ErrConflict, locationID)
	}
	if err != nil {
		return fmt.Errorf("claiming location: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking claim: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: location %d was claimed concurrently", model.ErrConflict, locationID)
	}
	return nil
}

func scanLocations(rows *sql.Rows) ([]model.Location, error) {
	var locations []model.Location
	for rows.Next() {
		var l model.Location
		var occupant sql.NullInt64
		if err := rows.Scan(&l.ID, &l.ShelfID, &occupant, &l.ShelfCode, &l.CabinetName); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		if occupant.Valid {
			id := occupant.Int64
			l.Occupant = &id
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}
