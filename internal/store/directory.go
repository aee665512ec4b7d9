package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/polica/internal/model"
)

// CreateCabinet creates a new cabinet.
func CreateCabinet(ctx context.Context, db *sql.DB, name, description string) (*model.Cabinet, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: cabinet name required", model.ErrValidation)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO cabinets (name, description) VALUES (?, ?)`,
		name, description,
	)
	if err != nil {
		return nil, fmt.Errorf("creating cabinet: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting cabinet id: %w", err)
	}

	return GetCabinet(ctx, db, id)
}

// GetCabinet returns a cabinet by ID.
func GetCabinet(ctx context.Context, db *sql.DB, id int64) (*model.Cabinet, error) {
	c := &model.Cabinet{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description FROM cabinets WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cabinet %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting cabinet: %w", err)
	}
	c.Description = description.String
	return c, nil
}

// ListCabinets returns all cabinets ordered by name.
func ListCabinets(ctx context.Context, db *sql.DB) ([]model.Cabinet, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description FROM cabinets ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing cabinets: %w", err)
	}
	defer rows.Close()

	var cabinets []model.Cabinet
	for rows.Next() {
		var c model.Cabinet
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &description); err != nil {
			return nil, fmt.Errorf("scanning cabinet: %w", err)
		}
		c.Description = description.String
		cabinets = append(cabinets, c)
	}
	return cabinets, rows.Err()
}

// UpdateCabinet renames a cabinet and replaces its description.
func UpdateCabinet(ctx context.Context, db *sql.DB, id int64, name, description string) error {
	if name == "" {
		return fmt.Errorf("%w: cabinet name required", model.ErrValidation)
	}
	result, err := db.ExecContext(ctx,
		`UPDATE cabinets SET name = ?, description = ? WHERE id = ?`,
		name, description, id,
	)
	if err != nil {
		return fmt.Errorf("updating cabinet: %w", err)
	}
	return requireAffected(result, "cabinet", id)
}

// DeleteCabinet deletes a cabinet. Fails while it still has shelves.
func DeleteCabinet(ctx context.Context, db *sql.DB, id int64) error {
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shelves WHERE cabinet_id = ?`, id,
	).Scan(&count); err != nil {
		return fmt.Errorf("checking cabinet shelves: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: cabinet still has %d shelves", model.ErrConflict, count)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM cabinets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting cabinet: %w", err)
	}
	return requireAffected(result, "cabinet", id)
}

// CreateShelf creates a shelf in a cabinet.
func CreateShelf(ctx context.Context, db *sql.DB, cabinetID int64, code string) (*model.Shelf, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: shelf code required", model.ErrValidation)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO shelves (code, cabinet_id) VALUES (?, ?)`,
		code, cabinetID,
	)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: cabinet %d", model.ErrNotFound, cabinetID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating shelf: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting shelf id: %w", err)
	}

	return GetShelf(ctx, db, id)
}

// GetShelf returns a shelf by ID, joined with its cabinet name.
func GetShelf(ctx context.Context, db *sql.DB, id int64) (*model.Shelf, error) {
	s := &model.Shelf{}
	err := db.QueryRowContext(ctx,
		`SELECT s.id, s.code, s.cabinet_id, c.name
		 FROM shelves s
		 JOIN cabinets c ON c.id = s.cabinet_id
		 WHERE s.id = ?`, id,
	).Scan(&s.ID, &s.Code, &s.CabinetID, &s.CabinetName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: shelf %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting shelf: %w", err)
	}
	return s, nil
}

// ListShelves returns shelves sorted by (cabinet name, code), optionally
// limited to one cabinet.
func ListShelves(ctx context.Context, db *sql.DB, cabinetID int64) ([]model.Shelf, error) {
	query := `SELECT s.id, s.code, s.cabinet_id, c.name
	          FROM shelves s
	          JOIN cabinets c ON c.id = s.cabinet_id
	          WHERE 1=1`
	var args []any

	if cabinetID > 0 {
		query += ` AND s.cabinet_id = ?`
		args = append(args, cabinetID)
	}

	query += ` ORDER BY c.name, s.code, s.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing shelves: %w", err)
	}
	defer rows.Close()

	var shelves []model.Shelf
	for rows.Next() {
		var s model.Shelf
		if err := rows.Scan(&s.ID, &s.Code, &s.CabinetID, &s.CabinetName); err != nil {
			return nil, fmt.Errorf("scanning shelf: %w", err)
		}
		shelves = append(shelves, s)
	}
	return shelves, rows.Err()
}

// UpdateShelf changes a shelf's code and cabinet.
func UpdateShelf(ctx context.Context, db *sql.DB, id, cabinetID int64, code string) error {
	if code == "" {
		return fmt.Errorf("%w: shelf code required", model.ErrValidation)
	}
	result, err := db.ExecContext(ctx,
		`UPDATE shelves SET code = ?, cabinet_id = ? WHERE id = ?`,
		code, cabinetID, id,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: cabinet %d", model.ErrNotFound, cabinetID)
	}
	if err != nil {
		return fmt.Errorf("updating shelf: %w", err)
	}
	return requireAffected(result, "shelf", id)
}

// DeleteShelf deletes a shelf. Fails while it still has locations.
func DeleteShelf(ctx context.Context, db *sql.DB, id int64) error {
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE shelf_id = ?`, id,
	).Scan(&count); err != nil {
		return fmt.Errorf("checking shelf locations: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: shelf still has %d locations", model.ErrConflict, count)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM shelves WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting shelf: %w", err)
	}
	return requireAffected(result, "shelf", id)
}

// ListShelfStats recomputes total, free and occupied slot counts for every
// shelf, sorted by (cabinet name, code).
func ListShelfStats(ctx context.Context, db *sql.DB) ([]model.ShelfStats, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT s.id, s.code, s.cabinet_id, c.name,
		        COUNT(l.id) AS total,
		        COUNT(cb.id) AS occupied
		 FROM shelves s
		 JOIN cabinets c ON c.id = s.cabinet_id
		 LEFT JOIN locations l ON l.shelf_id = s.id
		 LEFT JOIN copybooks cb ON cb.location_id = l.id
		 GROUP BY s.id, s.code, s.cabinet_id, c.name
		 ORDER BY c.name, s.code, s.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing shelf stats: %w", err)
	}
	defer rows.Close()

	var stats []model.ShelfStats
	for rows.Next() {
		var st model.ShelfStats
		if err := rows.Scan(&st.ID, &st.Code, &st.CabinetID, &st.CabinetName, &st.Total, &st.Occupied); err != nil {
			return nil, fmt.Errorf("scanning shelf stats: %w", err)
		}
		st.Free = st.Total - st.Occupied
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(result sql.Result, entity string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", model.ErrNotFound, entity, id)
	}
	return nil
}
