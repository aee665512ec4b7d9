package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/polica/internal/model"
)

// Reference data is owned elsewhere in the library system; these lookups
// exist so copies and lendings can point at real rows.

// CreateEdition creates an edition.
func CreateEdition(ctx context.Context, db *sql.DB, title, isbn string, year int) (*model.Edition, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: edition title required", model.ErrValidation)
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO editions (title, isbn, year) VALUES (?, ?, ?)`,
		title, nullString(isbn), nullInt(year),
	)
	if err != nil {
		return nil, fmt.Errorf("creating edition: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting edition id: %w", err)
	}
	return GetEdition(ctx, db, id)
}

// GetEdition returns an edition by ID.
func GetEdition(ctx context.Context, db *sql.DB, id int64) (*model.Edition, error) {
	e := &model.Edition{}
	var isbn sql.NullString
	var year sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT id, title, isbn, year FROM editions WHERE id = ?`, id,
	).Scan(&e.ID, &e.Title, &isbn, &year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: edition %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting edition: %w", err)
	}
	e.ISBN = isbn.String
	e.Year = int(year.Int64)
	return e, nil
}

// ListEditions returns all editions ordered by title.
func ListEditions(ctx context.Context, db *sql.DB) ([]model.Edition, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, isbn, year FROM editions ORDER BY title, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing editions: %w", err)
	}
	defer rows.Close()

	var editions []model.Edition
	for rows.Next() {
		var e model.Edition
		var isbn sql.NullString
		var year sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Title, &isbn, &year); err != nil {
			return nil, fmt.Errorf("scanning edition: %w", err)
		}
		e.ISBN = isbn.String
		e.Year = int(year.Int64)
		editions = append(editions, e)
	}
	return editions, rows.Err()
}

// CreateReader creates a reader.
func CreateReader(ctx context.Context, db *sql.DB, name string) (*model.Reader, error) {
	id, err := insertNamed(ctx, db, "readers", name)
	if err != nil {
		return nil, err
	}
	return GetReader(ctx, db, id)
}

// GetReader returns a reader by ID.
func GetReader(ctx context.Context, db *sql.DB, id int64) (*model.Reader, error) {
	r := &model.Reader{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name FROM readers WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reader %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}
	return r, nil
}

// ListReaders returns all readers ordered by name.
func ListReaders(ctx context.Context, db *sql.DB) ([]model.Reader, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM readers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing readers: %w", err)
	}
	defer rows.Close()

	var readers []model.Reader
	for rows.Next() {
		var r model.Reader
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning reader: %w", err)
		}
		readers = append(readers, r)
	}
	return readers, rows.Err()
}

// CreateEmployee creates an employee.
func CreateEmployee(ctx context.Context, db *sql.DB, name string) (*model.Employee, error) {
	id, err := insertNamed(ctx, db, "employees", name)
	if err != nil {
		return nil, err
	}
	return GetEmployee(ctx, db, id)
}

// GetEmployee returns an employee by ID.
func GetEmployee(ctx context.Context, db *sql.DB, id int64) (*model.Employee, error) {
	e := &model.Employee{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name FROM employees WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: employee %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns all employees ordered by name.
func ListEmployees(ctx context.Context, db *sql.DB) ([]model.Employee, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM employees ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// insertNamed inserts a row into a (id, name) table. table is never user input.
func insertNamed(ctx context.Context, db *sql.DB, table, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: name required", model.ErrValidation)
	}
	result, err := db.ExecContext(ctx, `INSERT INTO `+table+` (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("creating %s row: %w", table, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting %s id: %w", table, err)
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

// SetEditionCover stores or replaces an edition's cover image.
func SetEditionCover(ctx context.Context, db *sql.DB, editionID int64, data []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO edition_covers (edition_id, data, mime) VALUES (?, ?, ?)
		 ON CONFLICT(edition_id) DO UPDATE SET data = excluded.data, mime = excluded.mime,
		     updated_at = CURRENT_TIMESTAMP`,
		editionID, data, mime,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: edition %d", model.ErrNotFound, editionID)
	}
	if err != nil {
		return fmt.Errorf("setting edition cover: %w", err)
	}
	return nil
}

// GetEditionCover returns an edition's cover image and its MIME type.
func GetEditionCover(ctx context.Context, db *sql.DB, editionID int64) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM edition_covers WHERE edition_id = ?`, editionID,
	).Scan(&data, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: no cover for edition %d", model.ErrNotFound, editionID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting edition cover: %w", err)
	}
	return data, mime, nil
}
