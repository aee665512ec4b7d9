package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/erazemk/polica/internal/model"
)

// LendingFilter narrows ListLendings. Zero values mean no filter.
type LendingFilter struct {
	OpenOnly bool
	// OverdueAsOf, when set, keeps only lendings overdue on that day.
	OverdueAsOf *model.Date
	ReaderID    int64
}

// NewLending is the input of CreateLending.
type NewLending struct {
	ReaderID          int64
	EmployeeID        int64
	CopybookIDs       []int64
	DateLending       model.Date
	DateReturnPlanned model.Date
}

// CreateLending checks out copies to a reader. Every copy must be available
// and outside any open lending; all of them become issued in the same
// transaction. Duplicate copy IDs are collapsed.
func CreateLending(ctx context.Context, db *sql.DB, in NewLending) (*model.Lending, error) {
	if in.ReaderID <= 0 {
		return nil, fmt.Errorf("%w: reader required", model.ErrValidation)
	}
	if in.EmployeeID <= 0 {
		return nil, fmt.Errorf("%w: employee required", model.ErrValidation)
	}
	if in.DateLending.IsZero() || in.DateReturnPlanned.IsZero() {
		return nil, fmt.Errorf("%w: lending and planned return dates required", model.ErrValidation)
	}
	if in.DateReturnPlanned.Before(in.DateLending) {
		return nil, fmt.Errorf("%w: planned return %s is before lending %s",
			model.ErrValidation, in.DateReturnPlanned, in.DateLending)
	}

	ids := uniqueIDs(in.CopybookIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one copybook required", model.ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireRow(ctx, tx, "readers", "reader", in.ReaderID); err != nil {
		return nil, err
	}
	if err := requireRow(ctx, tx, "employees", "employee", in.EmployeeID); err != nil {
		return nil, err
	}

	for _, id := range ids {
		status, err := copybookStatus(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if status != model.StatusAvailable {
			return nil, fmt.Errorf("%w: copybook %d is %s", model.ErrConflict, id, status)
		}
		lendingID, err := openLendingFor(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if lendingID != 0 {
			return nil, fmt.Errorf("%w: copybook %d is held by open lending %d", model.ErrConflict, id, lendingID)
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO lendings (reader_id, employee_id, date_lending, date_return_planned)
		 VALUES (?, ?, ?, ?)`,
		in.ReaderID, in.EmployeeID, in.DateLending, in.DateReturnPlanned,
	)
	if err != nil {
		return nil, fmt.Errorf("creating lending: %w", err)
	}
	lendingID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting lending id: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lending_items (lending_id, copybook_id) VALUES (?, ?)`,
			lendingID, id,
		); err != nil {
			return nil, fmt.Errorf("adding lending item: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE copybooks SET status = ? WHERE id = ?`,
			string(model.StatusIssued), id,
		); err != nil {
			return nil, fmt.Errorf("issuing copybook: %w", err)
		}
	}

	l, err := getLending(ctx, tx, lendingID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing lending: %w", err)
	}
	return l, nil
}

// CloseLending records the return of a lending. Items still issued go back
// to available; their locations were never released. Closing is terminal.
func CloseLending(ctx context.Context, db *sql.DB, id int64, dateReturn model.Date) (*model.Lending, error) {
	if dateReturn.IsZero() {
		return nil, fmt.Errorf("%w: return date required", model.ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := getLending(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !l.Open() {
		return nil, fmt.Errorf("%w: lending %d was already returned on %s", model.ErrConflict, id, l.DateReturn)
	}
	if dateReturn.Before(l.DateLending) {
		return nil, fmt.Errorf("%w: return %s is before lending %s", model.ErrValidation, dateReturn, l.DateLending)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE lendings SET date_return = ? WHERE id = ?`, dateReturn, id,
	); err != nil {
		return nil, fmt.Errorf("closing lending: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE copybooks SET status = ?
		 WHERE status = ?
		   AND id IN (SELECT copybook_id FROM lending_items WHERE lending_id = ?)`,
		string(model.StatusAvailable), string(model.StatusIssued), id,
	); err != nil {
		return nil, fmt.Errorf("returning lending items: %w", err)
	}

	l, err = getLending(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}
	return l, nil
}

// GetLending returns a lending with its items.
func GetLending(ctx context.Context, db *sql.DB, id int64) (*model.Lending, error) {
	return getLending(ctx, db, id)
}

const selectLendings = `SELECT ln.id, ln.reader_id, ln.employee_id, ln.date_lending,
	       ln.date_return_planned, ln.date_return, r.name, e.name
	FROM lendings ln
	JOIN readers r ON r.id = ln.reader_id
	JOIN employees e ON e.id = ln.employee_id`

func getLending(ctx context.Context, q queryer, id int64) (*model.Lending, error) {
	l, err := scanLending(q.QueryRowContext(ctx, selectLendings+` WHERE ln.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: lending %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting lending: %w", err)
	}

	items, err := lendingItems(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	l.Items = items[id]
	return l, nil
}

// ListLendings returns lendings, newest first.
func ListLendings(ctx context.Context, db *sql.DB, f LendingFilter) ([]model.Lending, error) {
	query := selectLendings + ` WHERE 1=1`
	var args []any

	if f.OpenOnly || f.OverdueAsOf != nil {
		query += ` AND ln.date_return IS NULL`
	}
	if f.OverdueAsOf != nil {
		query += ` AND ln.date_return_planned < ?`
		args = append(args, *f.OverdueAsOf)
	}
	if f.ReaderID > 0 {
		query += ` AND ln.reader_id = ?`
		args = append(args, f.ReaderID)
	}

	query += ` ORDER BY ln.date_lending DESC, ln.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing lendings: %w", err)
	}
	defer rows.Close()

	var lendings []model.Lending
	var ids []int64
	for rows.Next() {
		l, err := scanLending(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lending: %w", err)
		}
		lendings = append(lendings, *l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing lendings: %w", err)
	}
	rows.Close()

	items, err := lendingItems(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range lendings {
		lendings[i].Items = items[lendings[i].ID]
	}
	return lendings, nil
}

// OpenLendingForCopybook returns the open lending holding a copy, or
// ErrNotFound when the copy is on the shelf.
func OpenLendingForCopybook(ctx context.Context, db *sql.DB, copybookID int64) (*model.Lending, error) {
	if _, err := copybookStatus(ctx, db, copybookID); err != nil {
		return nil, err
	}
	id, err := openLendingFor(ctx, db, copybookID)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("%w: no open lending for copybook %d", model.ErrNotFound, copybookID)
	}
	return getLending(ctx, db, id)
}

// openLendingFor returns the ID of the open lending that holds a copy, or 0.
func openLendingFor(ctx context.Context, q queryer, copybookID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT ln.id FROM lendings ln
		 JOIN lending_items li ON li.lending_id = ln.id
		 WHERE li.copybook_id = ? AND ln.date_return IS NULL
		 LIMIT 1`, copybookID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking open lendings: %w", err)
	}
	return id, nil
}

func lendingItems(ctx context.Context, q queryer, lendingIDs []int64) (map[int64][]int64, error) {
	items := make(map[int64][]int64, len(lendingIDs))
	if len(lendingIDs) == 0 {
		return items, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(lendingIDs)), ",")
	args := make([]any, len(lendingIDs))
	for i, id := range lendingIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT lending_id, copybook_id FROM lending_items
		 WHERE lending_id IN (`+placeholders+`)
		 ORDER BY lending_id, copybook_id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing lending items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lendingID, copybookID int64
		if err := rows.Scan(&lendingID, &copybookID); err != nil {
			return nil, fmt.Errorf("scanning lending item: %w", err)
		}
		items[lendingID] = append(items[lendingID], copybookID)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLending(row rowScanner) (*model.Lending, error) {
	l := &model.Lending{}
	var dateReturn sql.NullString
	if err := row.Scan(&l.ID, &l.ReaderID, &l.EmployeeID, &l.DateLending,
		&l.DateReturnPlanned, &dateReturn, &l.ReaderName, &l.EmployeeName); err != nil {
		return nil, err
	}
	if dateReturn.Valid {
		d, err := model.ParseDate(dateReturn.String)
		if err != nil {
			return nil, err
		}
		l.DateReturn = &d
	}
	return l, nil
}

// requireRow returns ErrNotFound unless table has a row with id. table is
// never user input.
func requireRow(ctx context.Context, q queryer, table, entity string, id int64) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", model.ErrNotFound, entity, id)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", entity, err)
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
