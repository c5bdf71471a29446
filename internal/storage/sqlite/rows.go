package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/goliatone/go-formsheet/pkg/submission"
)

// MaxCellChars matches the per-cell limit of hosted spreadsheets so a row
// accepted locally would also be accepted upstream.
const MaxCellChars = 50000

// StoredRow is one appended row read back from submission_rows.
type StoredRow struct {
	ID        string
	Target    submission.Target
	Cells     []string
	CreatedAt time.Time
}

// RowStore is an append-only submission.Appender over submission_rows.
type RowStore struct {
	store *Store
	now   func() time.Time
	newID func() string
}

// Rows returns the row store sharing this database.
func (s *Store) Rows() *RowStore {
	return &RowStore{
		store: s,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Append inserts row. Oversized cells and constraint violations are
// rejected; every other failure is reported as the store being unavailable.
func (r *RowStore) Append(ctx context.Context, target submission.Target, row submission.Row) error {
	if err := r.store.ready(ctx); err != nil {
		return submission.Wrap(submission.CodeStoreUnavailable, "row store unavailable", err)
	}
	if strings.TrimSpace(target.StoreID) == "" {
		return submission.NewError(submission.CodeStoreRejected, "row store: store id is required")
	}
	for i, cell := range row {
		if n := utf8.RuneCountInString(cell); n > MaxCellChars {
			return submission.NewError(submission.CodeStoreRejected,
				fmt.Sprintf("cell %d has %d characters, limit is %d", i, n, MaxCellChars))
		}
	}

	cells, err := json.Marshal([]string(row))
	if err != nil {
		return submission.Wrap(submission.CodeStoreRejected, "encode row", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
INSERT INTO submission_rows (id, store_id, range_name, cells, created_at)
VALUES (?, ?, ?, ?, ?)
`, r.newID(), target.StoreID, target.Range, string(cells), r.now().UTC().UnixMilli())
	if err != nil {
		return classify(err)
	}
	return nil
}

// List returns the rows appended to target, oldest first.
func (r *RowStore) List(ctx context.Context, target submission.Target) ([]StoredRow, error) {
	if err := r.store.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := r.store.db.QueryContext(ctx, `
SELECT id, store_id, range_name, cells, created_at
FROM submission_rows
WHERE store_id = ? AND range_name = ?
ORDER BY created_at ASC, rowid ASC
`, target.StoreID, target.Range)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list rows: %w", err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var (
			rec       StoredRow
			cells     string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Target.StoreID, &rec.Target.Range, &cells, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(cells), &rec.Cells); err != nil {
			return nil, fmt.Errorf("sqlite: decode row %s: %w", rec.ID, err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate rows: %w", err)
	}
	return out, nil
}

func classify(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_TOOBIG, sqlite3.SQLITE_MISMATCH:
			return submission.Wrap(submission.CodeStoreRejected, "row store rejected row", err)
		}
	}
	return submission.Wrap(submission.CodeStoreUnavailable, "row store unavailable", err)
}
