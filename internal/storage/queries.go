package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type DraftRow struct {
	ID          string
	State       string
	Image       []byte
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const createDraft = `INSERT INTO drafts (id, state, image, content_type, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

type CreateDraftParams struct {
	ID          string
	State       string
	Image       []byte
	ContentType string
	CreatedAt   time.Time
}

func (q *Queries) CreateDraft(ctx context.Context, arg CreateDraftParams) error {
	_, err := q.db.ExecContext(ctx, createDraft,
		arg.ID, arg.State, arg.Image, arg.ContentType, arg.CreatedAt, arg.CreatedAt)
	return err
}

const getDraft = `SELECT id, state, image, content_type, created_at, updated_at
FROM drafts WHERE id = ?`

func (q *Queries) GetDraft(ctx context.Context, id string) (DraftRow, error) {
	row := q.db.QueryRowContext(ctx, getDraft, id)
	var d DraftRow
	err := row.Scan(&d.ID, &d.State, &d.Image, &d.ContentType, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const listDrafts = `SELECT id, state, content_type, created_at, updated_at
FROM drafts ORDER BY created_at DESC, id`

// ListDrafts omits image bytes.
func (q *Queries) ListDrafts(ctx context.Context) ([]DraftRow, error) {
	rows, err := q.db.QueryContext(ctx, listDrafts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DraftRow
	for rows.Next() {
		var d DraftRow
		if err := rows.Scan(&d.ID, &d.State, &d.ContentType, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateDraftState = `UPDATE drafts SET state = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateDraftState(ctx context.Context, id, state string, updatedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateDraftState, state, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteDraft = `DELETE FROM drafts WHERE id = ?`

func (q *Queries) DeleteDraft(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteDraft, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const isExported = `SELECT COUNT(1) FROM exported_expenses WHERE expense_id = ?`

func (q *Queries) IsExported(ctx context.Context, expenseID int64) (bool, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, isExported, expenseID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

const markExported = `INSERT OR REPLACE INTO exported_expenses (expense_id, exported_at) VALUES (?, ?)`

func (q *Queries) MarkExported(ctx context.Context, expenseID int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, markExported, expenseID, at)
	return err
}
