package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"expensinator/internal/core"
	"expensinator/internal/log"
	"expensinator/internal/receipt"

	_ "modernc.org/sqlite"
)

// ErrDraftNotFound is returned when no draft has the requested ID.
var ErrDraftNotFound = errors.New("draft not found")

// Draft is a scanned receipt waiting for confirmation.
type Draft struct {
	ID        string
	State     receipt.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Confirmation rebuilds the editable review from the stored state.
func (d Draft) Confirmation() *receipt.Confirmation {
	return receipt.Restore(d.State)
}

// storedState is the JSON column; the image lives in its own BLOB column.
type storedState struct {
	Scan     receipt.ScanResult `json:"scan"`
	ScanDate core.Date          `json:"scanDate"`
	Date     core.Date          `json:"date"`
	Currency string             `json:"currency"`
	Expenses []core.Expense     `json:"expenses"`
	Original []core.Expense     `json:"original"`
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	logger.Debug("Drafts database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveDraft stores a new draft and returns its ID.
func (r *SQLiteRepository) SaveDraft(ctx context.Context, c *receipt.Confirmation) (Draft, error) {
	st := c.State()
	payload, err := encodeState(st)
	if err != nil {
		return Draft{}, err
	}

	now := r.now().UTC().Truncate(time.Second)
	id := uuid.NewString()
	err = r.queries.CreateDraft(ctx, CreateDraftParams{
		ID:          id,
		State:       payload,
		Image:       st.Image.Data,
		ContentType: st.Image.ContentType,
		CreatedAt:   now,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("create draft: %w", err)
	}

	r.logger.InfoContext(ctx, "Draft saved",
		log.FieldDraftID, id,
		log.FieldCount, len(st.Expenses))

	return Draft{ID: id, State: st, CreatedAt: now, UpdatedAt: now}, nil
}

// GetDraft loads a draft with its image.
func (r *SQLiteRepository) GetDraft(ctx context.Context, id string) (Draft, error) {
	row, err := r.queries.GetDraft(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	if err != nil {
		return Draft{}, fmt.Errorf("get draft: %w", err)
	}
	return toDraft(row)
}

// ListDrafts returns all drafts, newest first, without image bytes.
func (r *SQLiteRepository) ListDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := r.queries.ListDrafts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	drafts := make([]Draft, 0, len(rows))
	for _, row := range rows {
		d, err := toDraft(row)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// UpdateDraft replaces the editable state of an existing draft. The image is
// never rewritten.
func (r *SQLiteRepository) UpdateDraft(ctx context.Context, id string, c *receipt.Confirmation) error {
	payload, err := encodeState(c.State())
	if err != nil {
		return err
	}
	n, err := r.queries.UpdateDraftState(ctx, id, payload, r.now().UTC().Truncate(time.Second))
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	r.logger.DebugContext(ctx, "Draft updated", log.FieldDraftID, id)
	return nil
}

func (r *SQLiteRepository) DeleteDraft(ctx context.Context, id string) error {
	n, err := r.queries.DeleteDraft(ctx, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	r.logger.InfoContext(ctx, "Draft deleted", log.FieldDraftID, id)
	return nil
}

// Unexported filters out expenses already exported and any without a server ID.
func (r *SQLiteRepository) Unexported(ctx context.Context, expenses []core.Expense) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range expenses {
		if !e.Confirmed() {
			continue
		}
		done, err := r.queries.IsExported(ctx, e.ID())
		if err != nil {
			return nil, fmt.Errorf("check exported expense %d: %w", e.ID(), err)
		}
		if !done {
			out = append(out, e)
		}
	}
	return out, nil
}

// MarkExported records expenses as exported in one transaction.
func (r *SQLiteRepository) MarkExported(ctx context.Context, expenses []core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	at := r.now().UTC().Truncate(time.Second)
	for _, e := range expenses {
		if !e.Confirmed() {
			continue
		}
		if err := q.MarkExported(ctx, e.ID(), at); err != nil {
			return fmt.Errorf("mark expense %d exported: %w", e.ID(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.InfoContext(ctx, "Expenses marked as exported", log.FieldCount, len(expenses))
	return nil
}

func encodeState(st receipt.State) (string, error) {
	b, err := json.Marshal(storedState{
		Scan:     st.Scan,
		ScanDate: st.ScanDate,
		Date:     st.Date,
		Currency: st.Currency,
		Expenses: st.Expenses,
		Original: st.Original,
	})
	if err != nil {
		return "", fmt.Errorf("encode draft state: %w", err)
	}
	return string(b), nil
}

func toDraft(row DraftRow) (Draft, error) {
	var s storedState
	if err := json.Unmarshal([]byte(row.State), &s); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", row.ID, err)
	}
	// LocalIDs are not serialized.
	for i := range s.Expenses {
		s.Expenses[i].EnsureLocalID()
	}
	return Draft{
		ID: row.ID,
		State: receipt.State{
			Scan:     s.Scan,
			Image:    receipt.Image{Data: row.Image, ContentType: row.ContentType},
			ScanDate: s.ScanDate,
			Date:     s.Date,
			Currency: s.Currency,
			Expenses: s.Expenses,
			Original: s.Original,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
