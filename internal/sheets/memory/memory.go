package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"expensinator/internal/core"
	ports "expensinator/internal/sheets"
)

// Store keeps exported rows in memory. It backs dry runs and tests.
type Store struct {
	mu    sync.Mutex
	namer ports.CategoryNamer
	rows  [][]any
	seen  map[int64]struct{}
}

var _ ports.ExpenseExporter = (*Store)(nil)

func New(namer ports.CategoryNamer) *Store {
	return &Store{namer: namer, seen: map[int64]struct{}{}}
}

// Export stores one row per expense. Unconfirmed expenses are rejected and
// an expense ID is written at most once.
func (s *Store) Export(ctx context.Context, expenses []core.Expense) (int, error) {
	for _, e := range expenses {
		if !e.Confirmed() {
			return 0, fmt.Errorf("expense %q has no server ID", e.Description)
		}
	}
	rows := ports.Rows(ctx, s.namer, expenses)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i, e := range expenses {
		if _, ok := s.seen[e.ID()]; ok {
			continue
		}
		s.seen[e.ID()] = struct{}{}
		s.rows = append(s.rows, rows[i])
		n++
	}
	return n, nil
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// WriteTo prints the header and rows as tab-separated lines.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, row := range append([][]any{ports.Header}, s.Rows()...) {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = fmt.Sprint(c)
		}
		n, err := fmt.Fprintln(w, strings.Join(cells, "\t"))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
