package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"expensinator/internal/core"
	"expensinator/internal/events"
	"expensinator/internal/log"
)

// ErrNothingSelected is returned by DeleteSelected with an empty selection.
var ErrNothingSelected = errors.New("no expenses selected")

// HomeState is a snapshot of what the expense list screen shows.
type HomeState struct {
	Loading      bool
	Expenses     []core.Expense
	ErrorMessage string
}

// HomeModel backs the expense list: the fetched list, the user's selection
// and the last error. All state is derived from call results.
type HomeModel struct {
	svc    *ExpenseService
	logger *log.Logger

	mu       sync.Mutex
	state    HomeState
	selected map[uuid.UUID]struct{}
}

func NewHomeModel(svc *ExpenseService, logger *log.Logger) *HomeModel {
	if logger == nil {
		logger = log.Discard()
	}
	return &HomeModel{
		svc:      svc,
		logger:   logger.WithComponent(log.ComponentHome),
		selected: make(map[uuid.UUID]struct{}),
	}
}

// State returns a copy of the current state.
func (m *HomeModel) State() HomeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Expenses = append([]core.Expense(nil), m.state.Expenses...)
	return s
}

// Refresh re-fetches the list. Selected expenses that disappeared are unselected.
func (m *HomeModel) Refresh(ctx context.Context) error {
	m.setLoading()
	list, err := m.svc.List(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Loading = false
	if err != nil {
		m.state.ErrorMessage = UserMessage(ActionFetching, err)
		return err
	}
	// Keep local identities stable across fetches for server-known expenses.
	prev := make(map[int64]uuid.UUID, len(m.state.Expenses))
	for _, e := range m.state.Expenses {
		if e.ExpenseID != nil {
			prev[*e.ExpenseID] = e.LocalID
		}
	}
	for i := range list {
		if list[i].ExpenseID == nil {
			continue
		}
		if id, ok := prev[*list[i].ExpenseID]; ok {
			list[i].LocalID = id
		}
	}
	m.state.Expenses = list
	m.state.ErrorMessage = ""

	present := make(map[uuid.UUID]bool, len(list))
	for _, e := range list {
		present[e.LocalID] = true
	}
	for id := range m.selected {
		if !present[id] {
			delete(m.selected, id)
		}
	}
	return nil
}

// Select adds an expense to the selection.
func (m *HomeModel) Select(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected[id] = struct{}{}
}

// Deselect removes an expense from the selection.
func (m *HomeModel) Deselect(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.selected, id)
}

// Toggle flips selection and reports whether id is now selected.
func (m *HomeModel) Toggle(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.selected[id]; ok {
		delete(m.selected, id)
		return false
	}
	m.selected[id] = struct{}{}
	return true
}

func (m *HomeModel) IsSelected(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.selected[id]
	return ok
}

// SelectByExpenseID selects every listed expense whose server ID is in ids
// and returns how many were found.
func (m *HomeModel) SelectByExpenseID(ids ...int64) int {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.state.Expenses {
		if e.ExpenseID != nil && want[*e.ExpenseID] {
			m.selected[e.LocalID] = struct{}{}
			n++
		}
	}
	return n
}

// Selected returns the selected expenses in list order.
func (m *HomeModel) Selected() []core.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Expense
	for _, e := range m.state.Expenses {
		if _, ok := m.selected[e.LocalID]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (m *HomeModel) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = make(map[uuid.UUID]struct{})
}

// DeleteSelected deletes the selection in one request. The selection is
// cleared only after the delete succeeded.
func (m *HomeModel) DeleteSelected(ctx context.Context) error {
	sel := m.Selected()
	if len(sel) == 0 {
		return ErrNothingSelected
	}
	m.setLoading()
	_, err := m.svc.Delete(ctx, sel)
	m.finish(ActionDeleting, err)
	if err != nil {
		return err
	}
	m.ClearSelection()
	return nil
}

// SaveEdited submits a bulk edit: oldIDs are replaced by newExpenses.
func (m *HomeModel) SaveEdited(ctx context.Context, oldIDs []int64, newExpenses []core.Expense) error {
	m.setLoading()
	_, err := m.svc.Update(ctx, oldIDs, newExpenses)
	m.finish(ActionSaving, err)
	return err
}

// TotalSpent sums the listed amounts exactly.
func (m *HomeModel) TotalSpent() core.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.TotalSpent(m.state.Expenses)
}

// Summary aggregates the listed expenses.
func (m *HomeModel) Summary() core.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.Summarize(m.state.Expenses)
}

// Watch re-fetches on every change broadcast until ctx is done or the bus closes.
// onRefresh, when set, is called after each refresh attempt.
func (m *HomeModel) Watch(ctx context.Context, bus *events.Bus, onRefresh func(HomeState, error)) error {
	sub := bus.Subscribe(events.ExpensesChanged, events.ExpensesDeleted)
	defer sub.Close()

	for {
		e, ok := sub.Next(ctx)
		if !ok {
			return ctx.Err()
		}
		m.logger.DebugContext(ctx, "Refreshing after broadcast", log.FieldEvent, string(e))
		err := m.Refresh(ctx)
		if err != nil {
			m.logger.WarnContext(ctx, "Refresh after broadcast failed", log.FieldError, err)
		}
		if onRefresh != nil {
			onRefresh(m.State(), err)
		}
	}
}

func (m *HomeModel) setLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Loading = true
}

func (m *HomeModel) finish(action string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Loading = false
	m.state.ErrorMessage = UserMessage(action, err)
}
