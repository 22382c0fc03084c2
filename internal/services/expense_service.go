package services

import (
	"context"
	"fmt"

	"expensinator/internal/core"
	"expensinator/internal/events"
	"expensinator/internal/log"
)

// ExpenseAPI is the remote expense service.
type ExpenseAPI interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	AddExpense(ctx context.Context, e core.Expense) (string, error)
	UpdateExpenses(ctx context.Context, oldIDs []int64, newExpenses []core.Expense) (string, error)
	DeleteExpenses(ctx context.Context, expenses []core.Expense) (string, error)
}

// ExpenseService runs mutations against the remote service and broadcasts
// each one that succeeds. Failed calls broadcast nothing.
type ExpenseService struct {
	api    ExpenseAPI
	bus    events.Publisher
	logger *log.Logger
}

func NewExpenseService(api ExpenseAPI, bus events.Publisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		api:    api,
		bus:    bus,
		logger: logger.WithComponent(log.ComponentExpense),
	}
}

// List fetches the server list, which is the source of truth.
func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	list, err := s.api.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

// Add creates one expense and broadcasts ExpensesChanged.
func (s *ExpenseService) Add(ctx context.Context, e core.Expense) (string, error) {
	msg, err := s.api.AddExpense(ctx, e)
	if err != nil {
		s.logFailure(ctx, log.OpAddExpense, err)
		return "", fmt.Errorf("add expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense added",
		log.NewFields().
			WithOperation(log.OpAddExpense).
			WithExpense(e.ID(), e.Description, e.Amount.String(), e.CategoryID).
			ToSlice()...)
	s.publish(events.ExpensesChanged)
	return msg, nil
}

// Update replaces oldIDs with newExpenses in one request and broadcasts
// ExpensesChanged.
func (s *ExpenseService) Update(ctx context.Context, oldIDs []int64, newExpenses []core.Expense) (string, error) {
	msg, err := s.api.UpdateExpenses(ctx, oldIDs, newExpenses)
	if err != nil {
		s.logFailure(ctx, log.OpUpdateExpenses, err)
		return "", fmt.Errorf("update expenses: %w", err)
	}

	s.logger.InfoContext(ctx, "Expenses updated",
		log.FieldOperation, log.OpUpdateExpenses,
		"old_count", len(oldIDs),
		"new_count", len(newExpenses))
	s.publish(events.ExpensesChanged)
	return msg, nil
}

// Delete removes expenses and broadcasts ExpensesDeleted.
func (s *ExpenseService) Delete(ctx context.Context, expenses []core.Expense) (string, error) {
	msg, err := s.api.DeleteExpenses(ctx, expenses)
	if err != nil {
		s.logFailure(ctx, log.OpDeleteExpenses, err)
		return "", fmt.Errorf("delete expenses: %w", err)
	}

	s.logger.InfoContext(ctx, "Expenses deleted",
		log.FieldOperation, log.OpDeleteExpenses,
		log.FieldCount, len(expenses))
	s.publish(events.ExpensesDeleted)
	return msg, nil
}

func (s *ExpenseService) publish(e events.Event) {
	if s.bus == nil {
		s.logger.Warn("No event bus configured, skipping broadcast", log.FieldEvent, string(e))
		return
	}
	s.bus.Publish(e)
}

func (s *ExpenseService) logFailure(ctx context.Context, op string, err error) {
	s.logger.ErrorContext(ctx, "Remote operation failed",
		log.NewFields().
			WithOperation(op).
			WithErrorType(ErrorType(err)).
			WithError(err).
			ToSlice()...)
}
