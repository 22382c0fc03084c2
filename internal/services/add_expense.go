package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"expensinator/internal/core"
)

// AddExpenseForm is raw user input for a single new expense.
type AddExpenseForm struct {
	UserID      int64
	Amount      string
	Description string
	CategoryID  int64
	// Date defaults to today when zero.
	Date       core.Date
	ReceiptURL string
}

// Build validates the form and produces the expense to send. The category
// must be one of the known categories.
func (f AddExpenseForm) Build(now time.Time) (core.Expense, error) {
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Expense{}, &core.InvalidInputError{Field: "amount", Err: err}
	}
	if _, ok := core.CategoryName(f.CategoryID); !ok {
		return core.Expense{}, &core.InvalidInputError{
			Field: "category",
			Err:   fmt.Errorf("%w: %d", core.ErrUnknownCategory, f.CategoryID),
		}
	}
	date := f.Date
	if date.IsZero() {
		date = core.DateOf(now)
	}

	e := core.NewExpense(f.UserID, amount, f.CategoryID, strings.TrimSpace(f.Description), date, now)
	if url := strings.TrimSpace(f.ReceiptURL); url != "" {
		e.ReceiptURL = core.String(url)
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// SubmitExpense builds the form and adds the result. Invalid input never
// reaches the network.
func (s *ExpenseService) SubmitExpense(ctx context.Context, f AddExpenseForm, now time.Time) (core.Expense, string, error) {
	e, err := f.Build(now)
	if err != nil {
		return core.Expense{}, "", err
	}
	msg, err := s.Add(ctx, e)
	if err != nil {
		return core.Expense{}, "", err
	}
	return e, msg, nil
}
