package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	// Expense is a single spending record as exchanged with the cloud functions.
	// LocalID never leaves the process; it keys selection and list diffing.
	Expense struct {
		LocalID     uuid.UUID `json:"-"`
		ExpenseID   *int64    `json:"expenseId,omitempty"`
		UserID      int64     `json:"userId"`
		Amount      Amount    `json:"amount"`
		CategoryID  int64     `json:"categoryId"`
		Description string    `json:"description"`
		ReceiptURL  *string   `json:"receiptUrl,omitempty"`
		Date        Date      `json:"date"`
		CreatedAt   Timestamp `json:"createdAt"`
	}

	// Category is a named spending category served by the remote service.
	Category struct {
		CategoryID *int64 `json:"categoryId,omitempty"`
		Name       string `json:"name"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrInvalidUser       = errors.New("invalid user id")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyCategoryName = errors.New("empty category name")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrMissingField      = errors.New("missing required field")
)

// InvalidInputError reports a locally detected problem with user input.
// It is the only error kind whose message is shown to the user verbatim.
type InvalidInputError struct {
	Field string
	Err   error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &InvalidInputError{Field: field, Err: err}
}

// NewExpense builds a not-yet-confirmed expense with a fresh local identity.
func NewExpense(userID int64, amount Amount, categoryID int64, description string, date Date, now time.Time) Expense {
	return Expense{
		LocalID:     uuid.New(),
		UserID:      userID,
		Amount:      amount,
		CategoryID:  categoryID,
		Description: description,
		Date:        date,
		CreatedAt:   NewTimestamp(now),
	}
}

// EnsureLocalID assigns a local identity to records decoded from the wire.
func (e *Expense) EnsureLocalID() {
	if e.LocalID == uuid.Nil {
		e.LocalID = uuid.New()
	}
}

// Confirmed reports whether the server has assigned an ID.
func (e Expense) Confirmed() bool {
	return e.ExpenseID != nil
}

// ID returns the server ID, or 0 for local expenses.
func (e Expense) ID() int64 {
	if e.ExpenseID == nil {
		return 0
	}
	return *e.ExpenseID
}

// Receipt returns the receipt URL or an empty string.
func (e Expense) Receipt() string {
	if e.ReceiptURL == nil {
		return ""
	}
	return *e.ReceiptURL
}

// Validate checks the fields a user can get wrong before anything is sent.
// Category 0 is accepted: it is the "unknown" category.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return invalid("description", ErrEmptyDescription)
	}
	if !e.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if e.UserID <= 0 {
		return invalid("user", ErrInvalidUser)
	}
	if err := e.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	return nil
}

// UnmarshalJSON requires amount, date and createdAt to be present.
func (e *Expense) UnmarshalJSON(data []byte) error {
	type alias Expense
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, key := range []string{"amount", "date", "createdAt"} {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}
	*e = Expense(a)
	return nil
}

// UnmarshalJSON rejects categories without a name.
func (c *Category) UnmarshalJSON(data []byte) error {
	type alias Category
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyCategoryName
	}
	*c = Category(a)
	return nil
}

// ID returns the category ID, or UnknownCategoryID when absent.
func (c Category) ID() int64 {
	if c.CategoryID == nil {
		return UnknownCategoryID
	}
	return *c.CategoryID
}

// IDs collects server IDs, skipping expenses that were never confirmed.
func IDs(expenses []Expense) []int64 {
	ids := make([]int64, 0, len(expenses))
	for _, e := range expenses {
		if e.ExpenseID != nil {
			ids = append(ids, *e.ExpenseID)
		}
	}
	return ids
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
