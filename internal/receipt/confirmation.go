package receipt

import (
	"time"

	"expensinator/internal/core"
)

// Confirmation is the review step between scanning and saving. The user may
// change the date, the currency and any of the proposed expenses.
type Confirmation struct {
	Scan     ScanResult
	Image    Image
	Date     core.Date
	Currency string
	Expenses []core.Expense

	original []core.Expense
	scanDate core.Date
}

// NewConfirmation seeds the review from a scan result.
func NewConfirmation(scan ScanResult, img Image, userID int64, now time.Time) *Confirmation {
	proposed := ToExpenses(scan, userID, now)
	c := &Confirmation{
		Scan:     scan,
		Image:    img,
		original: proposed,
		scanDate: scan.DateOr(now),
	}
	c.Reset()
	return c
}

// State is the persistable form of a Confirmation.
type State struct {
	Scan     ScanResult
	Image    Image
	ScanDate core.Date
	Date     core.Date
	Currency string
	Expenses []core.Expense
	Original []core.Expense
}

// State snapshots the confirmation.
func (c *Confirmation) State() State {
	return State{
		Scan:     c.Scan,
		Image:    c.Image,
		ScanDate: c.scanDate,
		Date:     c.Date,
		Currency: c.Currency,
		Expenses: append([]core.Expense(nil), c.Expenses...),
		Original: c.Original(),
	}
}

// Restore rebuilds a confirmation from saved state.
func Restore(s State) *Confirmation {
	return &Confirmation{
		Scan:     s.Scan,
		Image:    s.Image,
		Date:     s.Date,
		Currency: s.Currency,
		Expenses: append([]core.Expense(nil), s.Expenses...),
		original: append([]core.Expense(nil), s.Original...),
		scanDate: s.ScanDate,
	}
}

// Original returns the expenses proposed by the scan.
func (c *Confirmation) Original() []core.Expense {
	return append([]core.Expense(nil), c.original...)
}

// IsEdited reports whether the user changed the date or any expense.
func (c *Confirmation) IsEdited() bool {
	if !c.Date.Equal(c.scanDate.Time) || len(c.Expenses) != len(c.original) {
		return true
	}
	for i := range c.Expenses {
		if !sameExpense(c.Expenses[i], c.original[i]) {
			return true
		}
	}
	return false
}

// Reset discards all edits.
func (c *Confirmation) Reset() {
	c.Expenses = append([]core.Expense(nil), c.original...)
	c.Date = c.scanDate
	c.Currency = c.Scan.CurrencyOrDefault()
}

// Prepared returns the expenses to submit: every one carries the confirmed
// date and the receipt URL.
func (c *Confirmation) Prepared(receiptURL string) []core.Expense {
	out := make([]core.Expense, len(c.Expenses))
	for i, e := range c.Expenses {
		e.Date = c.Date
		e.ReceiptURL = core.String(receiptURL)
		out[i] = e
	}
	return out
}

func sameExpense(a, b core.Expense) bool {
	return a.Description == b.Description &&
		a.Amount.Equal(b.Amount) &&
		a.CategoryID == b.CategoryID &&
		a.UserID == b.UserID &&
		a.Date.Equal(b.Date.Time) &&
		a.Receipt() == b.Receipt()
}
