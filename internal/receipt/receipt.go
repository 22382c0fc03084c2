// Package receipt turns scanned receipts into expenses and submits them.
package receipt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"expensinator/internal/core"
)

// DefaultCurrency is assumed when a scan reports none.
const DefaultCurrency = "EUR"

type (
	// LineItem is one purchased item as read from the receipt.
	LineItem struct {
		Name     string      `json:"name"`
		Quantity float64     `json:"quantity"`
		Price    core.Amount `json:"price"`
		Category string      `json:"category"`
	}

	// ScanResult is what a scanner extracted from a receipt image.
	ScanResult struct {
		Items    []LineItem `json:"items"`
		Date     *core.Date `json:"date,omitempty"`
		Currency string     `json:"currency,omitempty"`
	}

	// Image is the scanned picture, uploaded once when the receipt is confirmed.
	Image struct {
		Data        []byte
		ContentType string
	}
)

// Scanner extracts structured data from a receipt image.
type Scanner interface {
	Scan(ctx context.Context, img Image) (ScanResult, error)
}

// CurrencyOrDefault returns the scanned currency or DefaultCurrency.
func (r ScanResult) CurrencyOrDefault() string {
	if c := strings.TrimSpace(r.Currency); c != "" {
		return strings.ToUpper(c)
	}
	return DefaultCurrency
}

// DateOr returns the receipt date, or the day of now when the receipt has none.
func (r ScanResult) DateOr(now time.Time) core.Date {
	if r.Date != nil && !r.Date.IsZero() {
		return *r.Date
	}
	return core.DateOf(now)
}

// Description renders "<qty> x <name>" for quantities above one.
func (it LineItem) Description() string {
	if it.Quantity > 1 {
		return fmt.Sprintf("%d x %s", int64(it.Quantity), it.Name)
	}
	return it.Name
}

// ToExpenses maps each line item to one local expense. The amount is the
// item's unit price as scanned, and unmatched categories become
// core.UnknownCategoryID.
func ToExpenses(r ScanResult, userID int64, now time.Time) []core.Expense {
	date := r.DateOr(now)
	out := make([]core.Expense, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, core.NewExpense(
			userID,
			it.Price,
			core.LookupCategoryID(it.Category),
			it.Description(),
			date,
			now,
		))
	}
	return out
}
