package sheets

import (
	"context"

	"expensinator/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseExporter appends confirmed expenses to an external sheet and
	// returns how many rows were written.
	ExpenseExporter interface {
		Export(ctx context.Context, expenses []core.Expense) (int, error)
	}

	// CategoryNamer resolves a category ID for display.
	CategoryNamer interface {
		Name(ctx context.Context, id int64) string
	}
)

// Header is the first row of an empty export sheet.
var Header = []any{"Date", "Description", "Category", "Amount", "Receipt", "Expense ID"}

// Rows renders expenses in Header order. Amounts are plain decimal strings so
// the sheet parses them as numbers with USER_ENTERED input.
func Rows(ctx context.Context, namer CategoryNamer, expenses []core.Expense) [][]any {
	out := make([][]any, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, []any{
			e.Date.String(),
			e.Description,
			categoryName(ctx, namer, e.CategoryID),
			e.Amount.String(),
			e.Receipt(),
			e.ID(),
		})
	}
	return out
}

func categoryName(ctx context.Context, namer CategoryNamer, id int64) string {
	if namer != nil {
		return namer.Name(ctx, id)
	}
	if name, ok := core.CategoryName(id); ok {
		return name
	}
	return "Unknown"
}
