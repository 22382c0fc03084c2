package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"expensinator/internal/core"
	"expensinator/internal/storage"
)

func printExpenses(ctx context.Context, a *app, out io.Writer, expenses []core.Expense) {
	if len(expenses) == 0 {
		fmt.Fprintln(out, "No expenses.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tDESCRIPTION\tCATEGORY\tAMOUNT\tRECEIPT")
	for _, e := range expenses {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID(), e.Date, e.Description, a.categories.Name(ctx, e.CategoryID), e.Amount, e.Receipt())
	}
	w.Flush()
}

func printSummary(out io.Writer, s core.Summary) {
	fmt.Fprintf(out, "\nTotal spent: %s (%d expenses)\n", s.Total, s.Count)
	if len(s.ByCategory) > 0 {
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\nCATEGORY\tTOTAL\tCOUNT")
		for _, c := range s.ByCategory {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.Name, c.Total, c.Count)
		}
		w.Flush()
	}
	if len(s.Daily) > 0 {
		fmt.Fprintln(out, "\nLast 7 days:")
		for _, d := range s.Daily {
			fmt.Fprintf(out, "  %s  %s\n", d.Date, d.Total)
		}
	}
}

// printDraft works offline, so categories come from the built-in map.
func printDraft(out io.Writer, d storage.Draft) {
	c := d.Confirmation()
	fmt.Fprintf(out, "Draft %s  date %s  currency %s", d.ID, c.Date, c.Currency)
	if c.IsEdited() {
		fmt.Fprint(out, "  (edited)")
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDESCRIPTION\tCATEGORY\tAMOUNT")
	for i, e := range c.Expenses {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, e.Description, localCategoryName(e.CategoryID), e.Amount)
	}
	w.Flush()
	fmt.Fprintf(out, "Total: %s %s\n", core.TotalSpent(c.Expenses), c.Currency)
}

func localCategoryName(id int64) string {
	if name, ok := core.CategoryName(id); ok {
		return name
	}
	return "Unknown"
}
