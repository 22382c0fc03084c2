package core

import (
	"sort"
	"time"
)

// ChartWindow is the number of days covered by the spending series.
const ChartWindow = 7

type (
	// CategoryTotal is the amount spent in one category.
	CategoryTotal struct {
		CategoryID int64
		Name       string
		Total      Amount
		Count      int
	}

	// DailyTotal is the amount spent on one day.
	DailyTotal struct {
		Date  Date
		Total Amount
	}

	// Summary aggregates a list of expenses for display.
	Summary struct {
		Total      Amount
		Count      int
		ByCategory []CategoryTotal
		Daily      []DailyTotal
	}
)

// TotalSpent is the exact sum of all amounts.
func TotalSpent(expenses []Expense) Amount {
	var total Amount
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Summarize computes totals, per-category totals sorted by amount descending,
// and a daily series over the ChartWindow days ending at the latest expense date.
func Summarize(expenses []Expense) Summary {
	s := Summary{Total: TotalSpent(expenses), Count: len(expenses)}
	if len(expenses) == 0 {
		return s
	}

	byID := map[int64]*CategoryTotal{}
	var latest time.Time
	for _, e := range expenses {
		ct, ok := byID[e.CategoryID]
		if !ok {
			name, known := CategoryName(e.CategoryID)
			if !known {
				name = "Unknown"
			}
			ct = &CategoryTotal{CategoryID: e.CategoryID, Name: name}
			byID[e.CategoryID] = ct
		}
		ct.Total = ct.Total.Add(e.Amount)
		ct.Count++
		if e.Date.After(latest) {
			latest = e.Date.Time
		}
	}
	for _, ct := range byID {
		s.ByCategory = append(s.ByCategory, *ct)
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if c := s.ByCategory[i].Total.Cmp(s.ByCategory[j].Total); c != 0 {
			return c > 0
		}
		return s.ByCategory[i].CategoryID < s.ByCategory[j].CategoryID
	})

	if latest.IsZero() {
		return s
	}
	start := latest.AddDate(0, 0, -(ChartWindow - 1))
	days := make(map[string]*DailyTotal, ChartWindow)
	for d := start; !d.After(latest); d = d.AddDate(0, 0, 1) {
		dt := DailyTotal{Date: DateOf(d)}
		s.Daily = append(s.Daily, dt)
	}
	for i := range s.Daily {
		days[s.Daily[i].Date.String()] = &s.Daily[i]
	}
	for _, e := range expenses {
		if dt, ok := days[e.Date.String()]; ok {
			dt.Total = dt.Total.Add(e.Amount)
		}
	}
	return s
}
