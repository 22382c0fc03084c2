package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustAmount(t *testing.T, s string) Amount {
	t.Helper()
	a, err := ParseAmount(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return a
}

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		UserID:      1,
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      mustAmount(t, "1.00"),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		field  string
		mutate func(*Expense)
	}{
		{"description", func(e *Expense) { e.Description = "  " }},
		{"amount", func(e *Expense) { e.Amount = Amount{} }},
		{"amount", func(e *Expense) { e.Amount = mustAmount(t, "-1") }},
		{"user", func(e *Expense) { e.UserID = 0 }},
		{"date", func(e *Expense) { e.Date = Date{} }},
	}
	for i, c := range cases {
		e := good
		c.mutate(&e)
		err := e.Validate()
		var inv *InvalidInputError
		if !errors.As(err, &inv) {
			t.Fatalf("case %d expected InvalidInputError, got %v", i, err)
		}
		if inv.Field != c.field {
			t.Fatalf("case %d field = %q, want %q", i, inv.Field, c.field)
		}
	}
}

func TestExpenseJSONWireFormat(t *testing.T) {
	e := Expense{
		LocalID:     uuid.New(),
		UserID:      1,
		Amount:      mustAmount(t, "100.00"),
		CategoryID:  LookupCategoryID("Rent"),
		Description: "November rent",
		Date:        NewDate(2024, 11, 1),
		CreatedAt:   NewTimestamp(time.Date(2024, 11, 1, 9, 30, 15, 999, time.UTC)),
	}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	if e.CategoryID != 20 {
		t.Fatalf("Rent resolved to %d", e.CategoryID)
	}
	body := string(b)
	for _, want := range []string{
		`"amount":"100.00"`,
		`"categoryId":20`,
		`"date":"2024-11-01"`,
		`"createdAt":"2024-11-01 09:30:15"`,
		`"userId":1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
	for _, absent := range []string{"expenseId", "receiptUrl", "LocalID"} {
		if strings.Contains(body, absent) {
			t.Errorf("body %s should not contain %s", body, absent)
		}
	}
}

func TestExpenseJSONRoundTrip(t *testing.T) {
	in := `{"expenseId":7,"userId":1,"amount":"19.99","categoryId":8,"description":"Lunch",` +
		`"receiptUrl":"https://blob/r.png","date":"2024-12-03","createdAt":"2024-12-03 12:00:00"}`
	var e Expense
	if err := json.Unmarshal([]byte(in), &e); err != nil {
		t.Fatal(err)
	}
	if e.ID() != 7 || !e.Confirmed() {
		t.Fatalf("expense id = %d", e.ID())
	}
	if e.Amount.String() != "19.99" {
		t.Fatalf("amount = %s", e.Amount)
	}
	if e.Receipt() != "https://blob/r.png" {
		t.Fatalf("receipt = %s", e.Receipt())
	}
	if e.LocalID != uuid.Nil {
		t.Fatalf("local id must not be decoded")
	}
	e.EnsureLocalID()
	if e.LocalID == uuid.Nil {
		t.Fatalf("EnsureLocalID did not assign an id")
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var again Expense
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatal(err)
	}
	if !again.Amount.Equal(e.Amount) || again.Date.String() != "2024-12-03" || !again.CreatedAt.Equal(e.CreatedAt.Time) {
		t.Fatalf("round trip mismatch: %+v vs %+v", again, e)
	}
}

func TestExpenseJSONRejectsBadDates(t *testing.T) {
	for _, in := range []string{
		`{"userId":1,"amount":"1","categoryId":1,"description":"x","date":"01/11/2024","createdAt":"2024-11-01 00:00:00"}`,
		`{"userId":1,"amount":"1","categoryId":1,"description":"x","date":"2024-11-01","createdAt":"2024-11-01T00:00:00Z"}`,
	} {
		var e Expense
		if err := json.Unmarshal([]byte(in), &e); err == nil {
			t.Fatalf("expected error for %s", in)
		}
	}

	for _, in := range []string{
		`{"expenseId":7,"userId":1,"categoryId":8,"description":"x","date":"2024-11-01","createdAt":"2024-11-01 00:00:00"}`,
		`{"expenseId":7,"userId":1,"amount":"1","categoryId":8,"description":"x","createdAt":"2024-11-01 00:00:00"}`,
		`{"expenseId":7,"userId":1,"amount":"1","categoryId":8,"description":"x","date":"2024-11-01"}`,
	} {
		var list []Expense
		err := json.Unmarshal([]byte("["+in+"]"), &list)
		if !errors.Is(err, ErrMissingField) {
			t.Fatalf("expected ErrMissingField for %s, got %v", in, err)
		}
	}
}

func TestCategoryRequiresName(t *testing.T) {
	var c Category
	if err := json.Unmarshal([]byte(`{"categoryId":3,"name":"Food"}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.ID() != 3 || c.Name != "Food" {
		t.Fatalf("unexpected category %+v", c)
	}
	if err := json.Unmarshal([]byte(`{"categoryId":3,"name":" "}`), &c); !errors.Is(err, ErrEmptyCategoryName) {
		t.Fatalf("expected ErrEmptyCategoryName, got %v", err)
	}
}

func TestIDsSkipsLocalExpenses(t *testing.T) {
	ids := IDs([]Expense{{ExpenseID: Int64(4)}, {}, {ExpenseID: Int64(9)}})
	if len(ids) != 2 || ids[0] != 4 || ids[1] != 9 {
		t.Fatalf("ids = %v", ids)
	}
}
