package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0", "0.00", true},
		{"1", "1.00", true},
		{"1.2", "1.20", true},
		{"1,23", "1.23", true},
		{" 100.00 ", "100.00", true},
		{"1.005", "1.005", true},
		{"12.3456", "12.3456", true},
		{"", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if c.ok && err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", c.in, err)
		}
		if !c.ok {
			if err == nil {
				t.Fatalf("ParseAmount(%q) expected error", c.in)
			}
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("ParseAmount(%q) error %v does not wrap ErrInvalidAmount", c.in, err)
			}
			continue
		}
		if got.String() != c.want {
			t.Fatalf("ParseAmount(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestAmountJSON(t *testing.T) {
	a, err := ParseAmount("3.50")
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"3.50"` {
		t.Fatalf("marshal = %s, want \"3.50\"", b)
	}

	var back Amount
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(a) {
		t.Fatalf("round trip = %s, want %s", back, a)
	}
}

func TestAmountUnmarshalAcceptsNumbers(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`12.1`), &a); err != nil {
		t.Fatalf("number: %v", err)
	}
	if a.String() != "12.10" {
		t.Fatalf("got %s", a)
	}
	for _, bad := range []string{`"x"`, `null`, `true`, `""`} {
		if err := json.Unmarshal([]byte(bad), &a); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

func TestAmountAddIsExact(t *testing.T) {
	total := Amount{}
	for i := 0; i < 10; i++ {
		p, _ := ParseAmount("0.10")
		total = total.Add(p)
	}
	one, _ := ParseAmount("1")
	if !total.Equal(one) {
		t.Fatalf("0.10 * 10 = %s, want 1.00", total)
	}
}
