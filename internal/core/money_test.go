package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	loc := DefaultLocale()
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1,5", 150, true},
		{"1,23", 123, true},
		{"1.234", 123400, true},
		{"$ 15.000", 1500000, true},
		{"-500", -50000, true},
		{" 2,50 ", 250, true},
		{"0,005", 1, true}, // half away from zero
		{"-0,005", -1, true},
		{"abc", 0, false},
		{"1,2,3", 0, false},
		{"", 0, false},
		{"-", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in, loc)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseAmountDotDecimalLocale(t *testing.T) {
	loc := Locale{Symbol: "€", ThousandsSep: ",", DecimalSep: ".", Decimals: 2}
	got, err := ParseAmount("€1,234.56", loc)
	if err != nil || got.Cents != 123456 {
		t.Fatalf("expected 123456, got %d (err=%v)", got.Cents, err)
	}
}

func TestParsePositiveAmount(t *testing.T) {
	if _, err := ParsePositiveAmount("0", DefaultLocale()); err == nil {
		t.Fatalf("expected error for zero")
	}
	if _, err := ParsePositiveAmount("-3", DefaultLocale()); err == nil {
		t.Fatalf("expected error for negative")
	}
	if m, err := ParsePositiveAmount("3", DefaultLocale()); err != nil || m.Cents != 300 {
		t.Fatalf("expected 300, got %d (err=%v)", m.Cents, err)
	}
}

func TestMoneyFromDecimal(t *testing.T) {
	cases := map[string]int64{
		"12.345":  1235,
		"-12.345": -1235,
		"12.344":  1234,
		"1000":    100000,
	}
	for in, want := range cases {
		if got := MoneyFromDecimal(decimal.RequireFromString(in)); got.Cents != want {
			t.Fatalf("%s: expected %d, got %d", in, want, got.Cents)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 1500, "b": "-20.50", "c": null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A.Cents != 150000 || payload.B.Cents != -2050 || payload.C.Cents != 0 {
		t.Fatalf("unexpected values %+v", payload)
	}

	out, err := json.Marshal(map[string]Money{"amount": {Cents: -2050}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":-20.50}` {
		t.Fatalf("unexpected json %s", out)
	}

	var bad Money
	if err := json.Unmarshal([]byte(`"twelve"`), &bad); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}
