package core

import "testing"

func TestLocaleFormat(t *testing.T) {
	def := DefaultLocale()
	usd := Locale{Symbol: "US$", ThousandsSep: ",", DecimalSep: ".", Decimals: 2}
	cases := []struct {
		loc  Locale
		in   Money
		want string
	}{
		{def, Units(12500), "$ 12.500"},
		{def, Money{Cents: 1250050}, "$ 12.501"},
		{def, Units(-5430), "$ -5.430"},
		{def, Units(0), "$ 0"},
		{def, Units(999), "$ 999"},
		{def, Units(1234567), "$ 1.234.567"},
		{def, Money{Cents: -40}, "$ 0"},
		{usd, Money{Cents: 1250050}, "US$ 12,500.50"},
		{usd, Money{Cents: -5}, "US$ -0.05"},
		{Locale{DecimalSep: ",", Decimals: 1}, Money{Cents: 1234}, "12,3"},
	}
	for _, tc := range cases {
		if got := tc.loc.Format(tc.in); got != tc.want {
			t.Fatalf("Format(%d) = %q, want %q", tc.in.Cents, got, tc.want)
		}
	}
}

func TestLocaleRoundTripInput(t *testing.T) {
	loc := Locale{Symbol: "$", ThousandsSep: ".", DecimalSep: ",", Decimals: 2}
	m := Money{Cents: -123456789}
	back, err := ParseAmount(loc.FormatInput(m), loc)
	if err != nil || back != m {
		t.Fatalf("expected %d, got %d (err=%v)", m.Cents, back.Cents, err)
	}
}

func TestLocaleValidate(t *testing.T) {
	if err := DefaultLocale().Validate(); err != nil {
		t.Fatalf("default locale invalid: %v", err)
	}
	bad := []Locale{
		{DecimalSep: ",", ThousandsSep: ",", Decimals: 0},
		{DecimalSep: ",", Decimals: 3},
		{DecimalSep: "", Decimals: 0},
		{DecimalSep: "1", Decimals: 0},
	}
	for i, l := range bad {
		if err := l.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
