package currency

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestConvert_Identity(t *testing.T) {
	rates := NewStaticRates()
	amount := decimal.RequireFromString("19.99")

	got, err := Convert(rates, amount, "USD", "USD")
	if err != nil {
		t.Fatalf("Convert() unexpected error: %v", err)
	}
	if !got.Equal(amount) {
		t.Errorf("Convert(identity) = %s, want %s", got, amount)
	}
}

func TestConvert_UnknownCurrency(t *testing.T) {
	rates := NewStaticRates()

	_, err := Convert(rates, decimal.NewFromInt(10), "USD", "XXX")
	if !errors.Is(err, ErrUnknownCurrency) {
		t.Errorf("Convert(USD->XXX) error = %v, want ErrUnknownCurrency", err)
	}

	_, err = Convert(rates, decimal.NewFromInt(10), "YYY", "USD")
	if !errors.Is(err, ErrUnknownCurrency) {
		t.Errorf("Convert(YYY->USD) error = %v, want ErrUnknownCurrency", err)
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	rates := NewStaticRates()
	amount := decimal.RequireFromString("123.45")

	there, err := Convert(rates, amount, "USD", "EUR")
	if err != nil {
		t.Fatalf("Convert(USD->EUR) unexpected error: %v", err)
	}
	back, err := Convert(rates, there, "EUR", "USD")
	if err != nil {
		t.Fatalf("Convert(EUR->USD) unexpected error: %v", err)
	}

	tolerance := decimal.RequireFromString("0.01")
	if back.Sub(amount).Abs().GreaterThan(tolerance) {
		t.Errorf("round trip = %s, want %s within %s", back, amount, tolerance)
	}
}

func TestConvert_CrossRate(t *testing.T) {
	rates := NewStaticRates().
		WithRate("AAA", decimal.NewFromInt(2)).
		WithRate("BBB", decimal.NewFromInt(4))

	got, err := Convert(rates, decimal.NewFromInt(10), "AAA", "BBB")
	if err != nil {
		t.Fatalf("Convert() unexpected error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Convert(10 AAA->BBB) = %s, want 20", got)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		code   string
		want   string
	}{
		{name: "usd prefix", amount: "9.9", code: "USD", want: "$9.90"},
		{name: "eur prefix", amount: "1250", code: "EUR", want: "€1250.00"},
		{name: "rub suffix", amount: "499", code: "RUB", want: "499.00 ₽"},
		{name: "unknown code falls back to code suffix", amount: "5", code: "XYZ", want: "5.00 XYZ"},
		{name: "zero amount", amount: "0", code: "USD", want: "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(decimal.RequireFromString(tt.amount), tt.code)
			if got != tt.want {
				t.Errorf("Format(%s, %s) = %q, want %q", tt.amount, tt.code, got, tt.want)
			}
		})
	}
}

func TestRound(t *testing.T) {
	got := Round(decimal.RequireFromString("10.005"))
	if got.String() != "10.01" {
		t.Errorf("Round(10.005) = %s, want 10.01", got)
	}
}
