package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/cardwise/commerce_layer/internal/app/domain/cart"
)

const epsilon = 1e-9

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"$10.00", 10.0},
		{"$1,299.99", 1299.99},
		{"USD 42", 42},
		{"0.99", 0.99},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if err != nil {
			t.Fatalf("ParsePrice(%q): %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > epsilon {
			t.Fatalf("ParsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParsePriceMalformed(t *testing.T) {
	for _, in := range []string{"", "free", "$-5.00", "1.2.3", "--"} {
		if _, err := ParsePrice(in); !errors.Is(err, ErrMalformedPrice) {
			t.Fatalf("ParsePrice(%q): expected ErrMalformedPrice, got %v", in, err)
		}
	}
}

func TestComputeBreakdown(t *testing.T) {
	snap := cart.Snapshot{Lines: []cart.LineItem{
		{ProductKey: "a", ProductPrice: "$10.00", Quantity: 2},
		{ProductKey: "b", ProductPrice: "$5.00", Quantity: 1},
	}}

	b, errs := Compute(snap, DefaultTaxRate)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if math.Abs(b.Subtotal-25.00) > epsilon {
		t.Fatalf("subtotal = %v, want 25.00", b.Subtotal)
	}
	if math.Abs(b.TaxAmount-25.00*0.06625) > epsilon {
		t.Fatalf("tax = %v, want %v", b.TaxAmount, 25.00*0.06625)
	}
	if math.Abs(b.Total-(25.00+25.00*0.06625)) > epsilon {
		t.Fatalf("total = %v", b.Total)
	}
}

func TestComputeMalformedLineContributesZero(t *testing.T) {
	snap := cart.Snapshot{Lines: []cart.LineItem{
		{ProductKey: "good", ProductPrice: "$4.00", Quantity: 1},
		{ProductKey: "bad", ProductPrice: "call us", Quantity: 3},
	}}

	b, errs := Compute(snap, DefaultTaxRate)
	if len(errs) != 1 {
		t.Fatalf("expected 1 parse error, got %d", len(errs))
	}
	if math.Abs(b.Subtotal-4.00) > epsilon {
		t.Fatalf("subtotal = %v, want 4.00", b.Subtotal)
	}
}

func TestComputeDefaultsRate(t *testing.T) {
	snap := cart.Snapshot{Lines: []cart.LineItem{
		{ProductKey: "a", ProductPrice: "$100.00", Quantity: 1},
	}}

	b, _ := Compute(snap, 0)
	if b.TaxRate != DefaultTaxRate {
		t.Fatalf("tax rate = %v, want default", b.TaxRate)
	}
}

func TestSubtotalInvariantUnderAddOrder(t *testing.T) {
	adds := []cart.LineItem{
		{ProductKey: "Headphones", ProductPrice: "$10.00"},
		{ProductKey: "Headphones", ProductPrice: "$10.00"},
		{ProductKey: "Charger", ProductPrice: "$5.00"},
	}
	orders := [][]int{
		{0, 1, 2},
		{0, 2, 1},
		{2, 0, 1},
		{1, 2, 0},
		{2, 1, 0},
	}

	for _, order := range orders {
		c := cart.New("s1")
		for _, i := range order {
			c.AddItem(adds[i])
		}

		b, errs := Compute(c.Snapshot(), DefaultTaxRate)
		if len(errs) != 0 {
			t.Fatalf("order %v: errs = %v", order, errs)
		}
		if math.Abs(b.Subtotal-25.00) > epsilon {
			t.Fatalf("order %v: subtotal = %v, want 25.00", order, b.Subtotal)
		}
		if math.Abs(b.Total-26.65625) > epsilon {
			t.Fatalf("order %v: total = %v", order, b.Total)
		}
	}
}

func TestFormatCurrencyRoundsOnlyAtDisplay(t *testing.T) {
	if got := FormatCurrency(26.65625); got != "$26.66" {
		t.Fatalf("FormatCurrency = %q, want $26.66", got)
	}
	if got := FormatCurrency(0); got != "$0.00" {
		t.Fatalf("FormatCurrency = %q, want $0.00", got)
	}
}

func TestDisplayBreakdown(t *testing.T) {
	b := Breakdown{Subtotal: 25, TaxRate: DefaultTaxRate, TaxAmount: 1.65625, Total: 26.65625}
	d := b.Display()

	if d.Subtotal != "$25.00" || d.TaxAmount != "$1.66" || d.Total != "$26.66" {
		t.Fatalf("display = %+v", d)
	}
}
