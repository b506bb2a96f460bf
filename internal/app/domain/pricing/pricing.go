// Package pricing computes price breakdowns from cart snapshots.
//
// All arithmetic is carried at full float64 precision; rounding to currency
// precision happens only when values are formatted for display.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cardwise/commerce_layer/internal/app/domain/cart"
)

// DefaultTaxRate is the New Jersey sales tax rate used when no rate is
// configured.
const DefaultTaxRate = 0.06625

// ErrMalformedPrice indicates a price string that did not parse to a finite,
// non-negative number. Callers treat the line as contributing zero and log;
// display must not fail on bad data.
var ErrMalformedPrice = errors.New("malformed price string")

// ParsePrice parses a display price string such as "$1,299.99" to a float.
// Every character except digits, '.' and '-' is stripped before parsing.
func ParsePrice(raw string) (float64, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPrice, raw)
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPrice, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPrice, raw)
	}
	return v, nil
}

// Breakdown is the derived price summary for a cart snapshot. It is
// recomputed on every request, never stored.
type Breakdown struct {
	Subtotal  float64 `json:"subtotal"`
	TaxRate   float64 `json:"tax_rate"`
	TaxAmount float64 `json:"tax_amount"`
	Total     float64 `json:"total"`
}

// Subtotal sums parsed price times quantity over the snapshot. Lines with
// malformed prices contribute zero; their errors are returned alongside the
// subtotal so callers can log them without failing the computation.
func Subtotal(snap cart.Snapshot) (float64, []error) {
	var sum float64
	var errs []error
	for _, line := range snap.Lines {
		price, err := ParsePrice(line.ProductPrice)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %s: %w", line.ProductKey, err))
			continue
		}
		sum += price * float64(line.Quantity)
	}
	return sum, errs
}

// Tax computes the tax amount for a subtotal at the given rate.
func Tax(subtotal, rate float64) float64 {
	return subtotal * rate
}

// Total computes the grand total from subtotal and tax.
func Total(subtotal, tax float64) float64 {
	return subtotal + tax
}

// Compute derives the full breakdown for a snapshot at the given tax rate.
// A rate <= 0 falls back to DefaultTaxRate.
func Compute(snap cart.Snapshot, rate float64) (Breakdown, []error) {
	if rate <= 0 {
		rate = DefaultTaxRate
	}
	subtotal, errs := Subtotal(snap)
	tax := Tax(subtotal, rate)
	return Breakdown{
		Subtotal:  subtotal,
		TaxRate:   rate,
		TaxAmount: tax,
		Total:     Total(subtotal, tax),
	}, errs
}

// FormatCurrency renders a value as a dollar display string rounded to two
// decimals. This is the only place rounding happens.
func FormatCurrency(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// DisplayBreakdown is the breakdown formatted for display.
type DisplayBreakdown struct {
	Subtotal  string `json:"subtotal"`
	TaxRate   string `json:"tax_rate"`
	TaxAmount string `json:"tax_amount"`
	Total     string `json:"total"`
}

// Display formats the breakdown as currency strings.
func (b Breakdown) Display() DisplayBreakdown {
	return DisplayBreakdown{
		Subtotal:  FormatCurrency(b.Subtotal),
		TaxRate:   fmt.Sprintf("%.3f%%", b.TaxRate*100),
		TaxAmount: FormatCurrency(b.TaxAmount),
		Total:     FormatCurrency(b.Total),
	}
}
