package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bidflow/internal/domain"
	"bidflow/internal/jsonrepair"
)

// centTolerance is the largest difference treated as rounding.
var centTolerance = decimal.RequireFromString("0.01")

// mathCheck compares a stated figure with the one computed from other fields.
type mathCheck struct {
	field    string
	expected decimal.Decimal
	actual   decimal.Decimal
}

func (c mathCheck) passed() bool {
	return c.expected.Sub(c.actual).Abs().LessThanOrEqual(centTolerance)
}

func (c mathCheck) message() string {
	return fmt.Sprintf("%s calculation mismatch (expected %s, got %s)", c.field, c.expected.StringFixed(2), c.actual.StringFixed(2))
}

// reconcile fills subtotal, tax and total from the payload and the line
// items, and records arithmetic mismatches as warnings. A total the model did
// not state is the line-item sum.
func reconcile(data *domain.ParsedInvoiceData, p map[string]any) {
	sum := decimal.Zero
	for _, it := range data.LineItems {
		sum = sum.Add(decimal.NewFromFloat(it.Amount))
	}
	sum = sum.Round(2)

	subtotal, subtotalStated := money(field(p, "subtotal", "subTotal", "sub_total"))
	if !subtotalStated {
		subtotal = sum
	}
	tax, _ := money(field(p, "tax", "taxAmount", "tax_amount", "salesTax", "sales_tax"))
	total, totalStated := money(field(p, "total", "grandTotal", "grand_total", "totalAmount", "total_amount"))
	if !totalStated {
		total = sum
		data.TotalComputed = true
	}

	data.Subtotal = subtotal.InexactFloat64()
	data.Tax = tax.InexactFloat64()
	data.Total = total.InexactFloat64()

	if len(data.LineItems) == 0 {
		data.Warnings = append(data.Warnings, "no line items found")
		return
	}

	for i, it := range data.LineItems {
		if it.AmountDerived || it.Quantity == nil || it.UnitPrice == nil {
			continue
		}
		c := mathCheck{
			field:    fmt.Sprintf("line %d (%s) amount", i+1, it.Description),
			expected: decimal.NewFromFloat(*it.Quantity).Mul(decimal.NewFromFloat(*it.UnitPrice)).Round(2),
			actual:   decimal.NewFromFloat(it.Amount),
		}
		if !c.passed() {
			data.Warnings = append(data.Warnings, c.message())
		}
	}

	if subtotalStated {
		if c := (mathCheck{field: "subtotal", expected: sum, actual: subtotal}); !c.passed() {
			data.Warnings = append(data.Warnings, c.message())
		}
	}
	if totalStated {
		bySum := mathCheck{field: "total", expected: sum, actual: total}
		byTax := mathCheck{field: "total", expected: subtotal.Add(tax), actual: total}
		if !bySum.passed() && !byTax.passed() {
			data.Warnings = append(data.Warnings, fmt.Sprintf(
				"stated total %s matches neither the line-item sum %s nor subtotal plus tax %s",
				total.StringFixed(2), sum.StringFixed(2), subtotal.Add(tax).StringFixed(2)))
		}
	}
}

func money(v any) (decimal.Decimal, bool) {
	f, ok := jsonrepair.Number(v)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f).Round(2), true
}
