package invoice

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bidflow/internal/domain"
	"bidflow/internal/jsonrepair"
)

// normalize coerces a decoded model payload into ParsedInvoiceData. Missing
// fields are defaulted and line items are never dropped.
func normalize(p map[string]any) *domain.ParsedInvoiceData {
	if inner, ok := p["data"].(map[string]any); ok && field(p, "lineItems", "line_items", "items", "total") == nil {
		p = inner
	}

	data := &domain.ParsedInvoiceData{
		Company:       company(p),
		JobReference:  firstString(p, "jobReference", "job_reference", "projectName", "project_name", "project"),
		InvoiceNumber: firstString(p, "invoiceNumber", "invoice_number", "bidNumber", "bid_number", "quoteNumber", "quote_number"),
		InvoiceDate:   firstString(p, "invoiceDate", "invoice_date", "date", "bidDate", "bid_date"),
		DueDate:       firstString(p, "dueDate", "due_date", "validUntil", "valid_until"),
		Timeline:      firstString(p, "timeline", "schedule", "duration"),
		Notes:         firstString(p, "notes", "exclusions", "comments"),
		PaymentTerms:  firstString(p, "paymentTerms", "payment_terms", "terms"),
		LineItems:     []domain.ParsedLineItem{},
	}

	raw, _ := field(p, "lineItems", "line_items", "items", "lines").([]any)
	for i, v := range raw {
		obj, ok := v.(map[string]any)
		if !ok {
			obj = map[string]any{"description": toString(v)}
		}
		item, warning := lineItem(obj, i)
		if warning != "" {
			data.Warnings = append(data.Warnings, warning)
		}
		data.LineItems = append(data.LineItems, item)
	}

	reconcile(data, p)
	return data
}

func company(p map[string]any) domain.CompanyInfo {
	switch c := field(p, "company", "vendor", "subcontractor", "contractor").(type) {
	case map[string]any:
		return domain.CompanyInfo{
			Name:          firstString(c, "name", "companyName", "company_name"),
			Address:       firstString(c, "address"),
			Phone:         firstString(c, "phone", "phoneNumber", "phone_number"),
			Email:         firstString(c, "email"),
			LicenseNumber: firstString(c, "licenseNumber", "license_number", "license"),
			ContactName:   firstString(c, "contactName", "contact_name", "contact"),
		}
	case string:
		return domain.CompanyInfo{Name: strings.TrimSpace(c)}
	default:
		return domain.CompanyInfo{Name: firstString(p, "companyName", "company_name", "vendorName", "vendor_name")}
	}
}

// lineItem coerces one line. An unparseable amount is derived from quantity
// and unit price when both are present, otherwise it is 0 and a warning is returned.
func lineItem(m map[string]any, index int) (domain.ParsedLineItem, string) {
	item := domain.ParsedLineItem{
		Description: firstString(m, "description", "name", "item"),
		CostCode:    firstString(m, "costCode", "cost_code", "code"),
		Category:    strings.ToLower(firstString(m, "category", "type")),
	}
	if item.Description == "" {
		item.Description = fmt.Sprintf("Line item %d", index+1)
	}

	qtyRaw := field(m, "quantity", "qty")
	if q, ok := jsonrepair.Number(qtyRaw); ok {
		item.Quantity = &q
	}
	unit := firstString(m, "unit", "uom", "units")
	if unit == "" {
		if s, ok := qtyRaw.(string); ok {
			unit = jsonrepair.NumberSuffix(s)
		}
	}
	item.Unit = domain.NormalizeUnit(unit)
	if p, ok := jsonrepair.Number(field(m, "unitPrice", "unit_price", "rate", "price")); ok {
		item.UnitPrice = &p
	}

	amountRaw := field(m, "amount", "total", "extended", "lineTotal", "line_total")
	if a, ok := jsonrepair.Number(amountRaw); ok {
		return withAmount(item, round2(a), index)
	}
	if item.Quantity != nil && item.UnitPrice != nil {
		item.AmountDerived = true
		return withAmount(item, round2(*item.Quantity * *item.UnitPrice), index)
	}
	if amountRaw != nil {
		return item, fmt.Sprintf("line %d (%s): amount %q is not a number; using 0", index+1, item.Description, toString(amountRaw))
	}
	return item, fmt.Sprintf("line %d (%s): no amount given; using 0", index+1, item.Description)
}

// withAmount sets a line amount. Amounts are never negative: credits and
// discounts are recorded as 0 with a warning carrying the original value.
func withAmount(item domain.ParsedLineItem, amount float64, index int) (domain.ParsedLineItem, string) {
	if amount < 0 {
		return item, fmt.Sprintf("line %d (%s): negative amount %s recorded as 0", index+1, item.Description, decimal.NewFromFloat(amount).StringFixed(2))
	}
	item.Amount = amount
	return item, ""
}

func round2(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}

func field(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := toString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(s))
		for _, e := range s {
			if t := toString(e); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}
