package invoice

import "fmt"

const extractionSchema = `{
  "company": {
    "name": "", "address": "", "phone": "", "email": "",
    "licenseNumber": "", "contactName": ""
  },
  "jobReference": "",
  "invoiceNumber": "",
  "invoiceDate": "",
  "dueDate": "",
  "lineItems": [
    {
      "description": "",
      "quantity": null, "unit": "",
      "unitPrice": null,
      "amount": 0,
      "costCode": "",
      "category": ""
    }
  ],
  "subtotal": null,
  "tax": null,
  "total": null,
  "timeline": "",
  "notes": "",
  "paymentTerms": ""
}`

// SystemPrompt returns the fixed extraction instructions for invoice and bid documents.
func SystemPrompt() string {
	return `You are a construction document data extraction assistant. The user sends the text of a subcontractor invoice, bid or quote. Extract ALL data into the following JSON structure:

` + extractionSchema + `

IMPORTANT INSTRUCTIONS:
- Extract EVERY priced line from every page and section (labor, materials, equipment, allowances, alternates) into the single flat "lineItems" array. Do not skip, summarize or merge lines.
- "amount" is the extended price of the line as a plain number without currency symbols or thousands separators.
- Use null for "quantity", "unitPrice", "subtotal", "tax" and "total" when the document does not state them. Never invent a total.
- "unit" is the unit of measure as written (LF, SF, CY, EA, HR, LS, ...).
- "company" is the business that issued the document, not the general contractor receiving it.
- "timeline" captures schedule or duration statements; "notes" captures exclusions, inclusions and qualifications.
- Use empty strings for text fields that are not present.

Return ONLY valid JSON with no markdown formatting, no code fences, no explanation.`
}

// UserPrompt wraps the document text.
func UserPrompt(text, fileName string) string {
	if fileName == "" {
		return fmt.Sprintf("Document text:\n\n%s", text)
	}
	return fmt.Sprintf("Document %q text:\n\n%s", fileName, text)
}
