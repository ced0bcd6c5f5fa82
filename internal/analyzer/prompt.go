package analyzer

import (
	"fmt"
	"strings"

	"bidflow/internal/domain"
	"bidflow/internal/port"
)

const itemSchema = `{
  "items": [
    {
      "name": "",
      "description": "",
      "category": "",
      "subcategory": "",
      "quantity": 0,
      "unit": "LF | SF | CF | CY | EA | SQ",
      "unit_cost": null,
      "amount": null,
      "location": "",
      "bounding_box": {"page_index": 0, "x": 0.0, "y": 0.0, "width": 0.0, "height": 0.0},
      "confidence": 0.0,
      "cost_code": null
    }
  ],
  "confidence": 0.0,
  "summary": ""
}`

const issueSchema = `{
  "issues": [
    {
      "title": "",
      "description": "",
      "category": "dimensions | annotations | code | coordination | documentation | other",
      "severity": "critical | warning | info",
      "location": "",
      "bounding_box": {"page_index": 0, "x": 0.0, "y": 0.0, "width": 0.0, "height": 0.0},
      "confidence": 0.0,
      "suggestion": ""
    }
  ],
  "confidence": 0.0,
  "summary": ""
}`

const takeoffInstructions = `You are a senior construction estimator performing a quantity takeoff from architectural and engineering plan sheets.

INSTRUCTIONS:
- Identify every measurable construction element shown on the sheets: walls, slabs, footings, framing members, doors, windows, fixtures, finishes, roofing, mechanical, electrical and plumbing items.
- Report quantities in one of these units: LF (linear feet), SF (square feet), CF (cubic feet), CY (cubic yards), EA (each), SQ (roofing squares).
- Use the drawing scale and dimension strings to compute quantities. If a quantity cannot be determined from the sheets, set "quantity" to null rather than guessing.
- Use one of these categories: sitework, concrete, masonry, metals, framing, carpentry, roofing, insulation, doors, windows, drywall, finishes, flooring, painting, plumbing, hvac, electrical, fire, specialties, equipment. Use "other" when nothing fits.`

const bidAnalysisInstructions = `You are a construction cost estimator preparing a bid breakdown from plan sheets.

INSTRUCTIONS:
- Break the visible scope into biddable line items grouped by trade.
- For each item give the quantity and unit, and when the sheets or annotations support it, a unit cost and extended amount in US dollars.
- Amounts must be non-negative numbers without currency symbols. Use null when a cost cannot be supported.
- Assign a CSI MasterFormat cost code (for example "03 30 00") when you can identify one; otherwise null.
- Use one of these categories: sitework, concrete, masonry, metals, framing, carpentry, roofing, insulation, doors, windows, drywall, finishes, flooring, painting, plumbing, hvac, electrical, fire, specialties, equipment, labor, materials. Use "other" when nothing fits.`

const qualityInstructions = `You are a plan reviewer checking construction drawings for problems before they go out to bid.

INSTRUCTIONS:
- Look for missing or conflicting dimensions, unreadable or missing annotations, building-code concerns, coordination conflicts between disciplines, and missing documentation (schedules, details, sheet references).
- Grade each issue: "critical" when it blocks pricing or construction, "warning" when it risks a change order, "info" for minor clean-up.
- Give a concrete suggestion for resolving each issue.`

const outputRules = `
OUTPUT RULES:
- Every entry must include a "bounding_box" locating it on its sheet. Coordinates are fractions of the page in [0,1] measured from the top-left corner; "page_index" is the zero-based sheet index.
- "confidence" values are numbers in [0,1].
- Return ONLY valid JSON with no markdown formatting, no code fences and no explanation.

The response must follow this schema:
`

// SystemPrompt returns the fixed instructions and output schema for a task.
func SystemPrompt(task domain.TaskType, opts domain.AnalysisOptions) string {
	var b strings.Builder
	switch task {
	case domain.TaskQuality:
		b.WriteString(qualityInstructions)
	case domain.TaskBidAnalysis:
		b.WriteString(bidAnalysisInstructions)
	default:
		b.WriteString(takeoffInstructions)
	}
	if opts.PrioritizeAccuracy {
		b.WriteString("\n- Accuracy matters more than coverage: omit an entry rather than guess at it.")
	}
	if opts.IncludeConsensus {
		b.WriteString("\n- Your answer will be cross-checked against other reviewers. Calibrate each confidence honestly; do not report 1.0 unless the value is unambiguous on the sheet.")
	}
	b.WriteString("\n")
	b.WriteString(outputRules)
	if task.ProducesIssues() {
		b.WriteString(issueSchema)
	} else {
		b.WriteString(itemSchema)
	}
	return b.String()
}

// UserPrompt summarises the sheet set and any user annotations.
func UserPrompt(task domain.TaskType, images []domain.PlanImage, opts domain.AnalysisOptions) string {
	var b strings.Builder
	noun := "sheet"
	if len(images) != 1 {
		noun = "sheets"
	}
	fmt.Fprintf(&b, "Analyze the %d plan %s above for a %s.", len(images), noun, taskLabel(task))

	if len(opts.Annotations) > 0 {
		b.WriteString("\n\nThe user marked these areas:")
		for _, a := range opts.Annotations {
			fmt.Fprintf(&b, "\n- page %d: %s", a.PageIndex, a.Label)
			if a.Note != "" {
				fmt.Fprintf(&b, " (%s)", a.Note)
			}
			if a.BoundingBox != nil {
				fmt.Fprintf(&b, " at x=%.2f y=%.2f w=%.2f h=%.2f",
					a.BoundingBox.X, a.BoundingBox.Y, a.BoundingBox.Width, a.BoundingBox.Height)
			}
		}
		b.WriteString("\nGive these areas particular attention.")
	}
	return b.String()
}

// BuildMessages interleaves a caption and image per sheet, followed by the user prompt.
func BuildMessages(task domain.TaskType, images []domain.PlanImage, opts domain.AnalysisOptions) []port.Message {
	parts := make([]port.ContentPart, 0, len(images)*2+1)
	for _, img := range images {
		caption := fmt.Sprintf("Sheet page_index=%d", img.PageIndex)
		if img.Label != "" {
			caption += ": " + img.Label
		}
		parts = append(parts,
			port.ContentPart{Type: port.PartText, Text: caption},
			port.ContentPart{Type: port.PartImage, ImageURL: img.URL},
		)
	}
	parts = append(parts, port.ContentPart{Type: port.PartText, Text: UserPrompt(task, images, opts)})
	return []port.Message{{Role: "user", Parts: parts}}
}

func taskLabel(task domain.TaskType) string {
	switch task {
	case domain.TaskQuality:
		return "plan quality review"
	case domain.TaskBidAnalysis:
		return "bid breakdown"
	default:
		return "quantity takeoff"
	}
}
