package analyzer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"bidflow/internal/domain"
	"bidflow/internal/jsonrepair"
)

const defaultItemConfidence = 0.5

var listAliases = map[string][]string{
	"items":  {"lineItems", "line_items", "elements", "takeoff"},
	"issues": {"problems", "findings"},
}

// foldPayload turns a decoded model response into the task envelope: aliases
// of the list key are renamed and a bare top-level array becomes the list.
func foldPayload(task domain.TaskType, decoded any) (map[string]any, error) {
	key := listKey(task)
	switch v := decoded.(type) {
	case []any:
		return map[string]any{key: v}, nil
	case map[string]any:
		if _, ok := v[key]; !ok {
			for _, alias := range listAliases[key] {
				if list, ok := v[alias]; ok {
					v[key] = list
					delete(v, alias)
					break
				}
			}
		}
		if _, ok := v[key]; !ok {
			v[key] = []any{}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("expected a JSON object or array, got %T", decoded)
	}
}

// coercer turns loosely typed entries into domain values.
type coercer struct {
	modelID      string
	defaultPage  int
	fallbackConf float64
}

func (c coercer) items(list []any) []domain.ExtractedItem {
	out := make([]domain.ExtractedItem, 0, len(list))
	for i, raw := range list {
		m, _ := raw.(map[string]any)
		out = append(out, c.item(i, m))
	}
	return out
}

func (c coercer) item(idx int, m map[string]any) domain.ExtractedItem {
	item := domain.ExtractedItem{
		ID:          fmt.Sprintf("%s:item-%d", c.modelID, idx+1),
		Name:        firstString(m, "name", "item", "element", "description", "title"),
		Description: firstString(m, "description", "details"),
		Location:    firstString(m, "location", "area", "room"),
		Confidence:  c.confidence(field(m, "confidence", "confidence_score")),
	}
	if item.Name == "" {
		item.Name = fmt.Sprintf("Unnamed item %d", idx+1)
	}
	if item.Description == item.Name {
		item.Description = ""
	}

	item.Category, item.Subcategory = category(firstString(m, "category", "trade", "division"))
	if sub := firstString(m, "subcategory", "sub_category", "subCategory", "type"); sub != "" {
		item.Subcategory = sub
	}

	rawQty := field(m, "quantity", "qty", "count")
	item.Quantity = nonNegative(rawQty)
	unit := firstString(m, "unit", "units", "uom")
	if unit == "" {
		if s, ok := rawQty.(string); ok {
			unit = jsonrepair.NumberSuffix(s)
		}
	}
	item.Unit = domain.NormalizeUnit(unit)

	item.UnitCost = nonNegative(field(m, "unit_cost", "unitCost", "unit_price", "unitPrice", "rate"))
	item.Amount = nonNegative(field(m, "amount", "total", "cost", "extended_cost", "extendedCost"))
	if item.Amount == nil && item.Quantity != nil && item.UnitCost != nil {
		amount := round2(*item.Quantity * *item.UnitCost)
		item.Amount = &amount
	}

	if code := firstString(m, "cost_code", "costCode", "csi_code", "csiCode"); code != "" {
		item.CostCode = &code
	}
	item.BoundingBox = c.box(m)
	return item
}

func (c coercer) issues(list []any) []domain.AnalysisIssue {
	out := make([]domain.AnalysisIssue, 0, len(list))
	for i, raw := range list {
		m, _ := raw.(map[string]any)
		issue := domain.AnalysisIssue{
			ID:          fmt.Sprintf("%s:issue-%d", c.modelID, i+1),
			Title:       firstString(m, "title", "name", "issue", "description"),
			Description: firstString(m, "description", "details"),
			Severity:    domain.NormalizeSeverity(firstString(m, "severity", "priority", "level")),
			Location:    firstString(m, "location", "area", "sheet"),
			Confidence:  c.confidence(field(m, "confidence", "confidence_score")),
			Suggestion:  firstString(m, "suggestion", "recommendation", "fix", "resolution"),
			BoundingBox: c.box(m),
		}
		if issue.Title == "" {
			issue.Title = fmt.Sprintf("Untitled issue %d", i+1)
		}
		if issue.Description == issue.Title {
			issue.Description = ""
		}
		issue.Category, _ = category(firstString(m, "category", "type"))
		out = append(out, issue)
	}
	return out
}

// confidence scales percentages into [0,1]; a missing value takes the fallback.
func (c coercer) confidence(v any) float64 {
	f, ok := jsonrepair.Number(v)
	if !ok {
		return c.fallbackConf
	}
	return unitInterval(f)
}

// box reads the item's bounding box, falling back to an estimated whole-page box.
func (c coercer) box(m map[string]any) domain.BoundingBox {
	page := c.defaultPage
	if p, ok := jsonrepair.Number(field(m, "page_index", "pageIndex", "page")); ok && p >= 0 {
		page = int(p)
	}

	var coords [4]float64
	var found bool
	switch b := field(m, "bounding_box", "boundingBox", "bbox", "box").(type) {
	case map[string]any:
		if p, ok := jsonrepair.Number(field(b, "page_index", "pageIndex", "page")); ok && p >= 0 {
			page = int(p)
		}
		coords, found = readCoords(b)
	case []any:
		if len(b) == 4 {
			found = true
			for i := range b {
				f, ok := jsonrepair.Number(b[i])
				if !ok {
					found = false
					break
				}
				coords[i] = f
			}
		}
	}
	if !found {
		return domain.WholePage(page)
	}

	// Percent coordinates.
	if coords[0] > 1 || coords[1] > 1 || coords[2] > 1 || coords[3] > 1 {
		for i := range coords {
			coords[i] /= 100
		}
	}
	x := clamp01(coords[0])
	y := clamp01(coords[1])
	w := math.Min(clamp01(coords[2]), 1-x)
	h := math.Min(clamp01(coords[3]), 1-y)
	if w <= 0 || h <= 0 {
		return domain.WholePage(page)
	}
	return domain.BoundingBox{PageIndex: page, X: x, Y: y, Width: w, Height: h}
}

func readCoords(b map[string]any) ([4]float64, bool) {
	var out [4]float64
	keys := [4][]string{
		{"x", "left", "x1"},
		{"y", "top", "y1"},
		{"width", "w"},
		{"height", "h"},
	}
	for i, names := range keys {
		f, ok := jsonrepair.Number(field(b, names...))
		if !ok {
			if i < 2 {
				return out, false
			}
			// x2/y2 corner form
			corner, ok := jsonrepair.Number(field(b, []string{"x2", "y2"}[i-2]))
			if !ok {
				return out, false
			}
			f = corner - out[i-2]
		}
		out[i] = f
	}
	return out, true
}

func category(raw string) (cat, sub string) {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" {
		return domain.CategoryOther, ""
	}
	if domain.KnownCategories[c] {
		return c, ""
	}
	return domain.CategoryOther, raw
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
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// nonNegative parses v as a number; absent, unparseable and negative values are nil.
func nonNegative(v any) *float64 {
	f, ok := jsonrepair.Number(v)
	if !ok || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func unitInterval(f float64) float64 {
	if f > 1 && f <= 100 {
		f /= 100
	}
	return clamp01(f)
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
