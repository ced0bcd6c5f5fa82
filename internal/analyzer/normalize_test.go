package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/domain"
)

func TestFoldPayload(t *testing.T) {
	got, err := foldPayload(domain.TaskTakeoff, map[string]any{"line_items": []any{map[string]any{}}})
	require.NoError(t, err)
	assert.Len(t, got["items"], 1)
	assert.NotContains(t, got, "line_items")

	got, err = foldPayload(domain.TaskQuality, []any{})
	require.NoError(t, err)
	assert.Contains(t, got, "issues")

	got, err = foldPayload(domain.TaskTakeoff, map[string]any{"summary": "nothing to take off"})
	require.NoError(t, err)
	assert.Equal(t, []any{}, got["items"])

	_, err = foldPayload(domain.TaskTakeoff, "just text")
	assert.Error(t, err)
}

func TestCoerceItem(t *testing.T) {
	c := coercer{modelID: "gpt-4o", defaultPage: 2, fallbackConf: 0.6}

	item := c.item(0, map[string]any{
		"description": "Exterior wall framing",
		"category":    "Wood Framing",
		"qty":         "-5",
		"unitCost":    "$3.50",
		"costCode":    float64(61000),
		"bbox":        []any{10.0, 20.0, 30.0, 40.0},
	})
	assert.Equal(t, "gpt-4o:item-1", item.ID)
	assert.Equal(t, "Exterior wall framing", item.Name)
	assert.Empty(t, item.Description)
	assert.Equal(t, domain.CategoryOther, item.Category)
	assert.Equal(t, "Wood Framing", item.Subcategory)
	assert.Nil(t, item.Quantity)
	require.NotNil(t, item.UnitCost)
	assert.Equal(t, 3.5, *item.UnitCost)
	assert.Nil(t, item.Amount)
	require.NotNil(t, item.CostCode)
	assert.Equal(t, "61000", *item.CostCode)
	assert.InDelta(t, 0.6, item.Confidence, 1e-9)
	assert.Equal(t, domain.BoundingBox{PageIndex: 2, X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}, item.BoundingBox)
}

func TestCoerceItem_DerivesAmount(t *testing.T) {
	c := coercer{modelID: "m", fallbackConf: 0.5}
	item := c.item(3, map[string]any{"name": "Drywall", "quantity": 100.0, "unit_cost": 1.255})
	assert.Equal(t, "m:item-4", item.ID)
	require.NotNil(t, item.Amount)
	assert.Equal(t, 125.5, *item.Amount)
}

func TestCoerceItem_MissingEverything(t *testing.T) {
	c := coercer{modelID: "m", defaultPage: 1, fallbackConf: 0.5}
	item := c.item(0, nil)
	assert.Equal(t, "Unnamed item 1", item.Name)
	assert.Equal(t, domain.CategoryOther, item.Category)
	assert.Equal(t, domain.WholePage(1), item.BoundingBox)
}

func TestCoercerBox(t *testing.T) {
	c := coercer{}
	tests := []struct {
		name string
		in   map[string]any
		want domain.BoundingBox
	}{
		{
			"object with page",
			map[string]any{"bounding_box": map[string]any{"page": 3.0, "x": 0.5, "y": 0.5, "w": 0.2, "h": 0.1}},
			domain.BoundingBox{PageIndex: 3, X: 0.5, Y: 0.5, Width: 0.2, Height: 0.1},
		},
		{
			"corner form",
			map[string]any{"bbox": map[string]any{"x1": 0.1, "y1": 0.1, "x2": 0.4, "y2": 0.3}},
			domain.BoundingBox{X: 0.1, Y: 0.1, Width: 0.30000000000000004, Height: 0.19999999999999998},
		},
		{
			"clipped to page",
			map[string]any{"bbox": map[string]any{"x": 0.9, "y": 0.0, "width": 0.5, "height": 0.5}},
			domain.BoundingBox{X: 0.9, Y: 0, Width: 0.09999999999999998, Height: 0.5},
		},
		{
			"zero area",
			map[string]any{"page_index": 1.0, "bbox": map[string]any{"x": 0.2, "y": 0.2, "width": 0, "height": 0.1}},
			domain.WholePage(1),
		},
		{
			"missing",
			map[string]any{"page_index": 4.0},
			domain.WholePage(4),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.box(tt.in)
			assert.Equal(t, tt.want.PageIndex, got.PageIndex)
			assert.Equal(t, tt.want.Estimated, got.Estimated)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
			assert.InDelta(t, tt.want.Width, got.Width, 1e-9)
			assert.InDelta(t, tt.want.Height, got.Height, 1e-9)
		})
	}
}

func TestCoerceIssues(t *testing.T) {
	c := coercer{modelID: "gemini-flash", fallbackConf: 0.5}
	issues := c.issues([]any{
		map[string]any{"issue": "Stair riser height exceeds code", "priority": "critical", "category": "code", "confidence": "0.9"},
		"not an object",
	})
	require.Len(t, issues, 2)
	assert.Equal(t, "gemini-flash:issue-1", issues[0].ID)
	assert.Equal(t, "Stair riser height exceeds code", issues[0].Title)
	assert.Equal(t, domain.SeverityCritical, issues[0].Severity)
	assert.Equal(t, "code", issues[0].Category)
	assert.InDelta(t, 0.9, issues[0].Confidence, 1e-9)

	assert.Equal(t, "Untitled issue 2", issues[1].Title)
	assert.Equal(t, domain.SeverityInfo, issues[1].Severity)
}

func TestUnitInterval(t *testing.T) {
	assert.Equal(t, 0.85, unitInterval(85))
	assert.Equal(t, 1.0, unitInterval(250))
	assert.Equal(t, 0.0, unitInterval(-0.2))
	assert.Equal(t, 0.4, unitInterval(0.4))
}
