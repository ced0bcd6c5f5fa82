package consensus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/domain"
)

func TestMajority(t *testing.T) {
	tests := []struct {
		name     string
		votes    []vote
		winner   string
		disputed bool
	}{
		{"plain majority", []vote{{value: "a", member: 0, confidence: 0.1}, {value: "b", member: 1, confidence: 0.9}, {value: "a", member: 2, confidence: 0.1}}, "a", true},
		{"tie goes to higher confidence", []vote{{value: "a", member: 0, confidence: 0.5}, {value: "b", member: 1, confidence: 0.9}}, "b", true},
		{"full tie goes to lower roster index", []vote{{value: "b", member: 1, confidence: 0.9}, {value: "a", member: 0, confidence: 0.9}}, "a", true},
		{"empty values ignored", []vote{{value: "", member: 0}, {value: "LF", member: 1, confidence: 0.4}}, "LF", false},
		{"no values", []vote{{value: ""}, {value: ""}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, disputed := majority(tt.votes)
			assert.Equal(t, tt.winner, winner)
			assert.Equal(t, tt.disputed, disputed)
		})
	}
}

func TestSpread(t *testing.T) {
	vals := func(fs ...float64) []numericValue {
		out := make([]numericValue, len(fs))
		for i, f := range fs {
			out[i] = numericValue{value: f, confidence: 1}
		}
		return out
	}

	s, ok := spread(vals(100, 150), 0.15)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, s, 1e-9)

	s, ok = spread(vals(100, 110), 0.15)
	assert.False(t, ok)
	assert.InDelta(t, 0.1, s, 1e-9)

	s, ok = spread(vals(0, 3), 0.15)
	assert.True(t, ok)
	assert.Equal(t, 1.0, s)

	_, ok = spread(vals(42), 0.15)
	assert.False(t, ok)

	_, ok = spread(vals(7, 7, 7), 0.15)
	assert.False(t, ok)
}

func TestWeightedMean(t *testing.T) {
	assert.InDelta(t, 120, weightedMean([]numericValue{{value: 100, confidence: 0.9}, {value: 150, confidence: 0.6}}), 1e-9)
	assert.InDelta(t, 3, weightedMean([]numericValue{{value: 2}, {value: 4}}), 1e-9)
}

func TestBuildClusters(t *testing.T) {
	cfg := DefaultConfig()
	at := func(x float64) domain.BoundingBox { return box(x, 0.1, 0.1, 0.1) }

	tests := []struct {
		name     string
		entries  []entry
		clusters int
	}{
		{
			name: "cross category needs near-identical names",
			entries: []entry{
				{member: 0, modelID: "a", name: "Door frame", category: "framing", box: at(0.1)},
				{member: 1, modelID: "b", name: "Door frame", category: "doors", box: at(0.1)},
			},
			clusters: 1,
		},
		{
			name: "cross category with loose names stays apart",
			entries: []entry{
				{member: 0, modelID: "a", name: "Steel door frame assembly", category: "framing", box: at(0.1)},
				{member: 1, modelID: "b", name: "Door frame", category: "doors", box: at(0.1)},
			},
			clusters: 2,
		},
		{
			name: "other category uses the normal threshold",
			entries: []entry{
				{member: 0, modelID: "a", name: "Steel door frame assembly", category: domain.CategoryOther, box: at(0.1)},
				{member: 1, modelID: "b", name: "Door frame", category: "doors", box: at(0.1)},
			},
			clusters: 1,
		},
		{
			name: "different pages never match",
			entries: []entry{
				{member: 0, modelID: "a", name: "Footing", category: "concrete", box: domain.WholePage(0)},
				{member: 1, modelID: "b", name: "Footing", category: "concrete", box: domain.WholePage(1)},
			},
			clusters: 2,
		},
		{
			name: "disjoint boxes without location text stay apart",
			entries: []entry{
				{member: 0, modelID: "a", name: "Window", category: "windows", box: at(0.1)},
				{member: 1, modelID: "b", name: "Window", category: "windows", box: at(0.7)},
			},
			clusters: 2,
		},
		{
			name: "disjoint boxes joined by matching location text",
			entries: []entry{
				{member: 0, modelID: "a", name: "Window", category: "windows", location: "North elevation", box: at(0.1)},
				{member: 1, modelID: "b", name: "Window", category: "windows", location: "north elevation", box: at(0.7)},
			},
			clusters: 1,
		},
		{
			name: "estimated boxes with conflicting location text stay apart",
			entries: []entry{
				{member: 0, modelID: "a", name: "Window", category: "windows", location: "North elevation", box: domain.WholePage(0)},
				{member: 1, modelID: "b", name: "Window", category: "windows", location: "garage", box: domain.WholePage(0)},
			},
			clusters: 2,
		},
		{
			name: "one entry per model in a cluster",
			entries: []entry{
				{member: 0, modelID: "a", name: "Window", category: "windows", box: domain.WholePage(0)},
				{member: 0, index: 1, modelID: "a", name: "Window", category: "windows", box: domain.WholePage(0)},
				{member: 1, modelID: "b", name: "Window", category: "windows", box: domain.WholePage(0)},
			},
			clusters: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildClusters(tt.entries, cfg)
			assert.Len(t, got, tt.clusters)
			for i, c := range got {
				assert.Equal(t, fmt.Sprintf("c%d", i+1), c.id)
			}
		})
	}
}

func TestBuildClusters_JoinsOnBestPairwiseMatch(t *testing.T) {
	entries := []entry{
		{member: 0, modelID: "a", name: "Concrete slab", category: "concrete", box: domain.WholePage(0)},
		{member: 1, modelID: "b", name: "Concrete slab footing", category: "concrete", box: domain.WholePage(0)},
		{member: 2, modelID: "c", name: "Concrete slab footing", category: "concrete", box: domain.WholePage(0)},
	}
	got := buildClusters(entries, DefaultConfig())
	require.Len(t, got, 1)
	assert.Len(t, got[0].entries, 3)
}

func TestRecommendations_CapsLoneEntries(t *testing.T) {
	r := &domain.ConsensusResult{Confidence: 0.9}
	for i := range 12 {
		r.Items = append(r.Items, domain.ConsensusItem{
			ExtractedItem:  domain.ExtractedItem{Name: fmt.Sprintf("Item %d", i)},
			ConsensusCount: 1,
			Sources:        []string{"gpt-4o"},
		})
	}
	notes := recommendations(r, 3)
	require.Len(t, notes, 11)
	assert.Equal(t, `Verify "Item 0": reported only by gpt-4o.`, notes[0])
	assert.Equal(t, "2 more entries were reported by a single model; review them before relying on this result.", notes[10])
}

func TestRecommendations_Order(t *testing.T) {
	r := &domain.ConsensusResult{
		Confidence: 0.4,
		Items: []domain.ConsensusItem{
			{ExtractedItem: domain.ExtractedItem{Name: "Rebar"}, ConsensusCount: 1, Sources: []string{"m2"}},
		},
		Disagreements: []domain.Disagreement{{
			ItemName: "Rebar",
			Field:    "unit",
			Kind:     domain.DisagreementCategorical,
			Values:   []domain.DisagreementValue{{ModelID: "m1", Value: "LF"}, {ModelID: "m3", Value: "EA"}},
		}},
		ModelAgreements: []domain.ModelAgreement{
			{ModelID: "m1", Participated: true},
			{ModelID: "m4", Status: domain.StatusFailed, Error: "boom"},
		},
	}
	notes := recommendations(r, 3)
	require.Len(t, notes, 4)
	assert.Equal(t, `Review "Rebar": models disagree on unit (m1=LF, m3=EA).`, notes[0])
	assert.Equal(t, `Verify "Rebar": reported only by m2.`, notes[1])
	assert.Equal(t, "m4 did not participate (failed): boom.", notes[2])
	assert.Contains(t, notes[3], "Overall confidence is 40%")
}
