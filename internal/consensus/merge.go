package consensus

import (
	"math"

	"bidflow/internal/domain"
)

const (
	agreementBoost     = 0.2
	disagreementFactor = 0.8
	loneModelFactor    = 0.6
	disagreementWeight = 0.5
)

// merge combines the successful outcomes into a ConsensusResult (without id or timing).
func (e *Engine) merge(task domain.TaskType, outcomes []outcome) *domain.ConsensusResult {
	participants := 0
	for _, o := range outcomes {
		if o.status == domain.StatusSuccess {
			participants++
		}
	}

	result := &domain.ConsensusResult{
		Items:         []domain.ConsensusItem{},
		Disagreements: []domain.Disagreement{},
	}

	var clusters []*cluster
	var supports []clusterSupport
	if task.ProducesIssues() {
		clusters = buildClusters(issueEntries(outcomes), e.cfg)
		result.Issues = make([]domain.ConsensusIssue, 0, len(clusters))
		for _, c := range clusters {
			issue, dis := mergeIssue(c, outcomes)
			issue.Confidence = itemConfidence(c, len(dis) > 0, participants)
			result.Issues = append(result.Issues, issue)
			result.Disagreements = append(result.Disagreements, dis...)
			supports = append(supports, clusterSupport{count: issue.ConsensusCount, confidence: issue.Confidence, disputed: issue.HasDisagreement})
		}
	} else {
		clusters = buildClusters(itemEntries(outcomes), e.cfg)
		result.Items = make([]domain.ConsensusItem, 0, len(clusters))
		for _, c := range clusters {
			item, dis := e.mergeItem(c, outcomes)
			item.Confidence = itemConfidence(c, len(dis) > 0, participants)
			result.Items = append(result.Items, item)
			result.Disagreements = append(result.Disagreements, dis...)
			supports = append(supports, clusterSupport{count: item.ConsensusCount, confidence: item.Confidence, disputed: item.HasDisagreement})
		}
	}

	result.ModelAgreements = modelAgreements(outcomes, clusters)
	result.Confidence = overallConfidence(supports, outcomes)
	result.Recommendations = recommendations(result, participants)
	return result
}

func (e *Engine) mergeItem(c *cluster, outcomes []outcome) (domain.ConsensusItem, []domain.Disagreement) {
	rep := representative(c)
	src := outcomes[rep.member].result.Items[rep.index]
	members := make([]domain.ExtractedItem, len(c.entries))
	for i, en := range c.entries {
		members[i] = outcomes[en.member].result.Items[en.index]
	}

	merged := domain.ExtractedItem{
		ID:          c.id,
		Name:        src.Name,
		Description: src.Description,
		Location:    src.Location,
		BoundingBox: src.BoundingBox,
	}
	var dis []domain.Disagreement

	numeric := []struct {
		field string
		get   func(domain.ExtractedItem) *float64
		set   func(*float64)
	}{
		{"quantity", func(it domain.ExtractedItem) *float64 { return it.Quantity }, func(v *float64) { merged.Quantity = v }},
		{"unit_cost", func(it domain.ExtractedItem) *float64 { return it.UnitCost }, func(v *float64) { merged.UnitCost = v }},
		{"amount", func(it domain.ExtractedItem) *float64 { return it.Amount }, func(v *float64) { merged.Amount = v }},
	}
	for _, f := range numeric {
		var vals []numericValue
		for i, en := range c.entries {
			if v := f.get(members[i]); v != nil {
				vals = append(vals, numericValue{modelID: en.modelID, value: *v, confidence: en.confidence})
			}
		}
		if len(vals) == 0 {
			continue
		}
		m := weightedMean(vals)
		f.set(&m)
		if s, ok := spread(vals, e.cfg.NumericTolerance); ok {
			dis = append(dis, numericDisagreement(c.id, src.Name, f.field, s, vals))
		}
	}

	categorical := []struct {
		field    string
		get      func(domain.ExtractedItem) string
		set      func(string)
		disputes bool
	}{
		{"category", func(it domain.ExtractedItem) string { return it.Category }, func(v string) { merged.Category = v }, true},
		{"unit", func(it domain.ExtractedItem) string { return string(it.Unit) }, func(v string) { merged.Unit = domain.Unit(v) }, true},
		{"cost_code", func(it domain.ExtractedItem) string { return deref(it.CostCode) }, func(v string) {
			if v != "" {
				merged.CostCode = &v
			}
		}, true},
		// Subcategory is free text; it is voted on but never reported as a disagreement.
		{"subcategory", func(it domain.ExtractedItem) string { return it.Subcategory }, func(v string) { merged.Subcategory = v }, false},
	}
	for _, f := range categorical {
		votes := make([]vote, 0, len(c.entries))
		for i, en := range c.entries {
			votes = append(votes, vote{value: f.get(members[i]), modelID: en.modelID, member: en.member, confidence: en.confidence})
		}
		winner, disputed := majority(votes)
		f.set(winner)
		if disputed && f.disputes {
			dis = append(dis, categoricalDisagreement(c.id, src.Name, f.field, votes))
		}
	}
	if merged.Category == "" {
		merged.Category = domain.CategoryOther
	}

	return domain.ConsensusItem{
		ExtractedItem:   merged,
		ClusterID:       c.id,
		ConsensusCount:  len(c.entries),
		Sources:         sources(c),
		HasDisagreement: len(dis) > 0,
	}, dis
}

func mergeIssue(c *cluster, outcomes []outcome) (domain.ConsensusIssue, []domain.Disagreement) {
	rep := representative(c)
	src := outcomes[rep.member].result.Issues[rep.index]
	merged := domain.AnalysisIssue{
		ID:          c.id,
		Title:       src.Title,
		Description: src.Description,
		Location:    src.Location,
		BoundingBox: src.BoundingBox,
		Suggestion:  src.Suggestion,
	}

	var catVotes, sevVotes []vote
	for _, en := range c.entries {
		is := outcomes[en.member].result.Issues[en.index]
		catVotes = append(catVotes, vote{value: is.Category, modelID: en.modelID, member: en.member, confidence: en.confidence})
		sevVotes = append(sevVotes, vote{value: string(is.Severity), modelID: en.modelID, member: en.member, confidence: en.confidence})
	}

	var dis []domain.Disagreement
	category, disputed := majority(catVotes)
	merged.Category = category
	if disputed {
		dis = append(dis, categoricalDisagreement(c.id, src.Title, "category", catVotes))
	}
	severity, disputed := majority(sevVotes)
	merged.Severity = domain.Severity(severity)
	if disputed {
		dis = append(dis, categoricalDisagreement(c.id, src.Title, "severity", sevVotes))
	}
	if merged.Category == "" {
		merged.Category = domain.CategoryOther
	}
	if merged.Severity == "" {
		merged.Severity = domain.SeverityInfo
	}

	return domain.ConsensusIssue{
		AnalysisIssue:   merged,
		ClusterID:       c.id,
		ConsensusCount:  len(c.entries),
		Sources:         sources(c),
		HasDisagreement: len(dis) > 0,
	}, dis
}

// representative is the highest-confidence entry, lowest roster index on ties.
func representative(c *cluster) entry {
	best := c.entries[0]
	for _, en := range c.entries[1:] {
		if en.confidence > best.confidence || (en.confidence == best.confidence && en.member < best.member) {
			best = en
		}
	}
	return best
}

func sources(c *cluster) []string {
	ids := make([]string, len(c.entries))
	for i, en := range c.entries {
		ids[i] = en.modelID
	}
	return ids
}

type numericValue struct {
	modelID    string
	value      float64
	confidence float64
}

// weightedMean weights by confidence, falling back to a plain mean when every weight is 0.
func weightedMean(vals []numericValue) float64 {
	var sum, weights, plain float64
	for _, v := range vals {
		sum += v.value * v.confidence
		weights += v.confidence
		plain += v.value
	}
	if weights == 0 {
		return plain / float64(len(vals))
	}
	return sum / weights
}

// spread returns (max-min)/|min| and whether it exceeds tol. Any difference
// counts when min is 0, reported as a spread of 1.
func spread(vals []numericValue, tol float64) (float64, bool) {
	if len(vals) < 2 {
		return 0, false
	}
	lo, hi := vals[0].value, vals[0].value
	for _, v := range vals[1:] {
		lo = math.Min(lo, v.value)
		hi = math.Max(hi, v.value)
	}
	if hi == lo {
		return 0, false
	}
	if lo == 0 {
		return 1, true
	}
	s := (hi - lo) / math.Abs(lo)
	return s, s > tol
}

type vote struct {
	value      string
	modelID    string
	member     int
	confidence float64
}

// majority picks the most supported non-empty value. Ties go to the value whose
// best supporter has the higher confidence, then to the lowest roster index.
// disputed reports whether more than one distinct non-empty value was cast.
func majority(votes []vote) (winner string, disputed bool) {
	type tally struct {
		count    int
		bestConf float64
		firstIdx int
	}
	tallies := make(map[string]*tally)
	var order []string
	for _, v := range votes {
		if v.value == "" {
			continue
		}
		t, ok := tallies[v.value]
		if !ok {
			t = &tally{bestConf: v.confidence, firstIdx: v.member}
			tallies[v.value] = t
			order = append(order, v.value)
		}
		t.count++
		t.bestConf = math.Max(t.bestConf, v.confidence)
		t.firstIdx = min(t.firstIdx, v.member)
	}
	if len(order) == 0 {
		return "", false
	}

	winner = order[0]
	for _, val := range order[1:] {
		w, t := tallies[winner], tallies[val]
		switch {
		case t.count > w.count,
			t.count == w.count && t.bestConf > w.bestConf,
			t.count == w.count && t.bestConf == w.bestConf && t.firstIdx < w.firstIdx:
			winner = val
		}
	}
	return winner, len(order) > 1
}

func numericDisagreement(clusterID, name, field string, s float64, vals []numericValue) domain.Disagreement {
	values := make([]domain.DisagreementValue, len(vals))
	for i, v := range vals {
		values[i] = domain.DisagreementValue{ModelID: v.modelID, Value: v.value, Confidence: v.confidence}
	}
	return domain.Disagreement{
		ClusterID: clusterID,
		ItemName:  name,
		Field:     field,
		Kind:      domain.DisagreementNumeric,
		Spread:    s,
		Values:    values,
	}
}

func categoricalDisagreement(clusterID, name, field string, votes []vote) domain.Disagreement {
	values := make([]domain.DisagreementValue, 0, len(votes))
	for _, v := range votes {
		if v.value == "" {
			continue
		}
		values = append(values, domain.DisagreementValue{ModelID: v.modelID, Value: v.value, Confidence: v.confidence})
	}
	return domain.Disagreement{
		ClusterID: clusterID,
		ItemName:  name,
		Field:     field,
		Kind:      domain.DisagreementCategorical,
		Values:    values,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
