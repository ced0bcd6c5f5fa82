package consensus

import (
	"math"

	"bidflow/internal/domain"
)

// clusterSupport is what overall scoring needs from a merged cluster.
type clusterSupport struct {
	count      int
	confidence float64
	disputed   bool
}

// itemConfidence is the members' mean confidence, raised for each additional
// agreeing model and lowered for disagreement or lone support.
func itemConfidence(c *cluster, disputed bool, participants int) float64 {
	var sum float64
	for _, en := range c.entries {
		sum += en.confidence
	}
	conf := sum / float64(len(c.entries))
	for range len(c.entries) - 1 {
		conf += (1 - conf) * agreementBoost
	}
	if disputed {
		conf *= disagreementFactor
	}
	if len(c.entries) == 1 && participants >= 2 {
		conf *= loneModelFactor
	}
	return clamp01(conf)
}

// overallConfidence is the consensus-count weighted mean of cluster
// confidences, penalised by the share of disputed clusters. Without clusters
// it is the mean self-reported confidence of the participating models.
func overallConfidence(supports []clusterSupport, outcomes []outcome) float64 {
	if len(supports) == 0 {
		var sum float64
		var n int
		for _, o := range outcomes {
			if o.status == domain.StatusSuccess {
				sum += o.result.Confidence
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return clamp01(sum / float64(n))
	}

	var weighted, weights float64
	disputed := 0
	for _, s := range supports {
		weighted += float64(s.count) * s.confidence
		weights += float64(s.count)
		if s.disputed {
			disputed++
		}
	}
	rate := float64(disputed) / float64(len(supports))
	return clamp01(weighted / weights * (1 - disagreementWeight*rate))
}

// modelAgreements summarises every roster member in roster order. The
// agreement rate is the share of a member's entries that at least one other
// model corroborated.
func modelAgreements(outcomes []outcome, clusters []*cluster) []domain.ModelAgreement {
	corroborated := make(map[int]int)
	for _, c := range clusters {
		if len(c.entries) < 2 {
			continue
		}
		for _, en := range c.entries {
			corroborated[en.member]++
		}
	}

	out := make([]domain.ModelAgreement, len(outcomes))
	for i, o := range outcomes {
		ma := domain.ModelAgreement{
			ModelID:   o.member.ModelID(),
			Provider:  o.member.Vendor(),
			Model:     o.member.Model(),
			Status:    o.status,
			LatencyMs: o.latency,
		}
		if o.status != domain.StatusSuccess {
			if o.err != nil {
				ma.Error = o.err.Error()
			}
			out[i] = ma
			continue
		}
		ma.Participated = true
		ma.ItemCount = len(o.result.Items) + len(o.result.Issues)
		ma.Confidence = o.result.Confidence
		ma.Repaired = o.result.Repaired
		if o.result.Model != "" {
			ma.Model = o.result.Model
		}
		if ma.ItemCount > 0 {
			ma.AgreementRate = float64(corroborated[i]) / float64(ma.ItemCount)
		}
		out[i] = ma
	}
	return out
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}
