package consensus

import (
	"fmt"
	"strings"

	"bidflow/internal/domain"
	"bidflow/internal/textmatch"
)

// entry is one model-reported item or issue reduced to the fields used for matching.
type entry struct {
	member      int // roster index
	index       int // position in the member's list
	modelID     string
	name        string
	description string
	category    string
	location    string
	box         domain.BoundingBox
	confidence  float64
}

// cluster groups entries believed to describe the same real-world element.
// It holds at most one entry per member.
type cluster struct {
	id      string
	entries []entry
}

func (c *cluster) has(member int) bool {
	for _, e := range c.entries {
		if e.member == member {
			return true
		}
	}
	return false
}

// buildClusters visits entries in (roster index, item index) order. Each entry
// joins the eligible cluster with the highest similarity, lowest cluster index
// on ties, or starts a new cluster.
func buildClusters(entries []entry, cfg Config) []*cluster {
	var clusters []*cluster
	for _, e := range entries {
		best, bestScore := -1, 0.0
		for ci, c := range clusters {
			if c.has(e.member) {
				continue
			}
			score, ok := clusterScore(e, c, cfg)
			if ok && score > bestScore {
				best, bestScore = ci, score
			}
		}
		if best >= 0 {
			clusters[best].entries = append(clusters[best].entries, e)
			continue
		}
		clusters = append(clusters, &cluster{
			id:      fmt.Sprintf("c%d", len(clusters)+1),
			entries: []entry{e},
		})
	}
	return clusters
}

// clusterScore is the best pairwise similarity between e and any eligible cluster entry.
func clusterScore(e entry, c *cluster, cfg Config) (float64, bool) {
	best, found := 0.0, false
	for _, other := range c.entries {
		if score, ok := matches(e, other, cfg); ok && score > best {
			best, found = score, true
		}
	}
	return best, found
}

// matches reports whether a and b describe the same element and how similar
// their descriptions are.
func matches(a, b entry, cfg Config) (float64, bool) {
	sim := textSimilarity(a, b)
	threshold := cfg.DescriptionThreshold
	if a.category != b.category && a.category != domain.CategoryOther && b.category != domain.CategoryOther {
		threshold = cfg.CrossCategoryThreshold
	}
	if sim < threshold {
		return sim, false
	}
	if !sameRegion(a, b, cfg) {
		return sim, false
	}
	return sim, true
}

// textSimilarity compares names, and descriptions when both models gave one.
func textSimilarity(a, b entry) float64 {
	sim := textmatch.Dice(a.name, b.name)
	if a.description != "" && b.description != "" {
		if d := textmatch.Dice(a.description, b.description); d > sim {
			sim = d
		}
	}
	return sim
}

func sameRegion(a, b entry, cfg Config) bool {
	if a.box.PageIndex != b.box.PageIndex {
		return false
	}
	haveText := strings.TrimSpace(a.location) != "" && strings.TrimSpace(b.location) != ""
	locationMatch := haveText && textmatch.Dice(a.location, b.location) >= cfg.LocationThreshold

	if !a.box.Estimated && !b.box.Estimated {
		return textmatch.IoU(a.box, b.box) >= cfg.IoUThreshold || locationMatch
	}
	if haveText {
		return locationMatch
	}
	return true
}

func itemEntries(outcomes []outcome) []entry {
	var entries []entry
	for m, o := range outcomes {
		if o.status != domain.StatusSuccess {
			continue
		}
		for i, it := range o.result.Items {
			entries = append(entries, entry{
				member:      m,
				index:       i,
				modelID:     o.member.ModelID(),
				name:        it.Name,
				description: it.Description,
				category:    it.Category,
				location:    it.Location,
				box:         it.BoundingBox,
				confidence:  it.Confidence,
			})
		}
	}
	return entries
}

func issueEntries(outcomes []outcome) []entry {
	var entries []entry
	for m, o := range outcomes {
		if o.status != domain.StatusSuccess {
			continue
		}
		for i, is := range o.result.Issues {
			entries = append(entries, entry{
				member:      m,
				index:       i,
				modelID:     o.member.ModelID(),
				name:        is.Title,
				description: is.Description,
				category:    is.Category,
				location:    is.Location,
				box:         is.BoundingBox,
				confidence:  is.Confidence,
			})
		}
	}
	return entries
}
