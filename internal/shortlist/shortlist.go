// Package shortlist picks the bounded, ranked set of candidates a draft is written from.
package shortlist

import (
	"context"
	"log/slog"
	"sort"

	"sauna-briefing/internal/model"
)

// DefaultTarget is the shortlist size when none is configured.
const DefaultTarget = 15

// Ranker orders candidates against an editorial rubric.
type Ranker interface {
	Rank(ctx context.Context, cands []model.Candidate, rubric string, limit int) ([]int, error)
}

// Shortlister selects min(N, Target) candidates. A nil Ranker uses the
// deterministic order only.
type Shortlister struct {
	Ranker Ranker
	Rubric string
	Target int
}

// Select returns exactly min(len(cands), Target) candidates, best first.
func (s *Shortlister) Select(ctx context.Context, cands []model.Candidate) []model.Candidate {
	target := s.Target
	if target <= 0 {
		target = DefaultTarget
	}
	limit := min(len(cands), target)
	if limit == 0 {
		return []model.Candidate{}
	}

	fallback := FallbackOrder(cands)
	if s.Ranker == nil {
		return pick(cands, fallback[:limit])
	}
	order, err := s.Ranker.Rank(ctx, cands, s.Rubric, limit)
	if err != nil {
		slog.Warn("shortlist: ranking failed; using confidence order", "candidates", len(cands), "err", err)
		return pick(cands, fallback[:limit])
	}

	chosen := make([]int, 0, limit)
	used := make(map[int]bool, limit)
	for _, i := range order {
		if len(chosen) == limit {
			break
		}
		if i < 0 || i >= len(cands) || used[i] {
			continue
		}
		used[i] = true
		chosen = append(chosen, i)
	}
	if len(chosen) == 0 {
		slog.Warn("shortlist: ranking returned no usable indices; using confidence order", "candidates", len(cands))
		return pick(cands, fallback[:limit])
	}
	// top up a partial ranking so the length never depends on the judge
	for _, i := range fallback {
		if len(chosen) == limit {
			break
		}
		if !used[i] {
			used[i] = true
			chosen = append(chosen, i)
		}
	}
	slog.Info("shortlist: selected", "candidates", len(cands), "selected", len(chosen))
	return pick(cands, chosen)
}

// FallbackOrder returns candidate indices ordered by confidence (descending),
// then event date (ascending, undated last), then id.
func FallbackOrder(cands []model.Candidate) []int {
	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ca, cb := cands[idx[a]], cands[idx[b]]
		if ca.Confidence != cb.Confidence {
			return ca.Confidence > cb.Confidence
		}
		switch {
		case ca.EventDate != nil && cb.EventDate != nil:
			if !ca.EventDate.Start.Equal(cb.EventDate.Start) {
				return ca.EventDate.Start.Before(cb.EventDate.Start)
			}
		case ca.EventDate != nil:
			return true
		case cb.EventDate != nil:
			return false
		}
		return ca.ID < cb.ID
	})
	return idx
}

func pick(cands []model.Candidate, idx []int) []model.Candidate {
	out := make([]model.Candidate, 0, len(idx))
	for _, i := range idx {
		out = append(out, cands[i])
	}
	return out
}
