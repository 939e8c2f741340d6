// Package dedup merges provisional candidates that describe the same
// real-world event or venue update.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"sauna-briefing/internal/model"
)

// Judge decides which candidates are duplicates.
type Judge interface {
	GroupDuplicates(ctx context.Context, cands []model.Candidate, tolerance time.Duration) ([][]int, error)
}

// Merger groups and merges candidates. A nil Judge disables model-based merging.
type Merger struct {
	Judge     Judge
	Tolerance time.Duration
}

// Result is the merged candidate set plus how it was produced.
type Result struct {
	Candidates []model.Candidate
	// Fallback is set when the judge failed and only exact raw-id matches were merged.
	Fallback bool
}

const tieEpsilon = 1e-9

// Merge returns a merged set no larger than the input in which every input
// raw source id appears in exactly one candidate. Judge failure of any kind
// falls back to no merging.
func (m *Merger) Merge(ctx context.Context, cands []model.Candidate) Result {
	n := len(cands)
	uf := newUnionFind(n)

	// the same source record can arrive twice (e.g. re-sent emails)
	seen := map[string]int{}
	for i, c := range cands {
		for _, id := range c.RawSourceIDs {
			if j, ok := seen[id]; ok {
				uf.union(j, i)
			} else {
				seen[id] = i
			}
		}
	}

	res := Result{}
	if n > 1 && m.Judge != nil {
		groups, err := m.Judge.GroupDuplicates(ctx, cands, m.Tolerance)
		if err == nil {
			err = validateGroups(groups, n)
		}
		if err != nil {
			slog.Warn("dedup: merge judge failed; keeping candidates unmerged", "candidates", n, "err", err)
			res.Fallback = true
		} else {
			dates := classDates(uf, cands)
			for _, g := range groups {
				for a := 0; a < len(g); a++ {
					for b := a + 1; b < len(g); b++ {
						joinWithin(uf, dates, g[a], g[b], m.Tolerance)
					}
				}
			}
		}
	} else if n > 1 {
		res.Fallback = true
	}

	classes := uf.classes()
	res.Candidates = make([]model.Candidate, 0, len(classes))
	for _, members := range classes {
		group := make([]model.Candidate, 0, len(members))
		for _, i := range members {
			group = append(group, cands[i])
		}
		res.Candidates = append(res.Candidates, mergeGroup(group))
	}
	slog.Info("dedup: merged candidates", "in", n, "out", len(res.Candidates), "fallback", res.Fallback)
	return res
}

func validateGroups(groups [][]int, n int) error {
	if groups == nil {
		return fmt.Errorf("no groups in answer")
	}
	for _, g := range groups {
		for _, i := range g {
			if i < 0 || i >= n {
				return fmt.Errorf("group index %d out of range [0,%d)", i, n)
			}
		}
	}
	return nil
}

// classDates collects the event dates of every class, keyed by root.
func classDates(uf unionFind, cands []model.Candidate) map[int][]time.Time {
	dates := map[int][]time.Time{}
	for i, c := range cands {
		if c.EventDate != nil {
			r := uf.find(i)
			dates[r] = append(dates[r], c.EventDate.Start)
		}
	}
	return dates
}

// joinWithin unites the classes of a and b only if every dated member of one
// is within tol of every dated member of the other. Checking whole classes
// keeps chains (a~b~c, or a~undated~c) from joining events further apart than
// tol. Undated candidates match any date.
func joinWithin(uf unionFind, dates map[int][]time.Time, a, b int, tol time.Duration) bool {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return true
	}
	if tol > 0 {
		for _, x := range dates[ra] {
			for _, y := range dates[rb] {
				d := x.Sub(y)
				if d < 0 {
					d = -d
				}
				if d > tol {
					return false
				}
			}
		}
	}
	merged := append(dates[ra], dates[rb]...)
	delete(dates, ra)
	delete(dates, rb)
	uf.union(ra, rb)
	if len(merged) > 0 {
		dates[uf.find(ra)] = merged
	}
	return true
}

// mergeGroup folds a class of duplicates into one candidate. The class is
// in input order; the first member's id is kept so ids stay stable.
func mergeGroup(group []model.Candidate) model.Candidate {
	if len(group) == 1 {
		return group[0]
	}
	top := 0
	for i, c := range group {
		if c.Confidence > group[top].Confidence+tieEpsilon {
			top = i
		}
	}
	best := group[top]

	out := best
	out.ID = group[0].ID
	out.RawSourceIDs = nil
	out.URLs = nil
	seenRaw := map[string]struct{}{}
	seenURL := map[string]struct{}{}
	for _, c := range group {
		for _, id := range c.RawSourceIDs {
			if _, ok := seenRaw[id]; !ok {
				seenRaw[id] = struct{}{}
				out.RawSourceIDs = append(out.RawSourceIDs, id)
			}
		}
		for _, u := range c.URLs {
			if _, ok := seenURL[u]; !ok {
				seenURL[u] = struct{}{}
				out.URLs = append(out.URLs, u)
			}
		}
		if out.URL == "" {
			out.URL = c.URL
		}
		if out.VenueName == "" {
			out.VenueName = c.VenueName
		}
		if out.EventDate == nil && c.EventDate != nil {
			out.EventDate = c.EventDate
		}
	}

	var bodies []string
	for _, c := range group {
		if c.Confidence >= best.Confidence-tieEpsilon {
			bodies = addBody(bodies, c.Body)
		}
	}
	out.Body = strings.Join(bodies, "\n\n")
	if out.Body == "" {
		for _, c := range group {
			if c.Body != "" {
				out.Body = c.Body
				break
			}
		}
	}
	return out
}

// addBody appends b unless an existing body already says the same thing;
// when one contains the other the longer text is kept.
func addBody(bodies []string, b string) []string {
	nb := fingerprint(b)
	if nb == "" {
		return bodies
	}
	for i, existing := range bodies {
		ne := fingerprint(existing)
		switch {
		case ne == nb, strings.Contains(ne, nb):
			return bodies
		case strings.Contains(nb, ne):
			bodies[i] = b
			return bodies
		}
	}
	return append(bodies, b)
}

func fingerprint(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
		} else if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

type unionFind []int

func newUnionFind(n int) unionFind {
	u := make(unionFind, n)
	for i := range u {
		u[i] = i
	}
	return u
}

func (u unionFind) find(i int) int {
	for u[i] != i {
		u[i] = u[u[i]]
		i = u[i]
	}
	return i
}

func (u unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// keep the lowest index as root so class order follows input order
	if rb < ra {
		ra, rb = rb, ra
	}
	u[rb] = ra
}

// classes returns member index lists ordered by their first member.
func (u unionFind) classes() [][]int {
	byRoot := map[int][]int{}
	for i := range u {
		r := u.find(i)
		byRoot[r] = append(byRoot[r], i)
	}
	out := make([][]int, 0, len(byRoot))
	for _, members := range byRoot {
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
