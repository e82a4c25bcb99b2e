// Package screenshot pairs boot-verification screenshots with the recovery
// points they verified and decides which screenshots to keep.
package screenshot

import (
	"sort"

	"github.com/seantiz/keeper/internal/model"
)

// Match pairs one recovery point with its screenshot, if any.
type Match struct {
	Point      model.RecoveryPoint `json:"point"`
	Screenshot *model.Screenshot   `json:"screenshot,omitempty"`
}

// MatchResult is the outcome of pairing an asset's points and screenshots.
type MatchResult struct {
	// Matches holds every point by ascending epoch.
	Matches []Match `json:"matches"`

	// Orphans are screenshots whose point no longer exists.
	Orphans []model.Screenshot `json:"orphans"`

	// LatestVerified is the newest point with a successful screenshot.
	LatestVerified *model.RecoveryPoint `json:"latest_verified,omitempty"`
}

// Verified returns the matches that carry a screenshot, oldest first.
func (r MatchResult) Verified() []Match {
	out := []Match{}
	for _, m := range r.Matches {
		if m.Screenshot != nil {
			out = append(out, m)
		}
	}
	return out
}

// MatchPoints pairs screenshots with points by exact snapshot epoch. Inputs
// need not be sorted.
func MatchPoints(points []model.RecoveryPoint, shots []model.Screenshot) MatchResult {
	byEpoch := make(map[int64]model.Screenshot, len(shots))
	for _, s := range shots {
		byEpoch[s.SnapshotEpoch] = s
	}

	sorted := make([]model.RecoveryPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Epoch < sorted[j].Epoch })

	result := MatchResult{
		Matches: make([]Match, 0, len(sorted)),
		Orphans: []model.Screenshot{},
	}
	seen := make(map[int64]bool, len(sorted))

	for i := range sorted {
		m := Match{Point: sorted[i]}
		if s, ok := byEpoch[sorted[i].Epoch]; ok {
			m.Screenshot = &s
			if s.Successful() {
				result.LatestVerified = &sorted[i]
			}
		}
		seen[sorted[i].Epoch] = true
		result.Matches = append(result.Matches, m)
	}

	for _, s := range shots {
		if !seen[s.SnapshotEpoch] {
			result.Orphans = append(result.Orphans, s)
		}
	}
	sort.Slice(result.Orphans, func(i, j int) bool {
		return result.Orphans[i].SnapshotEpoch < result.Orphans[j].SnapshotEpoch
	})

	return result
}
